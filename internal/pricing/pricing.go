// Package pricing implements the option valuation methods: the Black-Scholes
// closed form, a CRR binomial lattice and a Monte Carlo simulation over
// geometric Brownian motion. All pricers are pure functions of their inputs,
// hold no shared state and are safe for concurrent use.
package pricing

import (
	"math"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// Pricer values one option contract against a market snapshot.
type Pricer interface {
	// Name returns the pricer name for display and logging.
	Name() string

	// Method returns the pricing method identifier.
	Method() models.Method

	// Price values the contract. The same (contract, market) pair is
	// accepted by every implementation.
	Price(contract models.ContractSpec, market models.MarketState) (*models.PricingResult, error)
}

// Params carries the method-specific knobs for pricer construction.
type Params struct {
	// Lattice
	Steps int

	// Simulation
	Paths       int
	Seed        int64
	Workers     int
	BlockSize   int
	SamplePaths int
}

// DefaultParams returns the parameter defaults used when the caller supplies
// none.
func DefaultParams() Params {
	return Params{
		Steps:     500,
		Paths:     10000,
		Seed:      42,
		BlockSize: defaultBlockSize,
	}
}

// NewPricer resolves a pricing method into a concrete pricer. The method is
// resolved exactly once; an unknown method is an invalid parameter, never a
// silent fallback.
func NewPricer(method models.Method, params Params) (Pricer, error) {
	switch method {
	case models.MethodAnalytic:
		return NewAnalyticPricer(), nil
	case models.MethodLattice:
		return NewLatticePricer(params.Steps), nil
	case models.MethodSimulation:
		return NewSimulationPricer(SimulationConfig{
			Paths:       params.Paths,
			Seed:        params.Seed,
			Workers:     params.Workers,
			BlockSize:   params.BlockSize,
			SamplePaths: params.SamplePaths,
		}), nil
	}
	return nil, errors.NewParameterError("method", string(method), "must be analytic, lattice or simulation")
}

// Price values the contract with the given method and parameters.
func Price(contract models.ContractSpec, market models.MarketState, method models.Method, params Params) (*models.PricingResult, error) {
	pricer, err := NewPricer(method, params)
	if err != nil {
		return nil, err
	}
	return pricer.Price(contract, market)
}

// CrossCheck compares a numerical result against the analytic European
// reference for the same inputs. It returns a *errors.NumericalWarning when
// the deviation exceeds tolerance and nil when the prices agree or no
// reference exists (American style has no closed form). The warning is
// diagnostic: the checked result remains usable.
func CrossCheck(result *models.PricingResult, contract models.ContractSpec, market models.MarketState, tolerance float64) error {
	if result == nil || result.Method == models.MethodAnalytic {
		return nil
	}
	if contract.Style != models.ExerciseEuropean {
		return nil
	}
	ref, err := NewAnalyticPricer().Price(contract, market)
	if err != nil {
		return nil
	}
	if math.Abs(result.Price-ref.Price) > tolerance {
		return errors.NewNumericalWarning(string(result.Method), result.Price, ref.Price, tolerance)
	}
	return nil
}

// validateInputs applies the parameter checks shared by every pricer. The
// model types allow zero volatility; valuation does not.
func validateInputs(contract models.ContractSpec, market models.MarketState) error {
	if err := contract.Validate(); err != nil {
		return err
	}
	if err := market.Validate(); err != nil {
		return err
	}
	if market.Vol <= 0 {
		return errors.NewParameterError("vol", market.Vol, "must be positive")
	}
	return nil
}
