// Package greeks computes option price sensitivities. An analytic pricer
// supplies its closed-form Greeks directly; every other method is
// differentiated numerically with central bumps around the base inputs.
package greeks

import (
	"math"
	"sync"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
	"option-pricer/internal/performance"
	"option-pricer/internal/pricing"
)

const (
	defaultRelativeBump = 0.001
	defaultMinBump      = 1e-4
)

// Config controls bump sizing and parallelism for finite differences.
type Config struct {
	// RelativeBump is the bump as a fraction of the input value.
	RelativeBump float64

	// MinBump is the absolute floor applied to every bump.
	MinBump float64

	// Workers bounds the valuation pool. Zero means one worker per CPU.
	Workers int
}

// Engine derives a full Greek set from any pricer.
type Engine struct {
	pricer pricing.Pricer
	cfg    Config
}

// NewEngine creates an engine around the given pricer. Zero config fields
// take the package defaults.
func NewEngine(pricer pricing.Pricer, cfg Config) *Engine {
	if cfg.RelativeBump <= 0 {
		cfg.RelativeBump = defaultRelativeBump
	}
	if cfg.MinBump <= 0 {
		cfg.MinBump = defaultMinBump
	}
	return &Engine{pricer: pricer, cfg: cfg}
}

// Compute returns the sensitivity set for the contract. A pricer with closed
// forms answers directly; otherwise each input is bumped and revalued.
func (e *Engine) Compute(contract models.ContractSpec, market models.MarketState) (*models.GreeksResult, error) {
	if analytic, ok := e.pricer.(*pricing.AnalyticPricer); ok {
		return analytic.Greeks(contract, market)
	}
	return e.finiteDifference(contract, market)
}

// Scenario indices for the finite-difference sweep. Spot up and down serve
// both the first and second difference.
const (
	scBase = iota
	scSpotUp
	scSpotDown
	scVolUp
	scVolDown
	scRateUp
	scRateDown
	scTimeDown
	scCount
)

func (e *Engine) finiteDifference(contract models.ContractSpec, market models.MarketState) (*models.GreeksResult, error) {
	bumps := models.BumpSizes{
		Spot: e.bump(market.Spot),
		Vol:  e.bump(market.Vol),
		Time: e.bump(contract.Maturity),
		Rate: e.bump(market.Rate),
	}

	if market.Spot-bumps.Spot <= 0 {
		return nil, errors.NewParameterError("spot", market.Spot, "too small to bump for finite differences")
	}
	if market.Vol-bumps.Vol <= 0 {
		return nil, errors.NewParameterError("vol", market.Vol, "too small to bump for finite differences")
	}
	if contract.Maturity-bumps.Time <= 0 {
		return nil, errors.NewParameterError("maturity", contract.Maturity, "too close to expiry for a time bump")
	}

	scenarios := make([]struct {
		contract models.ContractSpec
		market   models.MarketState
	}, scCount)
	for i := range scenarios {
		scenarios[i].contract = contract
		scenarios[i].market = market
	}
	scenarios[scSpotUp].market.Spot += bumps.Spot
	scenarios[scSpotDown].market.Spot -= bumps.Spot
	scenarios[scVolUp].market.Vol += bumps.Vol
	scenarios[scVolDown].market.Vol -= bumps.Vol
	scenarios[scRateUp].market.Rate += bumps.Rate
	scenarios[scRateDown].market.Rate -= bumps.Rate
	scenarios[scTimeDown].contract.Maturity -= bumps.Time

	// Every scenario goes through the one pricer instance, so a seeded
	// simulation pricer reuses the same draws across bumps and the
	// differences stay smooth (common random numbers).
	prices := make([]float64, scCount)
	errs := make([]error, scCount)

	pool := performance.NewWorkerPool(e.cfg.Workers)
	pool.Start()
	defer pool.Stop()

	var wg sync.WaitGroup
	for i := range scenarios {
		i := i
		wg.Add(1)
		run := func() {
			defer wg.Done()
			result, err := e.pricer.Price(scenarios[i].contract, scenarios[i].market)
			if err != nil {
				errs[i] = err
				return
			}
			prices[i] = result.Price
		}
		if !pool.Submit(run) {
			run()
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// Theta is the calendar-time derivative, estimated one-sided toward
	// expiry so the horizon never grows past the quoted maturity.
	return &models.GreeksResult{
		Delta:  (prices[scSpotUp] - prices[scSpotDown]) / (2 * bumps.Spot),
		Gamma:  (prices[scSpotUp] - 2*prices[scBase] + prices[scSpotDown]) / (bumps.Spot * bumps.Spot),
		Vega:   (prices[scVolUp] - prices[scVolDown]) / (2 * bumps.Vol),
		Theta:  (prices[scTimeDown] - prices[scBase]) / bumps.Time,
		Rho:    (prices[scRateUp] - prices[scRateDown]) / (2 * bumps.Rate),
		Method: models.GreeksFiniteDifference,
		Bumps:  &bumps,
	}, nil
}

// bump sizes a perturbation relative to the input with an absolute floor.
func (e *Engine) bump(value float64) float64 {
	h := math.Abs(value) * e.cfg.RelativeBump
	if h < e.cfg.MinBump {
		h = e.cfg.MinBump
	}
	return h
}
