package pricing

import (
	"math"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// AnalyticPricer values European contracts with the Black-Scholes closed form
// under a continuous dividend yield:
//
//	d1 = (ln(S/K) + (r - q + sigma^2/2)*T) / (sigma*sqrt(T))
//	d2 = d1 - sigma*sqrt(T)
//	call = S*exp(-qT)*N(d1) - K*exp(-rT)*N(d2)
//	put  = K*exp(-rT)*N(-d2) - S*exp(-qT)*N(-d1)
//
// American contracts have no closed form and are rejected.
type AnalyticPricer struct{}

// NewAnalyticPricer creates a new analytic pricer.
func NewAnalyticPricer() *AnalyticPricer {
	return &AnalyticPricer{}
}

// Name returns the pricer name.
func (p *AnalyticPricer) Name() string {
	return "black-scholes"
}

// Method returns the pricing method identifier.
func (p *AnalyticPricer) Method() models.Method {
	return models.MethodAnalytic
}

// Price values the contract.
func (p *AnalyticPricer) Price(contract models.ContractSpec, market models.MarketState) (*models.PricingResult, error) {
	if err := validateInputs(contract, market); err != nil {
		return nil, err
	}
	if contract.Style != models.ExerciseEuropean {
		return nil, errors.NewStyleError(string(contract.Style), p.Name())
	}

	d1, d2 := dValues(contract, market)
	discR := math.Exp(-market.Rate * contract.Maturity)
	discQ := math.Exp(-market.DividendYield * contract.Maturity)

	var price float64
	if contract.Kind == models.OptionKindCall {
		price = market.Spot*discQ*normCDF(d1) - contract.Strike*discR*normCDF(d2)
	} else {
		price = contract.Strike*discR*normCDF(-d2) - market.Spot*discQ*normCDF(-d1)
	}

	return &models.PricingResult{
		Price:  price,
		Method: models.MethodAnalytic,
	}, nil
}

// Greeks returns the closed-form sensitivity set. Theta is per year of
// calendar time; Rho is per unit of rate.
func (p *AnalyticPricer) Greeks(contract models.ContractSpec, market models.MarketState) (*models.GreeksResult, error) {
	if err := validateInputs(contract, market); err != nil {
		return nil, err
	}
	if contract.Style != models.ExerciseEuropean {
		return nil, errors.NewStyleError(string(contract.Style), p.Name())
	}

	d1, d2 := dValues(contract, market)
	sqrtT := math.Sqrt(contract.Maturity)
	discR := math.Exp(-market.Rate * contract.Maturity)
	discQ := math.Exp(-market.DividendYield * contract.Maturity)
	pdf := normPDF(d1)

	g := &models.GreeksResult{
		Method: models.GreeksAnalytic,
		Gamma:  discQ * pdf / (market.Spot * market.Vol * sqrtT),
		Vega:   market.Spot * discQ * pdf * sqrtT,
	}

	timeDecay := -market.Spot * discQ * pdf * market.Vol / (2 * sqrtT)
	if contract.Kind == models.OptionKindCall {
		g.Delta = discQ * normCDF(d1)
		g.Theta = timeDecay -
			market.Rate*contract.Strike*discR*normCDF(d2) +
			market.DividendYield*market.Spot*discQ*normCDF(d1)
		g.Rho = contract.Strike * contract.Maturity * discR * normCDF(d2)
	} else {
		g.Delta = discQ * (normCDF(d1) - 1)
		g.Theta = timeDecay +
			market.Rate*contract.Strike*discR*normCDF(-d2) -
			market.DividendYield*market.Spot*discQ*normCDF(-d1)
		g.Rho = -contract.Strike * contract.Maturity * discR * normCDF(-d2)
	}

	return g, nil
}

// dValues computes the d1/d2 terms shared by price and Greeks.
func dValues(contract models.ContractSpec, market models.MarketState) (float64, float64) {
	sqrtT := math.Sqrt(contract.Maturity)
	d1 := (math.Log(market.Spot/contract.Strike) +
		(market.Rate-market.DividendYield+0.5*market.Vol*market.Vol)*contract.Maturity) /
		(market.Vol * sqrtT)
	d2 := d1 - market.Vol*sqrtT
	return d1, d2
}
