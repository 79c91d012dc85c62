package pricing

import (
	"math"
	"time"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// LatticePricer values contracts on a Cox-Ross-Rubinstein recombining
// binomial tree. Per step dt = T/n, u = exp(sigma*sqrt(dt)), d = 1/u and the
// risk-neutral up probability is p = (exp((r-q)*dt) - d) / (u - d). American
// contracts take max(continuation, intrinsic) at every interior node.
//
// Only one level slice is kept and reused across the backward induction; the
// full tree is never materialized.
type LatticePricer struct {
	steps int
}

// NewLatticePricer creates a lattice pricer with the given step count.
func NewLatticePricer(steps int) *LatticePricer {
	return &LatticePricer{steps: steps}
}

// Name returns the pricer name.
func (p *LatticePricer) Name() string {
	return "crr-binomial"
}

// Method returns the pricing method identifier.
func (p *LatticePricer) Method() models.Method {
	return models.MethodLattice
}

// Steps returns the configured step count.
func (p *LatticePricer) Steps() int {
	return p.steps
}

// Price values the contract by backward induction.
func (p *LatticePricer) Price(contract models.ContractSpec, market models.MarketState) (*models.PricingResult, error) {
	if err := validateInputs(contract, market); err != nil {
		return nil, err
	}
	if p.steps < 1 {
		return nil, errors.NewParameterError("steps", p.steps, "must be at least 1")
	}

	start := time.Now()
	dt := contract.Maturity / float64(p.steps)
	u := math.Exp(market.Vol * math.Sqrt(dt))
	d := 1 / u
	growth := math.Exp((market.Rate - market.DividendYield) * dt)
	prob := (growth - d) / (u - d)
	if prob < 0 || prob > 1 || math.IsNaN(prob) {
		return nil, errors.NewParameterError("probability", prob,
			"risk-neutral up probability outside [0,1], parameter combination is degenerate")
	}
	disc := math.Exp(-market.Rate * dt)
	american := contract.Style == models.ExerciseAmerican

	// Terminal payoffs at S0 * u^(n-i) * d^i for i = 0..n. Successive nodes
	// differ by a factor of d^2.
	values := make([]float64, p.steps+1)
	spot := market.Spot * math.Pow(u, float64(p.steps))
	for i := 0; i <= p.steps; i++ {
		values[i] = contract.Intrinsic(spot)
		spot *= d * d
	}

	// Walk levels n-1 .. 0. topSpot tracks the highest node price of the
	// current level.
	topSpot := market.Spot * math.Pow(u, float64(p.steps))
	for step := p.steps; step >= 1; step-- {
		topSpot *= d
		nodeSpot := topSpot
		for i := 0; i < step; i++ {
			cont := disc * (prob*values[i] + (1-prob)*values[i+1])
			if american {
				if intrinsic := contract.Intrinsic(nodeSpot); intrinsic > cont {
					cont = intrinsic
				}
			}
			values[i] = cont
			nodeSpot *= d * d
		}
	}

	return &models.PricingResult{
		Price:  values[0],
		Method: models.MethodLattice,
		Diagnostics: &models.Diagnostics{
			Steps:       p.steps,
			Probability: prob,
			Elapsed:     time.Since(start),
		},
	}, nil
}
