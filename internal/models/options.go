package models

import (
	"strings"
	"time"

	"option-pricer/internal/errors"
)

// OptionKind represents the payoff type of an option.
type OptionKind string

const (
	OptionKindCall OptionKind = "CALL"
	OptionKindPut  OptionKind = "PUT"
)

// ExerciseStyle represents when an option may be exercised.
type ExerciseStyle string

const (
	ExerciseEuropean ExerciseStyle = "EUROPEAN"
	ExerciseAmerican ExerciseStyle = "AMERICAN"
)

// Method represents a pricing method.
type Method string

const (
	MethodAnalytic   Method = "ANALYTIC"
	MethodLattice    Method = "LATTICE"
	MethodSimulation Method = "SIMULATION"
)

// GreeksMethod represents how a Greek set was derived.
type GreeksMethod string

const (
	GreeksAnalytic         GreeksMethod = "ANALYTIC"
	GreeksFiniteDifference GreeksMethod = "FINITE_DIFFERENCE"
)

// ParseOptionKind parses an option kind from user input.
func ParseOptionKind(s string) (OptionKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C", "CE":
		return OptionKindCall, nil
	case "PUT", "P", "PE":
		return OptionKindPut, nil
	}
	return "", errors.NewParameterError("kind", s, "must be call or put")
}

// ParseExerciseStyle parses an exercise style from user input.
func ParseExerciseStyle(s string) (ExerciseStyle, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EUROPEAN", "EURO", "EU":
		return ExerciseEuropean, nil
	case "AMERICAN", "AMER", "US":
		return ExerciseAmerican, nil
	}
	return "", errors.NewParameterError("style", s, "must be european or american")
}

// ParseMethod parses a pricing method from user input.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ANALYTIC", "BS", "BLACK-SCHOLES":
		return MethodAnalytic, nil
	case "LATTICE", "BINOMIAL", "TREE":
		return MethodLattice, nil
	case "SIMULATION", "MC", "MONTE-CARLO":
		return MethodSimulation, nil
	}
	return "", errors.NewParameterError("method", s, "must be analytic, lattice or simulation")
}

// ContractSpec describes one option contract. Immutable, passed by value.
type ContractSpec struct {
	Strike   float64
	Maturity float64 // years
	Kind     OptionKind
	Style    ExerciseStyle
}

// Validate checks the contract fields.
func (c ContractSpec) Validate() error {
	if c.Strike <= 0 {
		return errors.NewParameterError("strike", c.Strike, "must be positive")
	}
	if c.Maturity <= 0 {
		return errors.NewParameterError("maturity", c.Maturity, "must be positive")
	}
	switch c.Kind {
	case OptionKindCall, OptionKindPut:
	default:
		return errors.NewParameterError("kind", string(c.Kind), "must be call or put")
	}
	switch c.Style {
	case ExerciseEuropean, ExerciseAmerican:
	default:
		return errors.NewParameterError("style", string(c.Style), "must be european or american")
	}
	return nil
}

// Intrinsic returns the exercise payoff at the given underlying price.
func (c ContractSpec) Intrinsic(spot float64) float64 {
	if c.Kind == OptionKindCall {
		if spot > c.Strike {
			return spot - c.Strike
		}
		return 0
	}
	if c.Strike > spot {
		return c.Strike - spot
	}
	return 0
}

// MarketState is an immutable snapshot of the market inputs.
type MarketState struct {
	Spot          float64
	Rate          float64 // continuously compounded, may be negative
	Vol           float64
	DividendYield float64
}

// Validate checks the market fields.
func (m MarketState) Validate() error {
	if m.Spot <= 0 {
		return errors.NewParameterError("spot", m.Spot, "must be positive")
	}
	if m.Vol < 0 {
		return errors.NewParameterError("vol", m.Vol, "must be non-negative")
	}
	if m.DividendYield < 0 {
		return errors.NewParameterError("dividend_yield", m.DividendYield, "must be non-negative")
	}
	return nil
}

// ConfidenceInterval is a 95% interval around a simulated price.
type ConfidenceInterval struct {
	Low    float64
	High   float64
	StdErr float64
}

// Contains reports whether x falls inside the interval.
func (ci ConfidenceInterval) Contains(x float64) bool {
	return x >= ci.Low && x <= ci.High
}

// Diagnostics carries method-specific run details.
type Diagnostics struct {
	Steps       int     // lattice levels or simulation time steps
	Paths       int     // simulation paths
	Probability float64 // lattice risk-neutral up probability
	Elapsed     time.Duration
	SamplePaths [][]float64 // optional recorded simulation paths
}

// PricingResult is the output of a single pricing run.
type PricingResult struct {
	Price              float64
	Method             Method
	ConfidenceInterval *ConfidenceInterval
	Diagnostics        *Diagnostics
}

// BumpSizes records the absolute bump applied per input when Greeks are
// estimated by finite differences.
type BumpSizes struct {
	Spot float64
	Vol  float64
	Time float64
	Rate float64
}

// GreeksResult is a full sensitivity set for one contract.
type GreeksResult struct {
	Delta  float64
	Gamma  float64
	Vega   float64
	Theta  float64
	Rho    float64
	Method GreeksMethod
	Bumps  *BumpSizes
}

// Valuation is one journaled pricing run.
type Valuation struct {
	ID        string
	CreatedAt time.Time
	Symbol    string
	Contract  ContractSpec
	Market    MarketState
	Method    Method
	Steps     int
	Paths     int
	Seed      int64
	Price     float64
	StdErr    float64
	CILow     float64
	CIHigh    float64
	Note      string
}
