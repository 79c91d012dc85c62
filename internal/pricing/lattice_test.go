package pricing

import (
	"math"
	"testing"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
)

func TestLatticeConvergesToAnalytic(t *testing.T) {
	contract := models.ContractSpec{Strike: 100, Maturity: 1, Kind: models.OptionKindCall, Style: models.ExerciseEuropean}
	market := models.MarketState{Spot: 100, Rate: 0.05, Vol: 0.20}

	analytic, err := NewAnalyticPricer().Price(contract, market)
	if err != nil {
		t.Fatalf("analytic reference failed: %v", err)
	}

	coarse, err := NewLatticePricer(50).Price(contract, market)
	if err != nil {
		t.Fatalf("lattice n=50 failed: %v", err)
	}
	fine, err := NewLatticePricer(500).Price(contract, market)
	if err != nil {
		t.Fatalf("lattice n=500 failed: %v", err)
	}

	coarseErr := math.Abs(coarse.Price - analytic.Price)
	fineErr := math.Abs(fine.Price - analytic.Price)

	if fineErr >= 1e-2 {
		t.Errorf("n=500 error = %.6f, want < 1e-2", fineErr)
	}
	if fineErr >= coarseErr {
		t.Errorf("error did not shrink: n=50 -> %.6f, n=500 -> %.6f", coarseErr, fineErr)
	}
}

func TestLatticeEuropeanPut(t *testing.T) {
	contract := models.ContractSpec{Strike: 100, Maturity: 1, Kind: models.OptionKindPut, Style: models.ExerciseEuropean}
	market := models.MarketState{Spot: 100, Rate: 0.05, Vol: 0.20}

	result, err := NewLatticePricer(500).Price(contract, market)
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	if math.Abs(result.Price-5.5735) > 1e-2 {
		t.Errorf("price = %.4f, want ~5.5735", result.Price)
	}
	if result.Diagnostics == nil || result.Diagnostics.Steps != 500 {
		t.Errorf("diagnostics steps missing or wrong: %+v", result.Diagnostics)
	}
	if p := result.Diagnostics.Probability; p <= 0 || p >= 1 {
		t.Errorf("up probability = %.4f, want inside (0,1)", p)
	}
}

func TestLatticeAmericanPutPremium(t *testing.T) {
	euro := models.ContractSpec{Strike: 100, Maturity: 1, Kind: models.OptionKindPut, Style: models.ExerciseEuropean}
	amer := euro
	amer.Style = models.ExerciseAmerican
	market := models.MarketState{Spot: 100, Rate: 0.05, Vol: 0.20}

	pricer := NewLatticePricer(500)
	euroRes, err := pricer.Price(euro, market)
	if err != nil {
		t.Fatalf("european failed: %v", err)
	}
	amerRes, err := pricer.Price(amer, market)
	if err != nil {
		t.Fatalf("american failed: %v", err)
	}

	premium := amerRes.Price - euroRes.Price
	if premium < 0.3 {
		t.Errorf("early-exercise premium = %.4f, want > 0.3 for a deep rate discount", premium)
	}
}

func TestLatticeDeepInTheMoneyAmericanPut(t *testing.T) {
	// With the spot far below strike the American put is worth its immediate
	// exercise value.
	contract := models.ContractSpec{Strike: 100, Maturity: 1, Kind: models.OptionKindPut, Style: models.ExerciseAmerican}
	market := models.MarketState{Spot: 40, Rate: 0.05, Vol: 0.20}

	result, err := NewLatticePricer(200).Price(contract, market)
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	if result.Price < 60 {
		t.Errorf("price = %.4f, want >= intrinsic 60", result.Price)
	}
}

func TestLatticeSingleStep(t *testing.T) {
	contract := models.ContractSpec{Strike: 100, Maturity: 0.25, Kind: models.OptionKindCall, Style: models.ExerciseEuropean}
	market := models.MarketState{Spot: 100, Rate: 0.02, Vol: 0.30}

	result, err := NewLatticePricer(1).Price(contract, market)
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}

	// One step by hand: u = exp(0.3*sqrt(0.25)), d = 1/u.
	u := math.Exp(0.3 * 0.5)
	d := 1 / u
	p := (math.Exp(0.02*0.25) - d) / (u - d)
	want := math.Exp(-0.02*0.25) * p * (100*u - 100)
	if math.Abs(result.Price-want) > 1e-10 {
		t.Errorf("price = %.10f, want %.10f", result.Price, want)
	}
}

func TestLatticeConvergesToIntrinsicNearExpiry(t *testing.T) {
	contract := models.ContractSpec{Strike: 100, Maturity: 1e-6, Kind: models.OptionKindCall, Style: models.ExerciseEuropean}
	market := models.MarketState{Spot: 110, Rate: 0.05, Vol: 0.2}

	result, err := NewLatticePricer(50).Price(contract, market)
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	if math.Abs(result.Price-10.0) > 1e-2 {
		t.Errorf("price = %.6f, want intrinsic 10 near expiry", result.Price)
	}
}

func TestLatticeDegenerateProbability(t *testing.T) {
	// A large rate against a tiny volatility pushes the up probability
	// past 1; that must surface, never clamp.
	contract := models.ContractSpec{Strike: 100, Maturity: 1, Kind: models.OptionKindCall, Style: models.ExerciseEuropean}
	market := models.MarketState{Spot: 100, Rate: 1.0, Vol: 0.01}

	_, err := NewLatticePricer(4).Price(contract, market)
	if !errors.Is(err, errors.ErrInvalidParameter) {
		t.Fatalf("error = %v, want ErrInvalidParameter", err)
	}
	var perr *errors.ParameterError
	if !errors.As(err, &perr) || perr.Param != "probability" {
		t.Fatalf("error = %v, want probability ParameterError", err)
	}
}

func TestLatticeInvalidSteps(t *testing.T) {
	contract := models.ContractSpec{Strike: 100, Maturity: 1, Kind: models.OptionKindCall, Style: models.ExerciseEuropean}
	market := models.MarketState{Spot: 100, Rate: 0.05, Vol: 0.2}

	_, err := NewLatticePricer(0).Price(contract, market)
	if !errors.Is(err, errors.ErrInvalidParameter) {
		t.Fatalf("error = %v, want ErrInvalidParameter", err)
	}
}
