// Package cli implements the pricer command-line interface.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"option-pricer/internal/errors"
	"option-pricer/internal/greeks"
	"option-pricer/internal/logging"
	"option-pricer/internal/models"
	"option-pricer/internal/pricing"
	"option-pricer/internal/store"
	"option-pricer/pkg/utils"
)

// addPricingCommands adds the valuation commands.
func addPricingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newGreeksCmd(app))
}

// addContractFlags registers the contract and market flags shared by every
// valuation command.
func addContractFlags(cmd *cobra.Command) {
	cmd.Flags().Float64P("spot", "s", 100, "underlying spot price")
	cmd.Flags().Float64P("strike", "k", 100, "strike price")
	cmd.Flags().StringP("maturity", "t", "30d", "time to expiry: years (0.5), months (6m), days (30d) or a date (2026-12-18)")
	cmd.Flags().Float64P("vol", "v", 0.2, "annualized volatility")
	cmd.Flags().Float64P("rate", "r", 0, "continuously compounded risk-free rate (defaults to config)")
	cmd.Flags().Float64P("dividend", "q", 0, "continuous dividend yield (defaults to config)")
	cmd.Flags().String("kind", "call", "option kind (call, put)")
	cmd.Flags().String("style", "european", "exercise style (european, american)")
}

// addMethodFlags registers the method selection flags.
func addMethodFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("method", "m", "", "pricing method: analytic, lattice, simulation (defaults to config)")
	cmd.Flags().Int("steps", 0, "lattice steps (defaults to config)")
	cmd.Flags().Int("paths", 0, "simulation paths (defaults to config)")
	cmd.Flags().Int64("seed", 0, "simulation seed (defaults to config)")
	cmd.Flags().Int("workers", 0, "simulation workers, 0 uses all CPUs")
}

// contractFromFlags builds the contract and market snapshot from the shared
// flags, falling back to configured defaults for rate and dividend yield.
func contractFromFlags(cmd *cobra.Command, app *App) (models.ContractSpec, models.MarketState, error) {
	var contract models.ContractSpec
	var market models.MarketState

	kindStr, _ := cmd.Flags().GetString("kind")
	kind, err := models.ParseOptionKind(kindStr)
	if err != nil {
		return contract, market, err
	}

	styleStr, _ := cmd.Flags().GetString("style")
	style, err := models.ParseExerciseStyle(styleStr)
	if err != nil {
		return contract, market, err
	}

	maturityStr, _ := cmd.Flags().GetString("maturity")
	maturity, err := utils.ParseMaturity(maturityStr)
	if err != nil {
		return contract, market, err
	}

	strike, _ := cmd.Flags().GetFloat64("strike")
	spot, _ := cmd.Flags().GetFloat64("spot")
	vol, _ := cmd.Flags().GetFloat64("vol")

	rate := app.Config.Pricing.Rate
	if cmd.Flags().Changed("rate") {
		rate, _ = cmd.Flags().GetFloat64("rate")
	}
	dividend := app.Config.Pricing.DividendYield
	if cmd.Flags().Changed("dividend") {
		dividend, _ = cmd.Flags().GetFloat64("dividend")
	}

	contract = models.ContractSpec{
		Strike:   strike,
		Maturity: maturity,
		Kind:     kind,
		Style:    style,
	}
	market = models.MarketState{
		Spot:          spot,
		Rate:          rate,
		Vol:           vol,
		DividendYield: dividend,
	}
	return contract, market, nil
}

// methodFromFlags resolves the pricing method and its parameters from flags
// and config.
func methodFromFlags(cmd *cobra.Command, app *App) (models.Method, pricing.Params, error) {
	methodStr, _ := cmd.Flags().GetString("method")
	if methodStr == "" {
		methodStr = app.Config.Pricing.DefaultMethod
	}
	method, err := models.ParseMethod(methodStr)
	if err != nil {
		return "", pricing.Params{}, err
	}

	params := pricing.DefaultParams()
	params.Steps = app.Config.Lattice.Steps
	params.Paths = app.Config.Simulation.Paths
	params.Seed = app.Config.Simulation.Seed
	params.Workers = app.Config.Simulation.Workers

	if cmd.Flags().Changed("steps") {
		params.Steps, _ = cmd.Flags().GetInt("steps")
	}
	if cmd.Flags().Changed("paths") {
		params.Paths, _ = cmd.Flags().GetInt("paths")
	}
	if cmd.Flags().Changed("seed") {
		params.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("workers") {
		params.Workers, _ = cmd.Flags().GetInt("workers")
	}

	return method, params, nil
}

func newPriceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price an option contract",
		Long: `Value a single option contract with the selected pricing method.

The analytic method prices European contracts with the Black-Scholes closed
form. The lattice method prices European and American contracts on a CRR
binomial tree. The simulation method prices European contracts by Monte Carlo
over geometric Brownian motion and reports a 95% confidence interval.`,
		Example: `  pricer price -s 100 -k 100 -t 1 -v 0.2
  pricer price -s 42 -k 40 -t 0.5 -v 0.2 -r 0.10 --kind put
  pricer price -s 100 -k 110 --style american --method lattice --steps 1000
  pricer price -s 100 -k 100 --method simulation --paths 200000 --check --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			symbol, _ := cmd.Flags().GetString("symbol")
			symbol = strings.ToUpper(symbol)
			check, _ := cmd.Flags().GetBool("check")
			save, _ := cmd.Flags().GetBool("save")
			note, _ := cmd.Flags().GetString("note")

			contract, market, err := contractFromFlags(cmd, app)
			if err != nil {
				output.Error("Invalid contract: %v", err)
				return err
			}
			method, params, err := methodFromFlags(cmd, app)
			if err != nil {
				output.Error("Invalid method: %v", err)
				return err
			}

			start := time.Now()
			result, err := pricing.Price(contract, market, method, params)
			if err != nil {
				output.Error("Pricing failed: %v", err)
				return err
			}
			elapsed := time.Since(start)

			var warning string
			if check {
				if warn := pricing.CrossCheck(result, contract, market, app.Config.Pricing.CrossCheckTolerance); warn != nil {
					warning = warn.Error()
					var nw *errors.NumericalWarning
					if errors.As(warn, &nw) {
						logging.LogCrossCheck(app.Logger, string(result.Method), nw.Computed, nw.Reference, nw.Tolerance)
					}
				}
			}

			var valuationID string
			if save {
				if app.Store == nil {
					output.Error("Store not initialized, cannot save valuation")
					return fmt.Errorf("store not initialized")
				}
				v := buildValuation(symbol, contract, market, result, params, note)
				if err := app.Store.SaveValuation(ctx, v); err != nil {
					output.Error("Failed to save valuation: %v", err)
					return err
				}
				valuationID = v.ID
			}

			logging.LogValuation(app.Logger, valuationID, symbol, string(result.Method), result.Price, elapsed)

			if output.IsJSON() {
				resp := map[string]interface{}{
					"symbol":   symbol,
					"price":    result.Price,
					"method":   result.Method,
					"contract": contract,
					"market":   market,
					"elapsed":  elapsed.String(),
				}
				if result.ConfidenceInterval != nil {
					resp["std_err"] = result.ConfidenceInterval.StdErr
					resp["ci_low"] = result.ConfidenceInterval.Low
					resp["ci_high"] = result.ConfidenceInterval.High
				}
				if result.Diagnostics != nil {
					resp["steps"] = result.Diagnostics.Steps
					resp["paths"] = result.Diagnostics.Paths
				}
				if warning != "" {
					resp["warning"] = warning
				}
				if valuationID != "" {
					resp["valuation_id"] = valuationID
				}
				return output.JSON(resp)
			}

			displayPrice(output, symbol, contract, market, result, elapsed)

			if warning != "" {
				output.Println()
				output.Warning("⚠ %s", warning)
			}
			if valuationID != "" {
				output.Println()
				output.Success("✓ Journaled as %s", valuationID)
			}
			return nil
		},
	}

	addContractFlags(cmd)
	addMethodFlags(cmd)
	cmd.Flags().String("symbol", "", "underlying symbol for the journal")
	cmd.Flags().Bool("check", false, "cross-check the price against the analytic reference")
	cmd.Flags().Bool("save", false, "save the valuation to the journal")
	cmd.Flags().String("note", "", "journal note")

	return cmd
}

func displayPrice(output *Output, symbol string, contract models.ContractSpec, market models.MarketState, result *models.PricingResult, elapsed time.Duration) {
	header := string(contract.Kind) + " " + FormatPrice(contract.Strike)
	if symbol != "" {
		header = symbol + " " + header
	}
	output.Bold("%s (%s)", header, strings.ToLower(string(contract.Style)))
	output.Println()

	output.Printf("  Price:     %s\n", output.BoldText(FormatPrice(result.Price)))
	output.Printf("  Method:    %s\n", result.Method)
	output.Printf("  Maturity:  %s\n", FormatMaturity(contract.Maturity))
	output.Printf("  Spot:      %s   Vol: %s   Rate: %s\n",
		FormatPrice(market.Spot), FormatVol(market.Vol), FormatRate(market.Rate))
	if market.DividendYield > 0 {
		output.Printf("  Dividend:  %s\n", FormatRate(market.DividendYield))
	}

	if result.ConfidenceInterval != nil {
		output.Println()
		output.Printf("  Std Err:   %s\n", FormatPrice(result.ConfidenceInterval.StdErr))
		output.Printf("  95%% CI:    %s\n", FormatCI(result.ConfidenceInterval))
	}

	if result.Diagnostics != nil {
		output.Println()
		if result.Diagnostics.Steps > 0 {
			output.Printf("  Steps:     %s\n", FormatCount(int64(result.Diagnostics.Steps)))
		}
		if result.Diagnostics.Paths > 0 {
			output.Printf("  Paths:     %s\n", FormatCount(int64(result.Diagnostics.Paths)))
		}
	}

	output.Println()
	output.Dim("  Elapsed: %s", FormatDuration(elapsed))
}

// buildValuation maps a pricing run onto a journal row.
func buildValuation(symbol string, contract models.ContractSpec, market models.MarketState, result *models.PricingResult, params pricing.Params, note string) *models.Valuation {
	if note == "" {
		note = "cli"
	}
	v := &models.Valuation{
		ID:       store.NewValuationID(),
		Symbol:   symbol,
		Contract: contract,
		Market:   market,
		Method:   result.Method,
		Price:    result.Price,
		Note:     note,
	}
	switch result.Method {
	case models.MethodLattice:
		v.Steps = params.Steps
	case models.MethodSimulation:
		v.Paths = params.Paths
		v.Seed = params.Seed
		if result.Diagnostics != nil {
			v.Steps = result.Diagnostics.Steps
		}
	}
	if result.ConfidenceInterval != nil {
		v.StdErr = result.ConfidenceInterval.StdErr
		v.CILow = result.ConfidenceInterval.Low
		v.CIHigh = result.ConfidenceInterval.High
	}
	return v
}

func newGreeksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "greeks",
		Short: "Compute option Greeks",
		Long: `Compute the full sensitivity set (Delta, Gamma, Vega, Theta, Rho).

The analytic method answers with closed forms. Lattice and simulation methods
estimate each Greek by central finite differences around the base inputs,
revaluing the bumped scenarios in parallel.`,
		Example: `  pricer greeks -s 100 -k 100 -t 1 -v 0.2
  pricer greeks -s 100 -k 100 --method lattice --steps 500
  pricer greeks -s 100 -k 100 --method lattice --bump 0.005`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			symbol, _ := cmd.Flags().GetString("symbol")
			symbol = strings.ToUpper(symbol)

			contract, market, err := contractFromFlags(cmd, app)
			if err != nil {
				output.Error("Invalid contract: %v", err)
				return err
			}
			method, params, err := methodFromFlags(cmd, app)
			if err != nil {
				output.Error("Invalid method: %v", err)
				return err
			}

			pricer, err := pricing.NewPricer(method, params)
			if err != nil {
				output.Error("Invalid method: %v", err)
				return err
			}

			engineCfg := greeks.Config{
				RelativeBump: app.Config.Greeks.RelativeBump,
				MinBump:      app.Config.Greeks.MinBump,
				Workers:      app.Config.Greeks.Workers,
			}
			if cmd.Flags().Changed("bump") {
				engineCfg.RelativeBump, _ = cmd.Flags().GetFloat64("bump")
			}

			start := time.Now()
			result, err := greeks.NewEngine(pricer, engineCfg).Compute(contract, market)
			if err != nil {
				output.Error("Greeks computation failed: %v", err)
				return err
			}
			elapsed := time.Since(start)

			logging.LogGreeks(app.Logger, symbol, string(result.Method), result.Delta, result.Gamma)

			if output.IsJSON() {
				resp := map[string]interface{}{
					"symbol":   symbol,
					"greeks":   result,
					"contract": contract,
					"market":   market,
					"elapsed":  elapsed.String(),
				}
				return output.JSON(resp)
			}

			displayGreeks(output, symbol, contract, result, elapsed)
			return nil
		},
	}

	addContractFlags(cmd)
	addMethodFlags(cmd)
	cmd.Flags().String("symbol", "", "underlying symbol for logging")
	cmd.Flags().Float64("bump", 0, "relative bump for finite differences (defaults to config)")

	return cmd
}

func displayGreeks(output *Output, symbol string, contract models.ContractSpec, g *models.GreeksResult, elapsed time.Duration) {
	header := "Option Greeks"
	if symbol != "" {
		header = header + " — " + symbol
	}
	output.Bold("%s", header)
	output.Printf("  %s %s, maturity %s\n\n", contract.Kind, FormatPrice(contract.Strike), FormatMaturity(contract.Maturity))

	output.Printf("  Delta (Δ):  %s\n", output.BoldText(FormatGreek(g.Delta)))
	output.Printf("  Gamma (Γ):  %.6f\n", g.Gamma)
	output.Printf("  Vega (ν):   %s\n", FormatGreek(g.Vega))
	output.Printf("  Theta (Θ):  %s\n", output.Signed(g.Theta, FormatGreek(g.Theta)))
	output.Printf("  Rho (ρ):    %s\n", FormatGreek(g.Rho))
	output.Println()

	output.Printf("  Method: %s\n", g.Method)
	if g.Bumps != nil {
		output.Dim("  Bumps:  spot %.4f  vol %.6f  time %.6f  rate %.6f",
			g.Bumps.Spot, g.Bumps.Vol, g.Bumps.Time, g.Bumps.Rate)
	}
	output.Dim("  Elapsed: %s", FormatDuration(elapsed))
}
