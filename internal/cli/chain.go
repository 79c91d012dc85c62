// Package cli implements the pricer command-line interface.
package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"option-pricer/internal/greeks"
	"option-pricer/internal/models"
	"option-pricer/internal/pricing"
	"option-pricer/pkg/utils"
)

// addChainCommands adds the strike ladder command.
func addChainCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newChainCmd(app))
}

// chainRow is one strike of the priced ladder.
type chainRow struct {
	Strike    float64 `json:"strike"`
	CallPrice float64 `json:"call_price"`
	CallDelta float64 `json:"call_delta"`
	PutPrice  float64 `json:"put_price"`
	PutDelta  float64 `json:"put_delta"`
	ATM       bool    `json:"atm"`
}

func newChainCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Price a strike ladder around spot",
		Long: `Price calls and puts across a ladder of strikes centered on the
at-the-money strike.

Both sides of every strike are valued with the selected method, with delta
from the Greeks engine. In-the-money prices are highlighted.`,
		Example: `  pricer chain -s 100 -t 30d -v 0.2
  pricer chain -s 19500 --strikes 8 --step 50 --symbol NIFTY
  pricer chain -s 100 --style american --method lattice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			symbol, _ := cmd.Flags().GetString("symbol")
			symbol = strings.ToUpper(symbol)
			spot, _ := cmd.Flags().GetFloat64("spot")
			maturityStr, _ := cmd.Flags().GetString("maturity")
			vol, _ := cmd.Flags().GetFloat64("vol")
			styleStr, _ := cmd.Flags().GetString("style")
			count, _ := cmd.Flags().GetInt("strikes")
			step, _ := cmd.Flags().GetFloat64("step")

			maturity, err := utils.ParseMaturity(maturityStr)
			if err != nil {
				output.Error("Invalid maturity: %v", err)
				return err
			}
			style, err := models.ParseExerciseStyle(styleStr)
			if err != nil {
				output.Error("Invalid style: %v", err)
				return err
			}

			rate := app.Config.Pricing.Rate
			if cmd.Flags().Changed("rate") {
				rate, _ = cmd.Flags().GetFloat64("rate")
			}
			dividend := app.Config.Pricing.DividendYield
			if cmd.Flags().Changed("dividend") {
				dividend, _ = cmd.Flags().GetFloat64("dividend")
			}
			market := models.MarketState{Spot: spot, Rate: rate, Vol: vol, DividendYield: dividend}

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
			engine := greeks.NewEngine(pricer, greeks.Config{
				RelativeBump: app.Config.Greeks.RelativeBump,
				MinBump:      app.Config.Greeks.MinBump,
				Workers:      app.Config.Greeks.Workers,
			})

			if count < 1 {
				count = 5
			}
			if step <= 0 {
				// Default to roughly 2.5% of spot, kept on a half-point grid.
				step = math.Max(0.5, math.Round(spot*0.05)/2)
			}
			atm := math.Round(spot/step) * step
			if atm <= 0 {
				atm = step
			}

			rows := make([]chainRow, 0, 2*count+1)
			for i := -count; i <= count; i++ {
				strike := atm + float64(i)*step
				if strike <= 0 {
					continue
				}

				row := chainRow{Strike: strike, ATM: i == 0}
				for _, kind := range []models.OptionKind{models.OptionKindCall, models.OptionKindPut} {
					contract := models.ContractSpec{
						Strike:   strike,
						Maturity: maturity,
						Kind:     kind,
						Style:    style,
					}
					res, err := pricer.Price(contract, market)
					if err != nil {
						output.Error("Pricing failed at strike %s: %v", FormatPrice(strike), err)
						return err
					}
					g, err := engine.Compute(contract, market)
					if err != nil {
						output.Error("Greeks failed at strike %s: %v", FormatPrice(strike), err)
						return err
					}
					if kind == models.OptionKindCall {
						row.CallPrice = res.Price
						row.CallDelta = g.Delta
					} else {
						row.PutPrice = res.Price
						row.PutDelta = g.Delta
					}
				}
				rows = append(rows, row)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":   symbol,
					"spot":     spot,
					"maturity": maturity,
					"vol":      vol,
					"method":   method,
					"style":    style,
					"rows":     rows,
				})
			}

			displayChain(output, symbol, market, maturity, method, rows)
			return nil
		},
	}

	cmd.Flags().Float64P("spot", "s", 100, "underlying spot price")
	cmd.Flags().StringP("maturity", "t", "30d", "time to expiry: years (0.5), months (6m), days (30d) or a date (2026-12-18)")
	cmd.Flags().Float64P("vol", "v", 0.2, "annualized volatility")
	cmd.Flags().Float64P("rate", "r", 0, "continuously compounded risk-free rate (defaults to config)")
	cmd.Flags().Float64P("dividend", "q", 0, "continuous dividend yield (defaults to config)")
	cmd.Flags().String("style", "european", "exercise style (european, american)")
	cmd.Flags().String("symbol", "", "underlying symbol for display")
	cmd.Flags().Int("strikes", 5, "number of strikes each side of ATM")
	cmd.Flags().Float64("step", 0, "strike spacing (0 derives it from spot)")
	addMethodFlags(cmd)

	return cmd
}

func displayChain(output *Output, symbol string, market models.MarketState, maturity float64, method models.Method, rows []chainRow) {
	title := "Option Chain"
	if symbol != "" {
		title = title + " — " + symbol
	}
	color.Cyan(title)
	output.Printf("  Spot: %s  Maturity: %s  Vol: %s  Method: %s\n\n",
		FormatPrice(market.Spot), FormatMaturity(maturity), FormatVol(market.Vol), method)

	output.Printf("  %12s %9s │ %10s │ %12s %9s\n",
		"Call Price", "Call Δ", "Strike", "Put Price", "Put Δ")
	output.Println("  " + strings.Repeat("─", 62))

	for _, row := range rows {
		callStr := fmt.Sprintf("%12s", FormatPrice(row.CallPrice))
		putStr := fmt.Sprintf("%12s", FormatPrice(row.PutPrice))
		strikeStr := fmt.Sprintf("%10s", FormatPrice(row.Strike))

		// Highlight the in-the-money side.
		if Moneyness(models.OptionKindCall, market.Spot, row.Strike) == MoneynessITM {
			callStr = color.GreenString(callStr)
		}
		if Moneyness(models.OptionKindPut, market.Spot, row.Strike) == MoneynessITM {
			putStr = color.GreenString(putStr)
		}

		marker := ""
		if row.ATM {
			strikeStr = color.YellowString(strikeStr)
			marker = color.YellowString(" ← ATM")
		}

		output.Printf("  %s %9s │ %s │ %s %9s%s\n",
			callStr, FormatGreek(row.CallDelta), strikeStr, putStr, FormatGreek(row.PutDelta), marker)
	}
}
