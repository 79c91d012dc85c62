// Package cli implements the pricer command-line interface.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"option-pricer/internal/analysis/indicators"
	"option-pricer/internal/logging"
	"option-pricer/internal/marketdata"
	"option-pricer/internal/models"
	"option-pricer/internal/performance"
)

// addDataCommands adds the candle history commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Candle history management",
		Long:  "Import, inspect and estimate volatility from candle history.",
	}

	cmd.AddCommand(newDataLoadCmd(app))
	cmd.AddCommand(newDataShowCmd(app))
	cmd.AddCommand(newDataVolCmd(app))
	cmd.AddCommand(newDataIndicatorsCmd(app))
	cmd.AddCommand(newDataSynthCmd(app))

	rootCmd.AddCommand(cmd)
}

// resolveProvider opens the candle source selected by flags, falling back to
// the configured defaults.
func resolveProvider(cmd *cobra.Command, app *App) (marketdata.Provider, error) {
	sourceStr, _ := cmd.Flags().GetString("source")
	if sourceStr == "" {
		sourceStr = app.Config.Data.Source
	}
	source, err := marketdata.ParseSource(sourceStr)
	if err != nil {
		return nil, err
	}

	csvPath, _ := cmd.Flags().GetString("csv")
	if csvPath == "" {
		csvPath = app.Config.Data.CSVPath
	}

	return marketdata.OpenSource(source, csvPath, app.Store, app.Config.Data.Timeframe)
}

func newDataLoadCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <symbol>",
		Short: "Import candles from CSV into the store",
		Long: `Read daily candles from a CSV file and persist them under the given
symbol. Rows are validated and inserted in batches. Re-importing the same
file is safe: rows replace on (symbol, timeframe, timestamp).`,
		Example: `  pricer data load ACME --csv candles.csv
  pricer data load SPX --csv spx_daily.csv --timeframe day`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			csvPath, _ := cmd.Flags().GetString("csv")
			timeframe, _ := cmd.Flags().GetString("timeframe")
			if timeframe == "" {
				timeframe = app.Config.Data.Timeframe
			}

			if app.Store == nil {
				output.Error("Store not initialized")
				return fmt.Errorf("store not initialized")
			}

			start := time.Now()
			candles, err := marketdata.ReadCandlesCSV(csvPath)
			if err != nil {
				output.Error("Failed to read CSV: %v", err)
				return err
			}

			batcher := performance.NewBatchProcessor[models.Candle](500, func(batch []models.Candle) error {
				return app.Store.SaveCandles(ctx, symbol, timeframe, batch)
			})
			for _, c := range candles {
				if err := batcher.Add(c); err != nil {
					output.Error("Failed to save candles: %v", err)
					return err
				}
			}
			if err := batcher.Flush(); err != nil {
				output.Error("Failed to save candles: %v", err)
				return err
			}
			elapsed := time.Since(start)

			logging.LogImport(app.Logger, symbol, csvPath, len(candles), elapsed)

			// Freshness reflects everything stored, not just this file.
			latest, err := app.Store.CandlesFreshness(ctx, symbol, timeframe)
			if err != nil {
				output.Warning("Could not read candle freshness: %v", err)
			}

			if output.IsJSON() {
				resp := map[string]interface{}{
					"symbol":    symbol,
					"timeframe": timeframe,
					"count":     len(candles),
					"elapsed":   elapsed.String(),
				}
				if !latest.IsZero() {
					resp["data_through"] = latest.Format("2006-01-02")
				}
				return output.JSON(resp)
			}

			output.Success("✓ Imported %d candles for %s (%s)", len(candles), symbol, FormatDuration(elapsed))
			if len(candles) > 0 {
				output.Dim("  Range: %s to %s",
					FormatDate(candles[0].Timestamp), FormatDate(candles[len(candles)-1].Timestamp))
			}
			if !latest.IsZero() {
				output.Dim("  Data through %s", FormatDate(latest))
			}
			return nil
		},
	}

	cmd.Flags().String("csv", "", "CSV file with date,open,high,low,close,volume columns")
	cmd.Flags().String("timeframe", "", "timeframe label (defaults to config)")
	cmd.MarkFlagRequired("csv")

	return cmd
}

func newDataShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <symbol>",
		Short: "Display candle history",
		Long:  "Display recent candles from the configured source.",
		Example: `  pricer data show ACME
  pricer data show ACME --limit 10 --source store
  pricer data show ACME --source csv --csv candles.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			limit, _ := cmd.Flags().GetInt("limit")

			provider, err := resolveProvider(cmd, app)
			if err != nil {
				output.Error("Failed to open candle source: %v", err)
				return err
			}

			candles, err := provider.Candles(ctx, symbol, limit)
			if err != nil {
				output.Error("Failed to load candles: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":  symbol,
					"source":  provider.Name(),
					"count":   len(candles),
					"candles": candles,
				})
			}

			if len(candles) == 0 {
				output.Info("No candles for %s from source %s", symbol, provider.Name())
				return nil
			}

			return displayCandles(output, symbol, provider.Name(), candles)
		},
	}

	cmd.Flags().IntP("limit", "l", 20, "number of candles to display")
	cmd.Flags().String("source", "", "candle source: csv, synthetic, store (defaults to config)")
	cmd.Flags().String("csv", "", "CSV file for the csv source")

	return cmd
}

func displayCandles(output *Output, symbol, source string, candles []models.Candle) error {
	output.Bold("%s — %d candles", symbol, len(candles))
	if quote, err := marketdata.QuoteFromCandles(symbol, candles); err == nil {
		change := output.Signed(quote.Change, fmt.Sprintf("%s (%s)",
			FormatPrice(quote.Change), FormatPercent(quote.ChangePercent)))
		output.Printf("  Last: %s  %s  as of %s\n",
			output.BoldText(FormatMoney(quote.Spot)), change, FormatDate(quote.Timestamp))
	}
	output.Dim("  Source: %s", source)
	output.Println()

	table := NewTable(output, "Date", "Open", "High", "Low", "Close", "Volume", "Change")

	for i, c := range candles {
		change := "-"
		if i > 0 && candles[i-1].Close != 0 {
			pct := (c.Close - candles[i-1].Close) / candles[i-1].Close * 100
			change = output.Signed(pct, FormatPercent(pct))
		}

		table.AddRow(
			FormatDate(c.Timestamp),
			FormatPrice(c.Open),
			output.Green(FormatPrice(c.High)),
			output.Red(FormatPrice(c.Low)),
			FormatPrice(c.Close),
			FormatVolume(c.Volume),
			change,
		)
	}

	table.Render()
	return nil
}

func newDataVolCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vol <symbol>",
		Short: "Estimate realized volatility and drift",
		Long: `Estimate annualized realized volatility and drift from close-to-close
log returns over the configured window.

The estimate feeds straight into pricing: use the reported vol as the --vol
input and the spot as --spot.`,
		Example: `  pricer data vol ACME
  pricer data vol ACME --window 90 --source store
  pricer data vol SPX --source csv --csv spx_daily.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			window, _ := cmd.Flags().GetInt("window")
			if window <= 0 {
				window = app.Config.Data.Window
			}

			provider, err := resolveProvider(cmd, app)
			if err != nil {
				output.Error("Failed to open candle source: %v", err)
				return err
			}

			candles, err := provider.Candles(ctx, symbol, window)
			if err != nil {
				output.Error("Failed to load candles: %v", err)
				return err
			}

			est, err := marketdata.EstimateVol(candles)
			if err != nil {
				output.Error("Estimation failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":   symbol,
					"source":   provider.Name(),
					"estimate": est,
				})
			}

			title := "Realized Volatility — " + symbol
			output.Box(title, []string{
				fmt.Sprintf("Vol:     %s annualized", FormatVol(est.Vol)),
				fmt.Sprintf("Drift:   %s annualized", FormatPercent(est.Drift*100)),
				fmt.Sprintf("Spot:    %s", FormatMoney(est.Spot)),
				fmt.Sprintf("Samples: %d log returns", est.Samples),
				fmt.Sprintf("Window:  %s to %s", FormatDate(est.From), FormatDate(est.To)),
			})
			output.Println()
			output.Dim("  Price with: pricer price -s %.2f -v %.4f", est.Spot, est.Vol)
			return nil
		},
	}

	cmd.Flags().Int("window", 0, "candles in the estimation window (defaults to config)")
	cmd.Flags().String("source", "", "candle source: csv, synthetic, store (defaults to config)")
	cmd.Flags().String("csv", "", "CSV file for the csv source")

	return cmd
}

func newDataIndicatorsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "indicators <symbol>",
		Aliases: []string{"ta"},
		Short:   "Calculate technical indicators over candle history",
		Long: `Calculate moving averages, RSI, MACD and annualized historical
volatility over recent candles. Indicators whose warmup exceeds the window
are skipped.

The HV value is directly usable as the --vol input to pricing.`,
		Example: `  pricer data indicators ACME
  pricer data ta ACME --limit 100 --source store
  pricer data indicators SPX --source csv --csv spx_daily.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				limit = app.Config.Data.Window
			}

			provider, err := resolveProvider(cmd, app)
			if err != nil {
				output.Error("Failed to open candle source: %v", err)
				return err
			}

			candles, err := provider.Candles(ctx, symbol, limit)
			if err != nil {
				output.Error("Failed to load candles: %v", err)
				return err
			}
			if len(candles) == 0 {
				output.Info("No candles for %s from source %s", symbol, provider.Name())
				return nil
			}

			singleIndics := []indicators.Indicator{
				indicators.NewSMA(20),
				indicators.NewSMA(50),
				indicators.NewEMA(20),
				indicators.NewRSI(14),
				indicators.NewHistoricalVolatility(20),
			}
			macd := indicators.NewMACD(12, 26, 9)

			engine := indicators.NewEngine(0)
			for _, ind := range singleIndics {
				engine.RegisterIndicator(ind)
			}
			engine.RegisterMultiIndicator(macd)

			singles, multis, err := engine.CalculateAll(ctx, candles)
			if err != nil {
				output.Error("Calculation failed: %v", err)
				return err
			}

			if output.IsJSON() {
				latest := make(map[string]interface{})
				for name, values := range singles {
					latest[name] = values[len(values)-1]
				}
				for name, series := range multis {
					m := make(map[string]float64, len(series))
					for key, values := range series {
						m[key] = values[len(values)-1]
					}
					latest[name] = m
				}
				return output.JSON(map[string]interface{}{
					"symbol":     symbol,
					"source":     provider.Name(),
					"count":      len(candles),
					"indicators": latest,
				})
			}

			last := candles[len(candles)-1]
			output.Bold("%s — technical indicators (%d candles)", symbol, len(candles))
			output.Printf("  Last close: %s  as of %s\n",
				output.BoldText(FormatMoney(last.Close)), FormatDate(last.Timestamp))
			output.Dim("  Source: %s", provider.Name())
			output.Println()

			table := NewTable(output, "Indicator", "Window", "Latest")
			for _, ind := range singleIndics {
				name := ind.Name()
				values, ok := singles[name]
				if !ok {
					table.AddRow(name, fmt.Sprintf("%d", ind.Period()), output.DimText("- (needs more candles)"))
					continue
				}
				table.AddRow(name, fmt.Sprintf("%d", ind.Period()), formatIndicatorValue(name, values[len(values)-1]))
			}
			if series, ok := multis[macd.Name()]; ok {
				n := len(candles)
				window := fmt.Sprintf("%d", macd.Period())
				table.AddRow("MACD", window, FormatPrice(series["macd"][n-1]))
				table.AddRow("MACD signal", window, FormatPrice(series["signal"][n-1]))
				hist := series["histogram"][n-1]
				table.AddRow("MACD histogram", window, output.Signed(hist, FormatPrice(hist)))
			} else {
				table.AddRow("MACD", fmt.Sprintf("%d", macd.Period()), output.DimText("- (needs more candles)"))
			}
			table.Render()

			if values, ok := singles["HV_20"]; ok {
				output.Println()
				output.Dim("  Price with: pricer price -s %.2f -v %.4f", last.Close, values[len(values)-1])
			}
			return nil
		},
	}

	cmd.Flags().IntP("limit", "l", 0, "candles in the calculation window (defaults to config)")
	cmd.Flags().String("source", "", "candle source: csv, synthetic, store (defaults to config)")
	cmd.Flags().String("csv", "", "CSV file for the csv source")

	return cmd
}

// formatIndicatorValue picks a display format from the indicator family:
// oscillators print as plain numbers, volatility as a percentage, and
// everything else as a price level.
func formatIndicatorValue(name string, v float64) string {
	switch {
	case strings.HasPrefix(name, "RSI"):
		return fmt.Sprintf("%.2f", v)
	case strings.HasPrefix(name, "HV"):
		return FormatVol(v)
	default:
		return FormatPrice(v)
	}
}

func newDataSynthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synth <symbol>",
		Short: "Generate synthetic candle history",
		Long: `Generate daily candles from geometric Brownian motion with known drift
and volatility. Useful for exercising the estimator and store without real
market data: the vol estimate over a long synthetic window should recover the
generating parameters.`,
		Example: `  pricer data synth ACME --days 252
  pricer data synth ACME --days 1000 --vol 0.3 --drift 0.08 --out acme.csv
  pricer data synth ACME --days 252 --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			days, _ := cmd.Flags().GetInt("days")
			startPrice, _ := cmd.Flags().GetFloat64("start-price")
			vol, _ := cmd.Flags().GetFloat64("vol")
			drift, _ := cmd.Flags().GetFloat64("drift")
			seed, _ := cmd.Flags().GetInt64("seed")
			outPath, _ := cmd.Flags().GetString("out")
			save, _ := cmd.Flags().GetBool("save")

			provider := marketdata.NewSyntheticProvider(marketdata.SyntheticConfig{
				StartPrice: startPrice,
				Drift:      drift,
				Vol:        vol,
				Seed:       seed,
			})
			candles, err := provider.Candles(ctx, symbol, days)
			if err != nil {
				output.Error("Generation failed: %v", err)
				return err
			}

			if outPath != "" {
				if err := marketdata.WriteCandlesCSV(outPath, candles); err != nil {
					output.Error("Failed to write CSV: %v", err)
					return err
				}
			}
			if save {
				if app.Store == nil {
					output.Error("Store not initialized")
					return fmt.Errorf("store not initialized")
				}
				if err := app.Store.SaveCandles(ctx, symbol, app.Config.Data.Timeframe, candles); err != nil {
					output.Error("Failed to save candles: %v", err)
					return err
				}
			}

			if output.IsJSON() {
				resp := map[string]interface{}{
					"symbol": symbol,
					"count":  len(candles),
					"vol":    vol,
					"drift":  drift,
					"seed":   seed,
				}
				if outPath != "" {
					resp["out"] = outPath
				}
				resp["saved"] = save
				return output.JSON(resp)
			}

			if outPath == "" && !save {
				return displayCandles(output, symbol, "synthetic", candles)
			}
			if outPath != "" {
				output.Success("✓ Wrote %d candles to %s", len(candles), outPath)
			}
			if save {
				output.Success("✓ Saved %d candles for %s", len(candles), symbol)
			}
			return nil
		},
	}

	cmd.Flags().Int("days", 252, "number of daily candles")
	cmd.Flags().Float64("start-price", 100, "starting price")
	cmd.Flags().Float64("vol", 0.2, "annualized volatility of the generator")
	cmd.Flags().Float64("drift", 0.05, "annualized drift of the generator")
	cmd.Flags().Int64("seed", 42, "generator seed")
	cmd.Flags().String("out", "", "write candles to this CSV file")
	cmd.Flags().Bool("save", false, "save candles into the store")

	return cmd
}
