// Package cli implements the pricer command-line interface.
package cli

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"option-pricer/internal/models"
	"option-pricer/internal/pricing"
)

// addSimulationCommands adds the Monte Carlo and convergence commands.
func addSimulationCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSimulateCmd(app))
	rootCmd.AddCommand(newConvergeCmd(app))
}

func newSimulateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Monte Carlo valuation with diagnostics",
		Long: `Price a European contract by Monte Carlo and report the standard error
and 95% confidence interval.

Paths are simulated in fixed-size blocks with per-block generators, so the
price for a given seed is identical for any worker count. With --dump-paths a
sample of full simulated paths is written to CSV for external plotting.`,
		Example: `  pricer simulate -s 100 -k 100 -t 1 -v 0.2 --paths 100000
  pricer simulate -s 100 -k 100 --paths 50000 --seed 7 --workers 4
  pricer simulate -s 100 -k 100 --dump-paths paths.csv --sample-paths 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			contract, market, err := contractFromFlags(cmd, app)
			if err != nil {
				output.Error("Invalid contract: %v", err)
				return err
			}

			paths, _ := cmd.Flags().GetInt("paths")
			if paths <= 0 {
				paths = app.Config.Simulation.Paths
			}
			seed := app.Config.Simulation.Seed
			if cmd.Flags().Changed("seed") {
				seed, _ = cmd.Flags().GetInt64("seed")
			}
			workers, _ := cmd.Flags().GetInt("workers")
			if workers <= 0 {
				workers = app.Config.Simulation.Workers
			}
			dumpPath, _ := cmd.Flags().GetString("dump-paths")
			samplePaths, _ := cmd.Flags().GetInt("sample-paths")
			if dumpPath != "" && samplePaths <= 0 {
				samplePaths = 20
			}

			pricer := pricing.NewSimulationPricer(pricing.SimulationConfig{
				Paths:       paths,
				Seed:        seed,
				Workers:     workers,
				SamplePaths: samplePaths,
			})

			start := time.Now()
			result, err := pricer.Price(contract, market)
			if err != nil {
				output.Error("Simulation failed: %v", err)
				return err
			}
			elapsed := time.Since(start)

			var dumped int
			if dumpPath != "" && result.Diagnostics != nil {
				dumped = len(result.Diagnostics.SamplePaths)
				if err := writeSamplePaths(dumpPath, result.Diagnostics.SamplePaths); err != nil {
					output.Error("Failed to dump paths: %v", err)
					return err
				}
			}

			if output.IsJSON() {
				resp := map[string]interface{}{
					"price":    result.Price,
					"std_err":  result.ConfidenceInterval.StdErr,
					"ci_low":   result.ConfidenceInterval.Low,
					"ci_high":  result.ConfidenceInterval.High,
					"paths":    result.Diagnostics.Paths,
					"steps":    result.Diagnostics.Steps,
					"seed":     seed,
					"contract": contract,
					"market":   market,
					"elapsed":  elapsed.String(),
				}
				if dumpPath != "" {
					resp["dump_file"] = dumpPath
					resp["dumped_paths"] = dumped
				}
				return output.JSON(resp)
			}

			output.Bold("Monte Carlo — %s %s", contract.Kind, FormatPrice(contract.Strike))
			output.Println()
			output.Printf("  Price:     %s\n", output.BoldText(FormatPrice(result.Price)))
			output.Printf("  Std Err:   %s\n", FormatPrice(result.ConfidenceInterval.StdErr))
			output.Printf("  95%% CI:    %s\n", FormatCI(result.ConfidenceInterval))
			output.Println()
			output.Printf("  Paths:     %s\n", FormatCount(int64(result.Diagnostics.Paths)))
			output.Printf("  Steps:     %d (daily)\n", result.Diagnostics.Steps)
			output.Printf("  Seed:      %d\n", seed)
			output.Println()
			output.Dim("  Elapsed: %s", FormatDuration(elapsed))

			if dumpPath != "" {
				output.Println()
				output.Success("✓ Dumped %d paths to %s", dumped, dumpPath)
			}
			return nil
		},
	}

	addContractFlags(cmd)
	cmd.Flags().Int("paths", 0, "simulation paths (defaults to config)")
	cmd.Flags().Int64("seed", 0, "simulation seed (defaults to config)")
	cmd.Flags().Int("workers", 0, "simulation workers, 0 uses all CPUs")
	cmd.Flags().String("dump-paths", "", "write sampled paths to this CSV file")
	cmd.Flags().Int("sample-paths", 0, "number of full paths to record")

	return cmd
}

// pathPoint is one CSV row of a dumped simulation path.
type pathPoint struct {
	Path  int     `csv:"path"`
	Step  int     `csv:"step"`
	Price float64 `csv:"price"`
}

// writeSamplePaths writes recorded paths in long form, one row per step.
// Step 0 is the spot.
func writeSamplePaths(path string, samples [][]float64) error {
	rows := make([]pathPoint, 0, len(samples)*64)
	for i, trail := range samples {
		for step, price := range trail {
			rows = append(rows, pathPoint{Path: i, Step: step, Price: price})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}
	defer f.Close()

	return gocsv.MarshalFile(&rows, f)
}

func newConvergeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "converge",
		Short: "Lattice convergence sweep against the analytic reference",
		Long: `Price a European contract on binomial lattices of increasing depth and
compare each price against the Black-Scholes reference.

The CRR tree converges at first order, so doubling the step count should
roughly halve the error. Useful for picking a step count that balances
accuracy against run time.`,
		Example: `  pricer converge -s 100 -k 100 -t 1 -v 0.2
  pricer converge -s 42 -k 40 --kind put --start 25 --levels 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			contract, market, err := contractFromFlags(cmd, app)
			if err != nil {
				output.Error("Invalid contract: %v", err)
				return err
			}
			if contract.Style != models.ExerciseEuropean {
				output.Error("Convergence needs an analytic reference, which only exists for European contracts")
				return fmt.Errorf("no analytic reference for %s style", contract.Style)
			}

			startSteps, _ := cmd.Flags().GetInt("start")
			levels, _ := cmd.Flags().GetInt("levels")
			if startSteps < 1 {
				startSteps = 10
			}
			if levels < 1 {
				levels = 7
			}

			ref, err := pricing.NewAnalyticPricer().Price(contract, market)
			if err != nil {
				output.Error("Analytic reference failed: %v", err)
				return err
			}

			type levelResult struct {
				Steps   int     `json:"steps"`
				Price   float64 `json:"price"`
				Error   float64 `json:"abs_error"`
				Ratio   float64 `json:"error_ratio"`
				Elapsed string  `json:"elapsed"`
			}
			results := make([]levelResult, 0, levels)

			steps := startSteps
			var prevErr float64
			for i := 0; i < levels; i++ {
				if !output.IsJSON() {
					output.Progress(i, levels, "Sweeping lattice depth")
				}

				start := time.Now()
				res, err := pricing.NewLatticePricer(steps).Price(contract, market)
				if err != nil {
					output.Error("Lattice pricing failed at %d steps: %v", steps, err)
					return err
				}
				elapsed := time.Since(start)

				absErr := math.Abs(res.Price - ref.Price)
				ratio := 0.0
				if i > 0 && absErr > 0 {
					ratio = prevErr / absErr
				}
				results = append(results, levelResult{
					Steps:   steps,
					Price:   res.Price,
					Error:   absErr,
					Ratio:   ratio,
					Elapsed: FormatDuration(elapsed),
				})
				prevErr = absErr
				steps *= 2
			}
			if !output.IsJSON() {
				output.Progress(levels, levels, "Sweeping lattice depth")
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"reference": ref.Price,
					"levels":    results,
				})
			}

			output.Println()
			output.Bold("Lattice Convergence — %s %s", contract.Kind, FormatPrice(contract.Strike))
			output.Printf("  Analytic reference: %s\n\n", output.BoldText(FormatPrice(ref.Price)))

			table := NewTable(output, "Steps", "Price", "Abs Error", "Ratio", "Time")
			for _, r := range results {
				ratioStr := "-"
				if r.Ratio > 0 {
					ratioStr = fmt.Sprintf("%.2fx", r.Ratio)
				}
				table.AddRow(
					FormatCount(int64(r.Steps)),
					fmt.Sprintf("%.6f", r.Price),
					fmt.Sprintf("%.6f", r.Error),
					ratioStr,
					r.Elapsed,
				)
			}
			table.Render()

			output.Println()
			output.Dim("  Ratio is previous error over current error; ~2x per doubling is first-order convergence.")
			return nil
		},
	}

	addContractFlags(cmd)
	cmd.Flags().Int("start", 10, "starting step count")
	cmd.Flags().Int("levels", 7, "number of doublings to sweep")

	return cmd
}
