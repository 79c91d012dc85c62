// Package cli implements the pricer command-line interface.
package cli

import (
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"option-pricer/internal/models"
	"option-pricer/internal/performance"
	"option-pricer/internal/pricing"
)

// addBenchCommands adds the benchmark command.
func addBenchCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newBenchCmd(app))
}

func newBenchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the pricing engines",
		Long: `Time all three pricing engines on a reference contract (at-the-money
European call, spot 100, one year, 20% vol, 5% rate) and report per-run
latency, simulation worker scaling and memory use.`,
		Example: `  pricer bench
  pricer bench --iters 50000 --paths 200000
  pricer bench --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			iters, _ := cmd.Flags().GetInt("iters")
			steps, _ := cmd.Flags().GetInt("steps")
			paths, _ := cmd.Flags().GetInt("paths")
			if steps <= 0 {
				steps = app.Config.Lattice.Steps
			}
			if paths <= 0 {
				paths = app.Config.Simulation.Paths
			}
			seed := app.Config.Simulation.Seed

			contract := models.ContractSpec{
				Strike:   100,
				Maturity: 1,
				Kind:     models.OptionKindCall,
				Style:    models.ExerciseEuropean,
			}
			market := models.MarketState{Spot: 100, Rate: 0.05, Vol: 0.2}

			analytic, err := timeAnalytic(contract, market, iters)
			if err != nil {
				output.Error("Analytic benchmark failed: %v", err)
				return err
			}

			lattice, err := timeLattice(contract, market, steps)
			if err != nil {
				output.Error("Lattice benchmark failed: %v", err)
				return err
			}

			workers := runtime.NumCPU()
			single, err := timeSimulation(contract, market, paths, seed, 1)
			if err != nil {
				output.Error("Simulation benchmark failed: %v", err)
				return err
			}
			parallel, err := timeSimulation(contract, market, paths, seed, workers)
			if err != nil {
				output.Error("Simulation benchmark failed: %v", err)
				return err
			}

			speedup := 0.0
			if parallel.Elapsed > 0 {
				speedup = float64(single.Elapsed) / float64(parallel.Elapsed)
			}
			deterministic := single.Price == parallel.Price

			mem := performance.ReadMemStats()

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"analytic": analytic,
					"lattice":  lattice,
					"simulation": map[string]interface{}{
						"paths":         paths,
						"single":        single,
						"parallel":      parallel,
						"workers":       workers,
						"speedup":       speedup,
						"deterministic": deterministic,
					},
					"memory": mem,
				})
			}

			color.Cyan("Pricing Benchmark — ATM European call, S=100 K=100 T=1y σ=20%% r=5%%")
			output.Println()

			table := NewTable(output, "Method", "Runs", "Total", "Per Run", "Price")
			table.AddRow("analytic", FormatCount(int64(analytic.Runs)),
				FormatDuration(analytic.Elapsed), FormatDuration(analytic.PerRun()), FormatPrice(analytic.Price))
			table.AddRow("lattice", FormatCount(int64(lattice.Runs)),
				FormatDuration(lattice.Elapsed), FormatDuration(lattice.PerRun()), FormatPrice(lattice.Price))
			table.AddRow("simulation", "1",
				FormatDuration(parallel.Elapsed), FormatDuration(parallel.Elapsed), FormatPrice(parallel.Price))
			table.Render()
			output.Dim("  Lattice: %s steps. Simulation: %s paths, %d workers.",
				FormatCount(int64(steps)), FormatCount(int64(paths)), workers)
			output.Println()

			output.Bold("Worker Scaling")
			output.Printf("  1 worker:   %s\n", FormatDuration(single.Elapsed))
			output.Printf("  %d workers:  %s\n", workers, FormatDuration(parallel.Elapsed))
			output.Printf("  Speedup:    %.2fx\n", speedup)
			if deterministic {
				output.Success("  ✓ Identical price at every worker count")
			} else {
				output.Warning("  ⚠ Price differs across worker counts")
			}
			output.Println()

			output.Bold("Memory")
			output.Printf("  Alloc:        %s\n", performance.FormatBytes(mem.Alloc))
			output.Printf("  Heap Objects: %s\n", FormatCount(int64(mem.HeapObjects)))
			output.Printf("  Sys:          %s\n", performance.FormatBytes(mem.Sys))
			output.Printf("  GC Cycles:    %d\n", mem.NumGC)
			output.Printf("  Goroutines:   %d\n", mem.Goroutines)

			return nil
		},
	}

	cmd.Flags().Int("iters", 20000, "analytic pricing iterations")
	cmd.Flags().Int("steps", 0, "lattice steps (defaults to config)")
	cmd.Flags().Int("paths", 0, "simulation paths (defaults to config)")

	return cmd
}

// benchResult is one timed engine run.
type benchResult struct {
	Runs    int           `json:"runs"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Price   float64       `json:"price"`
}

func (r benchResult) PerRun() time.Duration {
	if r.Runs <= 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.Runs)
}

func timeAnalytic(contract models.ContractSpec, market models.MarketState, iters int) (benchResult, error) {
	if iters <= 0 {
		iters = 1
	}
	pricer := pricing.NewAnalyticPricer()

	// Warm up once so the timed loop starts from a validated path.
	result, err := pricer.Price(contract, market)
	if err != nil {
		return benchResult{}, err
	}

	start := time.Now()
	for i := 0; i < iters; i++ {
		if result, err = pricer.Price(contract, market); err != nil {
			return benchResult{}, err
		}
	}
	return benchResult{Runs: iters, Elapsed: time.Since(start), Price: result.Price}, nil
}

func timeLattice(contract models.ContractSpec, market models.MarketState, steps int) (benchResult, error) {
	const iters = 10
	pricer := pricing.NewLatticePricer(steps)

	result, err := pricer.Price(contract, market)
	if err != nil {
		return benchResult{}, err
	}

	start := time.Now()
	for i := 0; i < iters; i++ {
		if result, err = pricer.Price(contract, market); err != nil {
			return benchResult{}, err
		}
	}
	return benchResult{Runs: iters, Elapsed: time.Since(start), Price: result.Price}, nil
}

func timeSimulation(contract models.ContractSpec, market models.MarketState, paths int, seed int64, workers int) (benchResult, error) {
	pricer := pricing.NewSimulationPricer(pricing.SimulationConfig{
		Paths:   paths,
		Seed:    seed,
		Workers: workers,
	})

	start := time.Now()
	result, err := pricer.Price(contract, market)
	if err != nil {
		return benchResult{}, err
	}
	return benchResult{Runs: 1, Elapsed: time.Since(start), Price: result.Price}, nil
}
