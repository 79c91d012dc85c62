// Package cli implements the pricer command-line interface.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
	"option-pricer/internal/store"
)

// addJournalCommands adds the valuation journal commands.
func addJournalCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Valuation journal",
		Long:  "Browse, inspect and prune journaled pricing runs.",
	}

	cmd.AddCommand(newJournalListCmd(app))
	cmd.AddCommand(newJournalShowCmd(app))
	cmd.AddCommand(newJournalPruneCmd(app))

	rootCmd.AddCommand(cmd)
}

func newJournalListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journaled valuations",
		Long:  "List recent valuations, newest first, with optional filters.",
		Example: `  pricer journal list
  pricer journal list --symbol ACME --days 7
  pricer journal list --method simulation --kind put --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not initialized")
				return fmt.Errorf("store not initialized")
			}

			filter, err := journalFilterFromFlags(cmd)
			if err != nil {
				output.Error("Invalid filter: %v", err)
				return err
			}

			valuations, err := app.Store.Valuations(ctx, filter)
			if err != nil {
				output.Error("Failed to query journal: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"count":      len(valuations),
					"valuations": valuations,
				})
			}

			if len(valuations) == 0 {
				output.Info("No journaled valuations match")
				return nil
			}

			output.Bold("Valuation Journal — %d entries", len(valuations))
			output.Println()

			table := NewTable(output, "ID", "Created", "Symbol", "Contract", "Method", "Price", "Note")
			for _, v := range valuations {
				symbol := v.Symbol
				if symbol == "" {
					symbol = "-"
				}
				table.AddRow(
					v.ID,
					FormatDateTime(v.CreatedAt),
					symbol,
					describeContract(v.Contract),
					string(v.Method),
					FormatPrice(v.Price),
					TruncateString(v.Note, 24),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "filter by symbol")
	cmd.Flags().String("method", "", "filter by method: analytic, lattice, simulation")
	cmd.Flags().String("kind", "", "filter by option kind: call, put")
	cmd.Flags().Int("days", 0, "only entries from the last N days")
	cmd.Flags().IntP("limit", "l", 20, "maximum entries")

	return cmd
}

func journalFilterFromFlags(cmd *cobra.Command) (store.ValuationFilter, error) {
	var filter store.ValuationFilter

	symbol, _ := cmd.Flags().GetString("symbol")
	filter.Symbol = strings.ToUpper(symbol)
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	if methodStr, _ := cmd.Flags().GetString("method"); methodStr != "" {
		method, err := models.ParseMethod(methodStr)
		if err != nil {
			return filter, err
		}
		filter.Method = method
	}
	if kindStr, _ := cmd.Flags().GetString("kind"); kindStr != "" {
		kind, err := models.ParseOptionKind(kindStr)
		if err != nil {
			return filter, err
		}
		filter.Kind = kind
	}
	if days, _ := cmd.Flags().GetInt("days"); days > 0 {
		filter.StartDate = time.Now().AddDate(0, 0, -days)
	}

	return filter, nil
}

// describeContract renders a compact one-cell contract summary.
func describeContract(c models.ContractSpec) string {
	return fmt.Sprintf("%s %s %.2fy %s",
		strings.ToUpper(string(c.Kind)), FormatPrice(c.Strike), c.Maturity,
		strings.ToLower(string(c.Style)))
}

func newJournalShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one journaled valuation",
		Long:  "Show the full inputs and outputs of a journaled valuation, including attached Greeks.",
		Example: `  pricer journal show VAL-1718000000000000000
  pricer journal show VAL-1718000000000000000 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not initialized")
				return fmt.Errorf("store not initialized")
			}

			id := args[0]
			v, err := app.Store.ValuationByID(ctx, id)
			if err != nil {
				output.Error("Failed to load valuation: %v", err)
				return err
			}

			g, err := app.Store.GreeksFor(ctx, id)
			if err != nil && !errors.Is(err, errors.ErrDataNotFound) {
				output.Warning("Failed to load Greeks: %v", err)
			}

			if output.IsJSON() {
				resp := map[string]interface{}{"valuation": v}
				if g != nil {
					resp["greeks"] = g
				}
				return output.JSON(resp)
			}

			return displayValuation(output, v, g)
		},
	}

	return cmd
}

func displayValuation(output *Output, v *models.Valuation, g *models.GreeksResult) error {
	output.Bold("Valuation %s", v.ID)
	output.Dim("  Created: %s", FormatDateTime(v.CreatedAt))
	output.Println()

	if v.Symbol != "" {
		output.Printf("  Symbol:    %s\n", v.Symbol)
	}
	output.Printf("  Contract:  %s\n", describeContract(v.Contract))
	output.Printf("  Maturity:  %s\n", FormatMaturity(v.Contract.Maturity))
	output.Printf("  Spot: %s   Vol: %s   Rate: %s\n",
		FormatPrice(v.Market.Spot), FormatVol(v.Market.Vol), FormatRate(v.Market.Rate))
	if v.Market.DividendYield > 0 {
		output.Printf("  Dividend:  %s\n", FormatRate(v.Market.DividendYield))
	}
	output.Println()

	output.Printf("  Price:     %s\n", output.BoldText(FormatPrice(v.Price)))
	output.Printf("  Method:    %s\n", v.Method)
	switch v.Method {
	case models.MethodLattice:
		output.Printf("  Steps:     %s\n", FormatCount(int64(v.Steps)))
	case models.MethodSimulation:
		output.Printf("  Paths:     %s   Seed: %d\n", FormatCount(int64(v.Paths)), v.Seed)
		if v.StdErr > 0 {
			output.Printf("  Std Error: %.6f\n", v.StdErr)
			output.Printf("  95%% CI:    [%s, %s]\n", FormatPrice(v.CILow), FormatPrice(v.CIHigh))
		}
	}
	if v.Note != "" {
		output.Printf("  Note:      %s\n", v.Note)
	}

	if g != nil {
		output.Println()
		output.Bold("Greeks")
		output.Printf("  Delta: %s   Gamma: %.6f\n", FormatGreek(g.Delta), g.Gamma)
		output.Printf("  Vega:  %s   Theta: %s   Rho: %s\n",
			FormatGreek(g.Vega), output.Signed(g.Theta, FormatGreek(g.Theta)), FormatGreek(g.Rho))
		output.Dim("  Method: %s", g.Method)
	}

	return nil
}

func newJournalPruneCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old journal entries",
		Long:  "Delete valuations older than the given age. Attached Greeks are removed with them.",
		Example: `  pricer journal prune --days 90
  pricer journal prune --days 30 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if app.Store == nil {
				output.Error("Store not initialized")
				return fmt.Errorf("store not initialized")
			}

			days, _ := cmd.Flags().GetInt("days")
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}

			before := time.Now().AddDate(0, 0, -days)
			pruned, err := app.Store.PruneValuations(ctx, before)
			if err != nil {
				output.Error("Prune failed: %v", err)
				return err
			}

			app.Logger.Info().Int64("pruned", pruned).Int("days", days).Msg("journal pruned")

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"pruned": pruned,
					"days":   days,
				})
			}

			output.Success("✓ Pruned %d valuations older than %d days", pruned, days)
			return nil
		},
	}

	cmd.Flags().Int("days", 90, "prune entries older than this many days")

	return cmd
}
