// Package cli implements the pricer command-line interface.
package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"option-pricer/internal/server"
)

// addServerCommands adds the HTTP API command.
func addServerCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newServeCmd(app))
}

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pricing HTTP API",
		Long: `Run the HTTP API. Endpoints mirror the CLI: pricing, Greeks, chains,
volatility estimation and the valuation journal. The server runs until
interrupted and shuts down gracefully.`,
		Example: `  pricer serve
  pricer serve --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				app.Config.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			output.Info("Starting API server on %s", app.Config.Server.Addr)
			output.Dim("  Press Ctrl+C to stop")

			srv := server.NewServer(app.Config, app.Logger, app.Store)
			if err := srv.ListenAndServe(ctx); err != nil {
				output.Error("Server error: %v", err)
				return err
			}

			output.Success("✓ Server stopped")
			return nil
		},
	}

	cmd.Flags().String("addr", "", "listen address (defaults to config)")

	return cmd
}
