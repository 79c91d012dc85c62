// Package cli implements the pricer command-line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"option-pricer/internal/config"
	"option-pricer/internal/logging"
	"option-pricer/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.Store
}

// applyUIConfig applies display settings before any command runs.
func applyUIConfig(cfg *config.Config) {
	if !cfg.UI.ColorEnabled {
		colorDisabled = true
		color.NoColor = true
	}
	if cfg.UI.DateFormat != "" {
		dateFormat = cfg.UI.DateFormat
	}
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	applyUIConfig(cfg)

	// Initialize SQLite store
	dataStore, err := store.NewSQLiteStore(cfg.StorePath())
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, journal and candle features unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.StorePath()).Msg("SQLite store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "pricer",
		Short: "Option valuation and risk CLI",
		Long: `Pricer values European and American options with closed-form,
binomial-lattice and Monte Carlo methods, derives full Greek sets, estimates
realized volatility from candle history and journals every valuation.

Use 'pricer help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/option-pricer)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	// Add all command groups
	addCoreCommands(rootCmd, app)
	addPricingCommands(rootCmd, app)
	addSimulationCommands(rootCmd, app)
	addChainCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)
	addServerCommands(rootCmd, app)
	addBenchCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("pricer v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open configuration file in editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			configPath := config.DefaultConfigDir() + "/config.toml"
			output.Info("Configuration file: %s", configPath)
			output.Println("Edit this file to change settings.")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Pricing Configuration")
	output.Printf("  Default Method:  %s\n", cfg.Pricing.DefaultMethod)
	output.Printf("  Risk-Free Rate:  %s\n", FormatRate(cfg.Pricing.Rate))
	output.Printf("  Dividend Yield:  %s\n", FormatRate(cfg.Pricing.DividendYield))
	output.Printf("  Check Tolerance: %.4f\n", cfg.Pricing.CrossCheckTolerance)
	output.Println()

	output.Bold("Lattice Configuration")
	output.Printf("  Steps:           %d\n", cfg.Lattice.Steps)
	output.Println()

	output.Bold("Simulation Configuration")
	output.Printf("  Paths:           %s\n", FormatCount(int64(cfg.Simulation.Paths)))
	output.Printf("  Seed:            %d\n", cfg.Simulation.Seed)
	output.Printf("  Workers:         %d\n", cfg.Simulation.Workers)
	output.Println()

	output.Bold("Greeks Configuration")
	output.Printf("  Relative Bump:   %.4f\n", cfg.Greeks.RelativeBump)
	output.Printf("  Min Bump:        %.6f\n", cfg.Greeks.MinBump)
	output.Println()

	output.Bold("Data Configuration")
	output.Printf("  Source:          %s\n", cfg.Data.Source)
	output.Printf("  Timeframe:       %s\n", cfg.Data.Timeframe)
	output.Printf("  Window:          %d candles\n", cfg.Data.Window)
	output.Println()

	output.Bold("Store")
	output.Printf("  Database:        %s\n", cfg.StorePath())
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Rate Limit:      %.0f req/s (burst %d)\n", cfg.Server.RateLimit, cfg.Server.RateBurst)
	output.Printf("  Max Steps:       %d\n", cfg.Server.MaxSteps)
	output.Printf("  Max Paths:       %d\n", cfg.Server.MaxPaths)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  Console:         %v\n", cfg.Logging.Console)
	output.Printf("  File:            %v (%s)\n", cfg.Logging.File, cfg.LogFilePath())
	output.Println()

	output.Bold("UI")
	output.Printf("  Color:           %v\n", cfg.UI.ColorEnabled)
	output.Printf("  Date Format:     %s\n", cfg.UI.DateFormat)

	return nil
}
