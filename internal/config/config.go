// Package config provides configuration management for the pricing toolkit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Lattice    LatticeConfig    `mapstructure:"lattice"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Greeks     GreeksConfig     `mapstructure:"greeks"`
	Data       DataConfig       `mapstructure:"data"`
	Store      StoreConfig      `mapstructure:"store"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	UI         UIConfig         `mapstructure:"ui"`
}

// PricingConfig holds method selection and cross-checking defaults.
type PricingConfig struct {
	DefaultMethod       string  `mapstructure:"default_method"` // analytic, lattice, simulation
	Rate                float64 `mapstructure:"rate"`           // default risk-free rate
	DividendYield       float64 `mapstructure:"dividend_yield"`
	CrossCheckTolerance float64 `mapstructure:"cross_check_tolerance"`
}

// LatticeConfig holds binomial tree defaults.
type LatticeConfig struct {
	Steps int `mapstructure:"steps"`
}

// SimulationConfig holds Monte Carlo defaults.
type SimulationConfig struct {
	Paths   int   `mapstructure:"paths"`
	Seed    int64 `mapstructure:"seed"`
	Workers int   `mapstructure:"workers"`
}

// GreeksConfig holds finite-difference defaults.
type GreeksConfig struct {
	RelativeBump float64 `mapstructure:"relative_bump"`
	MinBump      float64 `mapstructure:"min_bump"`
	Workers      int     `mapstructure:"workers"`
}

// DataConfig holds candle-source defaults for volatility estimation.
type DataConfig struct {
	Source    string `mapstructure:"source"` // csv, synthetic, store
	CSVPath   string `mapstructure:"csv_path"`
	Timeframe string `mapstructure:"timeframe"`
	Window    int    `mapstructure:"window"` // candles used per estimate
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"` // empty uses <config dir>/pricer.db
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst       int           `mapstructure:"rate_burst"`
	MaxSteps        int           `mapstructure:"max_steps"` // request caps
	MaxPaths        int           `mapstructure:"max_paths"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"` // empty uses <config dir>/logs/pricer.log
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// UIConfig holds terminal output configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/option-pricer"
	}
	return filepath.Join(home, ".config", "option-pricer")
}

// StorePath returns the configured database path, falling back to the
// config directory.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(DefaultConfigDir(), "pricer.db")
}

// LogFilePath returns the configured log path, falling back to the config
// directory.
func (c *Config) LogFilePath() string {
	if c.Logging.FilePath != "" {
		return c.Logging.FilePath
	}
	return filepath.Join(DefaultConfigDir(), "logs", "pricer.log")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config file is not an error: a starter template is written and the
// built-in defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := createTemplateConfig(configDir); werr != nil {
				return nil, werr
			}
		} else {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pricing.default_method", "analytic")
	v.SetDefault("pricing.rate", 0.05)
	v.SetDefault("pricing.dividend_yield", 0.0)
	v.SetDefault("pricing.cross_check_tolerance", 0.5)

	v.SetDefault("lattice.steps", 500)

	v.SetDefault("simulation.paths", 10000)
	v.SetDefault("simulation.seed", 42)
	v.SetDefault("simulation.workers", 0)

	v.SetDefault("greeks.relative_bump", 0.001)
	v.SetDefault("greeks.min_bump", 0.0001)
	v.SetDefault("greeks.workers", 0)

	v.SetDefault("data.source", "synthetic")
	v.SetDefault("data.timeframe", "day")
	v.SetDefault("data.window", 252)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.max_steps", 100000)
	v.SetDefault("server.max_paths", 5000000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "02-Jan-2006")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRICER_METHOD"); v != "" {
		cfg.Pricing.DefaultMethod = v
	}
	if v := os.Getenv("PRICER_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PRICER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PRICER_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PRICER_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Simulation.Seed = seed
		}
	}
	if v := os.Getenv("PRICER_DATA_SOURCE"); v != "" {
		cfg.Data.Source = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Pricing.DefaultMethod {
	case "", "analytic", "lattice", "simulation":
	default:
		return fmt.Errorf("invalid default method: %s (must be 'analytic', 'lattice', or 'simulation')", c.Pricing.DefaultMethod)
	}
	if c.Pricing.DividendYield < 0 {
		return fmt.Errorf("dividend_yield must be non-negative")
	}
	if c.Pricing.CrossCheckTolerance < 0 {
		return fmt.Errorf("cross_check_tolerance must be non-negative")
	}

	if c.Lattice.Steps < 1 {
		return fmt.Errorf("lattice steps must be at least 1")
	}
	if c.Simulation.Paths < 1 {
		return fmt.Errorf("simulation paths must be at least 1")
	}

	if c.Greeks.RelativeBump <= 0 {
		return fmt.Errorf("relative_bump must be positive")
	}
	if c.Greeks.MinBump <= 0 {
		return fmt.Errorf("min_bump must be positive")
	}

	switch c.Data.Source {
	case "", "csv", "synthetic", "store":
	default:
		return fmt.Errorf("invalid data source: %s (must be 'csv', 'synthetic', or 'store')", c.Data.Source)
	}
	if c.Data.Window < 3 {
		return fmt.Errorf("data window must be at least 3 candles")
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative")
	}
	if c.Server.MaxSteps < 1 || c.Server.MaxPaths < 1 {
		return fmt.Errorf("server request caps must be positive")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}
