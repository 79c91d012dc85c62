package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Option Pricer Configuration

[pricing]
# Default valuation method: "analytic", "lattice", or "simulation"
default_method = "analytic"
# Default risk-free rate when none is given
rate = 0.05
# Continuous dividend yield applied when none is given
dividend_yield = 0.0
# Allowed deviation from the analytic reference before a warning
cross_check_tolerance = 0.5

[lattice]
# Binomial tree steps
steps = 500

[simulation]
# Monte Carlo paths
paths = 10000
# RNG seed for reproducible runs
seed = 42
# Worker goroutines (0 = number of CPUs)
workers = 0

[greeks]
# Bump size relative to each parameter
relative_bump = 0.001
# Absolute bump floor for near-zero parameters
min_bump = 0.0001
# Worker goroutines (0 = number of CPUs)
workers = 0

[data]
# Candle source for volatility estimation: "csv", "synthetic", or "store"
source = "synthetic"
# CSV file to read when source = "csv"
csv_path = ""
# Candle timeframe for store lookups
timeframe = "day"
# Candles per volatility estimate
window = 252

[store]
# SQLite database path (empty uses the config directory)
path = ""

[server]
# HTTP API listen address
addr = ":8080"
read_timeout = "10s"
write_timeout = "30s"
shutdown_timeout = "10s"
# Requests per second per server (0 disables limiting)
rate_limit = 50.0
rate_burst = 100
# Per-request parameter caps
max_steps = 100000
max_paths = 5000000

[logging]
# Log level: debug, info, warn, error
level = "info"
# Log to the terminal
console = true
# Log to a rotating file
file = true
# Log file path (empty uses the config directory)
file_path = ""
max_size_mb = 100
max_backups = 7
max_age_days = 30

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "02-Jan-2006"
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
