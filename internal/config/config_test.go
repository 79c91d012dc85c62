package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesTemplateAndUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("expected a starter config.toml to be written: %v", err)
	}

	if cfg.Pricing.DefaultMethod != "analytic" {
		t.Errorf("default method = %q", cfg.Pricing.DefaultMethod)
	}
	if cfg.Lattice.Steps != 500 {
		t.Errorf("default lattice steps = %d", cfg.Lattice.Steps)
	}
	if cfg.Simulation.Paths != 10000 || cfg.Simulation.Seed != 42 {
		t.Errorf("default simulation config = %+v", cfg.Simulation)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("default read timeout = %v", cfg.Server.ReadTimeout)
	}

	// Second load reads the template back; it must parse and validate.
	again, err := Load(dir)
	if err != nil {
		t.Fatalf("reloading template failed: %v", err)
	}
	if again.Lattice.Steps != cfg.Lattice.Steps {
		t.Errorf("template round trip changed lattice steps: %d", again.Lattice.Steps)
	}
}

func TestLoadReadsValues(t *testing.T) {
	dir := t.TempDir()
	content := `[pricing]
default_method = "lattice"

[lattice]
steps = 750

[simulation]
seed = 7

[server]
read_timeout = "5s"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pricing.DefaultMethod != "lattice" {
		t.Errorf("method = %q", cfg.Pricing.DefaultMethod)
	}
	if cfg.Lattice.Steps != 750 {
		t.Errorf("steps = %d", cfg.Lattice.Steps)
	}
	if cfg.Simulation.Seed != 7 {
		t.Errorf("seed = %d", cfg.Simulation.Seed)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v", cfg.Server.ReadTimeout)
	}
	// Unset sections keep their defaults.
	if cfg.Simulation.Paths != 10000 {
		t.Errorf("paths = %d", cfg.Simulation.Paths)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PRICER_METHOD", "simulation")
	t.Setenv("PRICER_SEED", "99")
	t.Setenv("PRICER_DB_PATH", "/tmp/override.db")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pricing.DefaultMethod != "simulation" {
		t.Errorf("env method override not applied: %q", cfg.Pricing.DefaultMethod)
	}
	if cfg.Simulation.Seed != 99 {
		t.Errorf("env seed override not applied: %d", cfg.Simulation.Seed)
	}
	if cfg.StorePath() != "/tmp/override.db" {
		t.Errorf("env db path override not applied: %q", cfg.StorePath())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad method", func(c *Config) { c.Pricing.DefaultMethod = "quantum" }, true},
		{"bad source", func(c *Config) { c.Data.Source = "yahoo" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"zero steps", func(c *Config) { c.Lattice.Steps = 0 }, true},
		{"zero paths", func(c *Config) { c.Simulation.Paths = 0 }, true},
		{"negative bump", func(c *Config) { c.Greeks.RelativeBump = -0.1 }, true},
		{"tiny window", func(c *Config) { c.Data.Window = 2 }, true},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(t.TempDir())
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
