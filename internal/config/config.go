// Package config provides configuration management for the collar tool.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultDebounce is used when engine.debounce is unset
	defaultDebounce = 250 * time.Millisecond
	// defaultFetchTimeout bounds a single quote refresh
	defaultFetchTimeout = 10 * time.Second
	// defaultLotSize matches the B3 round lot for stocks and options
	defaultLotSize = 100
	// defaultDashboardPort is where the web dashboard listens
	defaultDashboardPort = 9847
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Chain       ChainConfig       `yaml:"chain"`
	Engine      EngineConfig      `yaml:"engine"`
	Solver      SolverConfig      `yaml:"solver"`
	Storage     StorageConfig     `yaml:"storage"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
	LogFile  string `yaml:"log_file"`  // empty logs to stderr only
	// LogMaxSizeMB caps a single log file before rotation kicks in
	LogMaxSizeMB int `yaml:"log_max_size_mb"`
	// LogMaxBackups is how many rotated files to keep
	LogMaxBackups int `yaml:"log_max_backups"`
}

// GatewayConfig defines quote gateway settings.
type GatewayConfig struct {
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
	// MaxFailures trips the circuit breaker after this many consecutive
	// gateway errors
	MaxFailures uint32 `yaml:"max_failures"`
	// CooldownSeconds is how long the breaker stays open before probing
	CooldownSeconds int `yaml:"cooldown_seconds"`
}

// ChainConfig points at the option chain CSV export.
type ChainConfig struct {
	Path string `yaml:"path"`
}

// EngineConfig tunes the recompute loop.
type EngineConfig struct {
	Debounce     string  `yaml:"debounce"`
	PayoutMinPct float64 `yaml:"payout_min_pct"`
	PayoutMaxPct float64 `yaml:"payout_max_pct"`
	PayoutPoints int     `yaml:"payout_points"`
}

// SolverConfig tunes the goal-seek search.
type SolverConfig struct {
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"max_iterations"`
	Damping       float64 `yaml:"damping"`
	LotSize       int     `yaml:"lot_size"`
}

// StorageConfig defines storage settings for position data.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// DashboardConfig defines the web dashboard settings.
type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
// It also fills in defaults for optional settings.
func (c *Config) Validate() error {
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}
	if c.Environment.LogMaxSizeMB < 0 || c.Environment.LogMaxBackups < 0 {
		return fmt.Errorf("environment log rotation settings must be >= 0")
	}

	// A live gateway needs somewhere to connect; paper mode runs on canned
	// quotes and may leave the endpoint empty.
	if !c.IsPaperTrading() && c.Gateway.Endpoint == "" {
		return fmt.Errorf("gateway.endpoint is required in live mode")
	}
	if c.Gateway.Timeout != "" {
		if _, err := time.ParseDuration(c.Gateway.Timeout); err != nil {
			return fmt.Errorf("gateway.timeout invalid: %w", err)
		}
	}
	if c.Gateway.CooldownSeconds < 0 {
		return fmt.Errorf("gateway.cooldown_seconds must be >= 0")
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	if c.Engine.Debounce != "" {
		if _, err := time.ParseDuration(c.Engine.Debounce); err != nil {
			return fmt.Errorf("engine.debounce invalid: %w", err)
		}
	}
	if c.Engine.PayoutPoints < 0 {
		return fmt.Errorf("engine.payout_points must be >= 0")
	}
	if c.Engine.PayoutMinPct != 0 || c.Engine.PayoutMaxPct != 0 {
		if c.Engine.PayoutMinPct >= c.Engine.PayoutMaxPct {
			return fmt.Errorf("engine.payout_min_pct must be < engine.payout_max_pct")
		}
	}

	if c.Solver.Tolerance < 0 {
		return fmt.Errorf("solver.tolerance must be >= 0")
	}
	if c.Solver.MaxIterations < 0 {
		return fmt.Errorf("solver.max_iterations must be >= 0")
	}
	if c.Solver.Damping < 0 || c.Solver.Damping > 1 {
		return fmt.Errorf("solver.damping must be in [0,1]")
	}
	if c.Solver.LotSize < 0 {
		return fmt.Errorf("solver.lot_size must be >= 0")
	}
	if c.Solver.LotSize == 0 {
		c.Solver.LotSize = defaultLotSize
	}

	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port must be a valid TCP port")
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = defaultDashboardPort
	}

	return nil
}

// IsPaperTrading returns true when the tool runs against canned quotes
// instead of a live gateway.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// GetDebounce returns the configured recompute debounce duration.
func (c *Config) GetDebounce() time.Duration {
	if c.Engine.Debounce == "" {
		return defaultDebounce
	}
	d, err := time.ParseDuration(c.Engine.Debounce)
	if err != nil {
		return defaultDebounce
	}
	return d
}

// GetGatewayTimeout returns the configured quote fetch timeout.
func (c *Config) GetGatewayTimeout() time.Duration {
	if c.Gateway.Timeout == "" {
		return defaultFetchTimeout
	}
	d, err := time.ParseDuration(c.Gateway.Timeout)
	if err != nil {
		return defaultFetchTimeout
	}
	return d
}
