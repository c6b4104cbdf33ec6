// Package config loads and validates the daemon's runtime configuration
// from an optional JSON file plus CLI flag overrides, the way the teacher
// repository's internal/config loads and validates WiCOS64's own Config:
// a plain struct of json-tagged fields, a Default() baseline, and a
// Validate method that fills in any remaining zero values and rejects
// whatever it can't default its way out of.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the complete daemon configuration.
type Config struct {
	// Root is the directory exposed to clients. Every client path is
	// confined under this root.
	Root string `json:"root"`

	// ListenAddr is the UDP address to bind, e.g. ":16384".
	ListenAddr string `json:"listen_addr"`

	// Logging controls log output behavior.
	Logging LoggingConfig `json:"logging"`

	// Sessions controls the session table's sizing and expiry.
	Sessions SessionsConfig `json:"sessions"`

	// Metrics controls the optional Prometheus HTTP endpoint.
	Metrics MetricsConfig `json:"metrics"`

	// RateLimit controls per-client-address request throttling.
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `json:"level"`
}

// SessionsConfig controls the session table.
type SessionsConfig struct {
	// MaxSessions is the table capacity; mount fails with out-of-resources
	// once this many sessions are concurrently live.
	MaxSessions int `json:"max_sessions"`

	// IdleTimeout is how long a session may go without a request before
	// the reaper destroys it.
	IdleTimeout time.Duration `json:"idle_timeout"`

	// SweepInterval is the reaper's polling cadence. Per spec.md §5 this
	// should be at most IdleTimeout/10; Validate enforces that.
	SweepInterval time.Duration `json:"sweep_interval"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns on the /metrics HTTP listener.
	Enabled bool `json:"enabled"`

	// ListenAddr is the HTTP address to bind when Enabled, e.g. ":9090".
	ListenAddr string `json:"listen_addr"`
}

// RateLimitConfig controls per-client-address datagram throttling.
type RateLimitConfig struct {
	// RequestsPerSecond is the per-address cap within a one-second window.
	// Zero disables limiting.
	RequestsPerSecond uint `json:"requests_per_second"`
}

// Default returns a Config with every field set to its baseline value,
// the way the teacher's own Default() seeds WiCOS64's Config before a
// config file is applied on top of it.
func Default() Config {
	return Config{
		Root:       ".",
		ListenAddr: ":16384",
		Logging:    LoggingConfig{Level: "INFO"},
		Sessions: SessionsConfig{
			MaxSessions:   64,
			IdleTimeout:   600 * time.Second,
			SweepInterval: 60 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9090",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 200,
		},
	}
}

// Load reads configPath (if non-empty) as JSON on top of Default(), then
// validates the result. A configPath that doesn't exist is not an error:
// the daemon falls back to defaults, matching the teacher's own Load,
// which returns Default() unchanged when path == "".
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		b, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate fills in any zero-valued fields a config file left unset and
// rejects combinations that cannot be defaulted away. Call it after
// loading and again after CLI flag overrides are applied.
func (c *Config) Validate() error {
	if c.Root == "" {
		c.Root = "."
	}
	if fi, err := os.Stat(c.Root); err != nil || !fi.IsDir() {
		return fmt.Errorf("root %q is not a directory", c.Root)
	}

	if c.ListenAddr == "" {
		c.ListenAddr = ":16384"
	}

	c.Logging.Level = strings.ToUpper(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	switch c.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level %q is not one of DEBUG, INFO, WARN, ERROR", c.Logging.Level)
	}

	if c.Sessions.MaxSessions <= 0 {
		c.Sessions.MaxSessions = 64
	}
	if c.Sessions.IdleTimeout <= 0 {
		c.Sessions.IdleTimeout = 600 * time.Second
	}
	if c.Sessions.SweepInterval <= 0 {
		c.Sessions.SweepInterval = c.Sessions.IdleTimeout / 10
	}
	// spec.md §5: sweep cadence must be at most timeout/10, or an idle
	// session could survive ten times longer than advertised.
	if c.Sessions.SweepInterval*10 > c.Sessions.IdleTimeout {
		return fmt.Errorf("sessions.sweep_interval must be at most sessions.idle_timeout/10 (got %s sweep against %s timeout)",
			c.Sessions.SweepInterval, c.Sessions.IdleTimeout)
	}

	if c.Metrics.Enabled {
		if c.Metrics.ListenAddr == "" {
			c.Metrics.ListenAddr = ":9090"
		}
		if c.Metrics.ListenAddr == c.ListenAddr {
			return fmt.Errorf("metrics.listen_addr must differ from listen_addr")
		}
	}

	return nil
}

// GetDefaultConfig returns a Config with all default values applied and
// Root set to the given directory, for use by tests.
func GetDefaultConfig(root string) *Config {
	cfg := Default()
	cfg.Root = root
	_ = cfg.Validate()
	return &cfg
}

// getConfigDir returns the directory tnfsd looks for config.json in when
// no --config flag is given.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tnfsd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "tnfsd")
}

// DefaultConfigPath returns the config file tnfsd reads when no --config
// flag is given.
func DefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.json")
}
