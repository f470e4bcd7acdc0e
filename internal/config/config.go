// Package config provides runtime configuration for battwatch.
// It uses Viper to load settings from files, environment variables, and CLI flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for battwatch.
type Config struct {
	// ── Watch (dashboard core) ───────────────────────────────────────────────
	// EndpointURL is the upstream data source, queried with ?action=...
	EndpointURL string `mapstructure:"endpoint_url"`
	// PollIntervalMs is the getLatest cadence; adjustable at runtime via the API.
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// DataTimeoutMs / ProbeTimeoutMs bound each fetch; exceeding them counts
	// as a network failure.
	DataTimeoutMs  int `mapstructure:"data_timeout_ms"`
	ProbeTimeoutMs int `mapstructure:"probe_timeout_ms"`
	// OfflineAfterMs: the device is considered gone after this much time
	// without a successful reading.
	OfflineAfterMs  int    `mapstructure:"offline_after_ms"`
	SeriesWindow    int    `mapstructure:"series_window"`
	HistoryPageSize int    `mapstructure:"history_page_size"`
	ListenAddr      string `mapstructure:"listen_addr"`

	// ── Serve (dev/replay data source) ───────────────────────────────────────
	ServeAddr          string `mapstructure:"serve_addr"`
	DBPath             string `mapstructure:"db_path"`
	SimIntervalSeconds int    `mapstructure:"sim_interval_seconds"`
	// SimSource: "synthetic" for the built-in waveform, "host" to sample the
	// local machine's temperature sensors where available.
	SimSource string `mapstructure:"sim_source"`

	// ── Logging ──────────────────────────────────────────────────────────────
	LogLevel string `mapstructure:"log_level"`
}

// PollInterval returns the poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// DataTimeout returns the data-fetch budget as a duration.
func (c *Config) DataTimeout() time.Duration {
	return time.Duration(c.DataTimeoutMs) * time.Millisecond
}

// ProbeTimeout returns the connectivity-probe budget as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

// OfflineAfter returns the device-timeout threshold as a duration.
func (c *Config) OfflineAfter() time.Duration {
	return time.Duration(c.OfflineAfterMs) * time.Millisecond
}

// SimInterval returns the simulator's reading cadence.
func (c *Config) SimInterval() time.Duration {
	return time.Duration(c.SimIntervalSeconds) * time.Second
}

// Load reads config from file (./config.yaml or ~/.battwatch/config.yaml)
// and falls back to defaults. Environment variables with prefix BATT_
// override file values.
func Load() (*Config, error) {
	v := viper.New()

	// --- Defaults (reference dashboard behavior) ---
	v.SetDefault("endpoint_url", "http://127.0.0.1:8686/api")
	v.SetDefault("poll_interval_ms", 3000)
	v.SetDefault("data_timeout_ms", 10000)
	v.SetDefault("probe_timeout_ms", 5000)
	v.SetDefault("offline_after_ms", 15000)
	v.SetDefault("series_window", 30)
	v.SetDefault("history_page_size", 10)
	v.SetDefault("listen_addr", "127.0.0.1:8787")

	v.SetDefault("serve_addr", "0.0.0.0:8686")
	v.SetDefault("db_path", "battwatch.db")
	v.SetDefault("sim_interval_seconds", 2)
	v.SetDefault("sim_source", "synthetic")

	v.SetDefault("log_level", "info")

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.battwatch")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("BATT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
