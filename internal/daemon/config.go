// Package daemon holds the long-running process configuration and wiring.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from TOML.
type Config struct {
	API            APIConfig            `toml:"api"`
	Database       DatabaseConfig       `toml:"database"`
	Sync           SyncConfig           `toml:"sync"`
	Reconciliation ReconciliationConfig `toml:"reconciliation"`
	Provider       ProviderConfig       `toml:"provider"`
	Metrics        MetricsConfig        `toml:"metrics"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// DatabaseConfig controls SQLite storage.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// SyncConfig controls the background sync scheduler.
type SyncConfig struct {
	// SweepInterval is a duration string, e.g. "15m".
	SweepInterval      string `toml:"sweep_interval"`
	MaxConcurrent      int    `toml:"max_concurrent"`
	ImportLookbackDays int    `toml:"import_lookback_days"`
	AutoStart          bool   `toml:"auto_start"`
}

// SweepIntervalDuration parses SweepInterval, falling back to 15m.
func (c SyncConfig) SweepIntervalDuration() time.Duration {
	return parseDuration(c.SweepInterval, 15*time.Minute)
}

// ImportLookback returns the transaction import window.
func (c SyncConfig) ImportLookback() time.Duration {
	days := c.ImportLookbackDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// ReconciliationConfig controls balance reconciliation.
type ReconciliationConfig struct {
	ToleranceMinor int64 `toml:"tolerance_minor"`
}

// ProviderConfig points at the external bank-data service.
type ProviderConfig struct {
	BaseURL string `toml:"base_url"`
	// Timeout is a duration string, e.g. "30s".
	Timeout string `toml:"timeout"`
}

// TimeoutDuration parses Timeout, falling back to 30s.
func (c ProviderConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8724,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(homeDir(), ".finsync", "finsync.db"),
		},
		Sync: SyncConfig{
			SweepInterval:      "15m",
			MaxConcurrent:      4,
			ImportLookbackDays: 30,
			AutoStart:          true,
		},
		Reconciliation: ReconciliationConfig{
			ToleranceMinor: 1,
		},
		Provider: ProviderConfig{
			BaseURL: "http://127.0.0.1:8900",
			Timeout: "30s",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".finsync", "config.toml")
}

// Load reads the config file at path, layered over defaults. A missing file
// is not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// EnsureDataDir creates the database's parent directory.
func (c Config) EnsureDataDir() error {
	return os.MkdirAll(filepath.Dir(c.Database.Path), 0o755)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
