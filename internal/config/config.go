// Package config loads engine configuration from an optional file and
// GENY_MEMORY_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config represents the engine configuration
type Config struct {
	// Data directory; relative store and mirror paths resolve under it
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	StorePath   string `json:"store_path" mapstructure:"store_path"`
	MirrorPath  string `json:"mirror_path" mapstructure:"mirror_path"`
	WatchMirror bool   `json:"watch_mirror" mapstructure:"watch_mirror"`

	Maintenance MaintenanceConfig `json:"maintenance" mapstructure:"maintenance"`
	Cache       CacheConfig       `json:"cache" mapstructure:"cache"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
	Metrics     MetricsConfig     `json:"metrics" mapstructure:"metrics"`
}

// MaintenanceConfig controls the background maintainer
type MaintenanceConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// CacheConfig controls the search result cache
type CacheConfig struct {
	Enabled    bool  `json:"enabled" mapstructure:"enabled"`
	MaxEntries int64 `json:"max_entries" mapstructure:"max_entries"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"` // debug, info, warn, error
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
	File   string `json:"file" mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint started by serve
type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns the default configuration. DataDir is left empty and
// filled in by Resolve.
func DefaultConfig() *Config {
	return &Config{
		StorePath:  "memory.db",
		MirrorPath: "memory.json",
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Interval: 300 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
	}
}

// Resolve fills in DataDir and makes StorePath, MirrorPath and the log file
// absolute.
func (c *Config) Resolve() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".geny-memory")
	}
	dir, err := expandHome(c.DataDir)
	if err != nil {
		return err
	}
	c.DataDir = dir

	for _, p := range []*string{&c.StorePath, &c.MirrorPath, &c.Logging.File} {
		if *p == "" {
			continue
		}
		v, err := expandHome(*p)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(v) {
			v = filepath.Join(c.DataDir, v)
		}
		*p = filepath.Clean(v)
	}
	return nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	if c.MirrorPath == "" {
		return fmt.Errorf("mirror_path is required")
	}
	if filepath.Clean(c.StorePath) == filepath.Clean(c.MirrorPath) {
		return fmt.Errorf("store_path and mirror_path must differ")
	}
	if c.Maintenance.Enabled && c.Maintenance.Interval <= 0 {
		return fmt.Errorf("maintenance.interval must be positive, got %s", c.Maintenance.Interval)
	}
	if c.Cache.Enabled && c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) String() string {
	b, _ := json.MarshalIndent(c, "", "  ")
	return string(b)
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
