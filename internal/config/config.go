// Package config provides configuration loading for engramd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Optimizer OptimizerConfig `koanf:"optimizer"`
	Logging   LoggingConfig   `koanf:"logging"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	// Path is the database file location.
	Path string `koanf:"path"`

	// DedupWindow is the trailing interval during which identical writes
	// collapse to one row.
	DedupWindow Duration `koanf:"dedup_window"`

	// VacuumEvery triggers a background vacuum after this many deletes.
	VacuumEvery int `koanf:"vacuum_every"`
}

// OptimizerConfig configures the maintenance strategies.
type OptimizerConfig struct {
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
	ClusterCount        int     `koanf:"cluster_count"`
	MinClusterSize      int     `koanf:"min_cluster_size"`
	MinReduction        float64 `koanf:"min_reduction"`
	ArchiveAfterDays    int     `koanf:"archive_after_days"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// applyDefaults fills in zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Store.Path = filepath.Join(home, ".local", "share", "engramd", "engram.db")
		} else {
			cfg.Store.Path = "engram.db"
		}
	}
	if cfg.Store.DedupWindow == 0 {
		cfg.Store.DedupWindow = Duration(5 * time.Second)
	}
	if cfg.Store.VacuumEvery == 0 {
		cfg.Store.VacuumEvery = 10
	}

	if cfg.Optimizer.SimilarityThreshold == 0 {
		cfg.Optimizer.SimilarityThreshold = 0.95
	}
	if cfg.Optimizer.MinClusterSize == 0 {
		cfg.Optimizer.MinClusterSize = 2
	}
	if cfg.Optimizer.MinReduction == 0 {
		cfg.Optimizer.MinReduction = 0.2
	}
	if cfg.Optimizer.ArchiveAfterDays == 0 {
		cfg.Optimizer.ArchiveAfterDays = 90
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "127.0.0.1:9832"
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.VacuumEvery < 1 {
		return fmt.Errorf("store.vacuum_every must be positive, got %d", c.Store.VacuumEvery)
	}
	if c.Optimizer.SimilarityThreshold <= 0 || c.Optimizer.SimilarityThreshold > 1 {
		return fmt.Errorf("optimizer.similarity_threshold must be in (0,1], got %v", c.Optimizer.SimilarityThreshold)
	}
	if c.Optimizer.MinReduction < 0 || c.Optimizer.MinReduction >= 1 {
		return fmt.Errorf("optimizer.min_reduction must be in [0,1), got %v", c.Optimizer.MinReduction)
	}
	if c.Optimizer.ArchiveAfterDays < 1 {
		return fmt.Errorf("optimizer.archive_after_days must be positive, got %d", c.Optimizer.ArchiveAfterDays)
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of trace/debug/info/warn/error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
