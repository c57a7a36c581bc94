// Package main implements the engramd CLI for evaluating, searching, and
// maintaining the development-memory store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/engramd/internal/config"
	"github.com/fyrsmithlabs/engramd/internal/logging"
	"github.com/fyrsmithlabs/engramd/internal/metrics"
	"github.com/fyrsmithlabs/engramd/internal/store"
)

var (
	// global flags
	configPath string
	dbPath     string
	outputJSON bool

	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "engramd",
	Short: "Persistent memory store for development sessions",
	Long: `engramd decides which development artifacts (code, errors, solutions,
documentation, conversation) are worth keeping, stores them searchably,
and periodically reorganizes the store to control growth.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/engramd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	return cfg, nil
}

// openStore opens the store described by the loaded config, seeds the
// learning parameters, and starts the metrics endpoint when enabled.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*store.Store, error) {
	m := metrics.New()
	serveMetrics(cfg, log)

	st, err := store.Open(ctx, store.Options{
		Path:        cfg.Store.Path,
		DedupWindow: cfg.Store.DedupWindow.Duration(),
		VacuumEvery: cfg.Store.VacuumEvery,
		Logger:      log,
		OnDelete:    func(n int) { m.ContextsDeletedTotal.Add(float64(n)) },
		OnVacuum:    m.VacuumRunsTotal.Inc,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", cfg.Store.Path, err)
	}
	if err := st.SeedParameters(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("seeding parameters: %w", err)
	}
	return st, nil
}

// serveMetrics exposes the Prometheus scrape endpoint for the lifetime of
// the command when enabled in config.
func serveMetrics(cfg *config.Config, log *logging.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
			log.Warn(context.Background(), "metrics endpoint failed", zap.Error(err))
		}
	}()
}

// newLogger builds the CLI logger from the loaded config.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	return logging.NewLogger(logCfg)
}
