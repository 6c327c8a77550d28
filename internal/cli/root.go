// Package cli implements the geny-memory CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/geny-memory/internal/config"
	"github.com/rcliao/geny-memory/internal/engine"
	"github.com/rcliao/geny-memory/internal/logger"
	"github.com/rcliao/geny-memory/internal/metrics"
	"github.com/rcliao/geny-memory/internal/model"
)

var (
	configPath string
	dataDir    string
	dbPath     string
	mirrorPath string
	logLevel   string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "geny-memory",
	Short: "Persistent memory for conversational agents",
	Long: "Append-only memory with keyword search. SQLite ledger, JSON mirror, " +
		"background index rebuild and mirror reconciliation.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (json, yaml or toml)")
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: $GENY_MEMORY_DATA_DIR or ~/.geny-memory)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Ledger path, relative to the data directory (default: memory.db)")
	RootCmd.PersistentFlags().StringVar(&mirrorPath, "mirror", "", "Mirror path, relative to the data directory (default: memory.json)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath, func(c *config.Config) {
		if dataDir != "" {
			c.DataDir = dataDir
		}
		if dbPath != "" {
			c.StorePath = dbPath
		}
		if mirrorPath != "" {
			c.MirrorPath = mirrorPath
		}
		if logLevel != "" {
			c.Logging.Level = logLevel
		}
	})
}

// app is an opened engine plus the ambient pieces it was built with.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	engine  *engine.Engine
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	e, err := engine.Open(ctx, engine.Config{
		StorePath:           cfg.StorePath,
		MirrorPath:          cfg.MirrorPath,
		MaintenanceEnabled:  cfg.Maintenance.Enabled,
		MaintenanceInterval: cfg.Maintenance.Interval,
		WatchMirror:         cfg.WatchMirror,
		CacheEnabled:        cfg.Cache.Enabled,
		CacheMaxEntries:     cfg.Cache.MaxEntries,
		Logger:              log.Logger,
		Metrics:             m,
	})
	if err != nil {
		log.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, metrics: m, engine: e}, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.engine.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("close engine")
	}
	a.log.Close()
}

func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

var osExit = os.Exit

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %s: %v\n", msg, model.Kind(err), err)
	osExit(exitCode(err))
}

func exitCode(err error) int {
	if errors.Is(err, model.ErrInvalidInput) {
		return 2
	}
	return 1
}
