package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inkwell-press/inkwell/internal/config"
	"github.com/inkwell-press/inkwell/internal/database"
	"github.com/inkwell-press/inkwell/internal/logging"
	"github.com/inkwell-press/inkwell/internal/monitoring"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the data layer service",
	Long: `Start the data layer service with the specified configuration.

Examples:
  # Start with default config
  inkwell start

  # Start with a specific config file
  inkwell start --config custom-config.yaml

  # Watch the config file for live log-level changes
  inkwell start --watch-config`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().Bool("watch-config", false, "Reload log level on config file changes")
}

func runStart(cmd *cobra.Command, args []string) error {
	watchConfig, _ := cmd.Flags().GetBool("watch-config")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	logger, levels, err := logging.NewWithLevelSetter(logging.Options{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	exporter := monitoring.NewExporter()

	engine, err := database.NewEngine(logger.Named("database"), cfg, exporter)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	engine.Start()

	var server *monitoring.Server
	if cfg.Monitoring.Enabled {
		server = monitoring.NewServer(logger.Named("monitoring"),
			cfg.Monitoring.ListenAddr, exporter, engine.Snapshot, engine.Health)
		server.Start()
	}

	var watcher *config.Watcher
	if watchConfig {
		watcher, err = config.NewWatcher(logger.Named("config"), cfgFile, func(next *config.Config) {
			levels.Set(next.LogLevel)
		})
		if err != nil {
			logger.Warn("Config watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(); err != nil {
			logger.Warn("Failed to start config watcher", zap.Error(err))
		}
	}

	logger.Info("Inkwell data layer started",
		zap.String("version", Version),
		zap.String("store_driver", cfg.Store.Driver))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	if watcher != nil {
		watcher.Stop()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("Monitoring server shutdown failed", zap.Error(err))
		}
	}
	if err := engine.Close(); err != nil {
		logger.Warn("Engine shutdown failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
