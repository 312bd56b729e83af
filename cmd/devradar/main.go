// main.go — devradar daemon entrypoint: wires the Event Store, Persistent
// Log, Transport, Periodic Scanner, and Session Manager together. Grounded on
// the pack's cobra+viper single-binary entrypoint
// (joestump-claude-ops/cmd/claudeops/main.go).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/devradar/devradar/internal/analysis"
	"github.com/devradar/devradar/internal/config"
	"github.com/devradar/devradar/internal/metrics"
	"github.com/devradar/devradar/internal/persist"
	"github.com/devradar/devradar/internal/scanner"
	"github.com/devradar/devradar/internal/session"
	"github.com/devradar/devradar/internal/store"
	"github.com/devradar/devradar/internal/transport"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "devradar",
		Short: "Local dev-observability daemon for AI coding agents",
		RunE:  run,
	}

	f := rootCmd.Flags()
	f.Int("port", 9090, "WebSocket/HTTP listen port")
	f.String("host", "127.0.0.1", "listen host")
	f.Int("buffer-size", 10_000, "ring buffer capacity (events per process)")
	f.Int("max-retries", 5, "bind-conflict retry attempts")
	f.Int("retry-delay-ms", 1000, "delay between bind retries, in milliseconds")
	f.String("data-dir", "./data", "directory holding one SQLite file per project")
	f.String("project", "default", "project name for this daemon instance")
	f.String("scan-interval", scanner.DefaultSpec, "cron spec for the periodic scanner")
	f.Bool("verbose", false, "enable debug logging")

	bindFlag := func(viperKey, flagName string) {
		_ = viper.BindPFlag(viperKey, f.Lookup(flagName))
	}
	bindFlag("port", "port")
	bindFlag("host", "host")
	bindFlag("buffer_size", "buffer-size")
	bindFlag("max_retries", "max-retries")
	bindFlag("retry_delay_ms", "retry-delay-ms")
	bindFlag("data_dir", "data-dir")
	bindFlag("project", "project")
	bindFlag("scan_interval", "scan-interval")
	bindFlag("verbose", "verbose")

	viper.SetEnvPrefix("DEVRADAR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	logger.Info("devradar starting",
		zap.String("host", cfg.Host), zap.Int("port", cfg.Port),
		zap.String("project", cfg.Project), zap.Int("bufferSize", cfg.BufferSize))

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(cfg.DataDir, cfg.Project+".db")
	log, err := persist.OpenSQLite(dbPath, cfg.Project)
	if err != nil {
		return fmt.Errorf("open persistent log: %w", err)
	}
	defer func() { _ = log.Close() }()

	eventStore := store.New(cfg.BufferSize, log, cfg.Project, logger)
	engine := analysis.NewEngine()
	sessionMgr := session.NewManager(eventStore, log, cfg.Project)

	transportCfg := transport.DefaultConfig()
	transportCfg.Host = cfg.Host
	transportCfg.Port = cfg.Port
	transportCfg.MaxBindRetries = cfg.MaxRetries
	transportCfg.BindRetryDelay = time.Duration(cfg.RetryDelayMs) * time.Millisecond

	srv := transport.New(transportCfg, eventStore, logger)
	srv.OnDisconnect(func(sessionID string) error {
		sessionMgr.ComputeAndSave(context.Background(), sessionID)
		return nil
	})

	periodicScanner := scanner.New(eventStore, engine, cfg.ScanInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	periodicScanner.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := periodicScanner.Stop(shutdownCtx); err != nil {
		logger.Warn("periodic scanner shutdown", zap.Error(err))
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("transport shutdown", zap.Error(err))
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
