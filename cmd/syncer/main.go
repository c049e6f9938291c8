package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reserveScope/internal/chain"
	"reserveScope/internal/checkpoint"
	"reserveScope/internal/config"
	"reserveScope/internal/metrics"
	"reserveScope/internal/storage"
	"reserveScope/internal/storage/postgres"
	"reserveScope/internal/storage/sqlite"
)

func main() {
	root := &cobra.Command{
		Use:          "syncer",
		Short:        "Local mirror of DEX pool and vault reserves",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN (overrides sqlite and file checkpoints)")
	root.PersistentFlags().String("sqlite-path", "", "SQLite database path (overrides the file checkpoint)")
	root.PersistentFlags().String("checkpoint-name", "default", "checkpoint name in database stores")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Discover venues, resolve tokens and sync reserves",
		RunE:  runSyncer,
	}

	runCmd.Flags().String("rpc", "", "RPC URL (http, ws or ipc)")
	runCmd.Flags().StringSlice("factory", nil, "factories as kind:address:creation_block[:fee_bps]")
	runCmd.Flags().StringSlice("vault", nil, "ERC4626 vaults as address[:deposit_fee_bps[:withdraw_fee_bps]]")
	runCmd.Flags().Uint64("discovery-window", 1000, "blocks per discovery log query")
	runCmd.Flags().Uint64("sync-window", 2500, "blocks per replay step")
	runCmd.Flags().Uint64("sync-sub-window", 250, "blocks per concurrent replay log query")
	runCmd.Flags().Int("currency-chunk-size", 150, "tokens per metadata batch")
	runCmd.Flags().Int("max-concurrency", 16, "maximum concurrent provider requests")
	runCmd.Flags().Duration("interval", 0, "repeat the cycle at this interval, 0 runs once")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(runCmd)
	root.AddCommand(newInspectCmd())
	root.AddCommand(newPriceCmd())
	root.AddCommand(newMergeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSyncer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	syncerCfg, err := cfg.SyncerConfig()
	if err != nil {
		return err
	}
	if len(syncerCfg.Factories) == 0 && len(syncerCfg.Vaults) == 0 {
		return fmt.Errorf("at least one factory or vault is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.RetryConfig{
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(registry)
		shutdown := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer shutdown()
	}

	syncer := checkpoint.NewSyncer(syncerCfg, client, store, logger, m)
	cp, err := syncer.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	logger.Info("syncer start",
		zap.String("rpc", cfg.RPCURL),
		zap.Int("factories", len(syncerCfg.Factories)),
		zap.Int("vaults", len(syncerCfg.Vaults)),
		zap.Uint64("discovery_window", cfg.DiscoveryWindow),
		zap.Uint64("sync_window", cfg.SyncWindow),
		zap.Uint64("sync_sub_window", cfg.SyncSubWindow),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Duration("interval", cfg.Interval),
		zap.Uint64("resume_height", cp.ResumeHeight()),
	)

	if err := syncer.Run(ctx, cp, cfg.Interval); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}

// openStore picks the checkpoint backend: Postgres, then SQLite, then the JSON file.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, func(), error) {
	switch {
	case cfg.PGDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.CheckpointName)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		logger.Info("checkpoint store", zap.String("backend", "postgres"), zap.String("name", cfg.CheckpointName))
		return store, store.Close, nil
	case cfg.SQLitePath != "":
		store, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.CheckpointName)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("checkpoint store", zap.String("backend", "sqlite"), zap.String("path", cfg.SQLitePath))
		return store, func() { _ = store.Close() }, nil
	default:
		logger.Info("checkpoint store", zap.String("backend", "file"), zap.String("path", cfg.Checkpoint))
		return storage.NewFileStore(cfg.Checkpoint), func() {}, nil
	}
}

// loadCheckpoint reads the configured checkpoint for the read-only commands.
func loadCheckpoint(cmd *cobra.Command) (*checkpoint.Checkpoint, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	defer closeStore()

	snapshot, ok, err := store.Load(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("no checkpoint found")
	}
	cp, err := checkpoint.FromSnapshot(snapshot)
	if err != nil {
		return nil, nil, err
	}
	return cp, logger, nil
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(gatherer))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
