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
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vaultindex/internal/config"
	"vaultindex/internal/metrics"
	"vaultindex/internal/processor"
	"vaultindex/internal/proof"
	"vaultindex/internal/server"
	"vaultindex/internal/storage"
	"vaultindex/internal/storage/postgres"
	"vaultindex/internal/vault"
	"vaultindex/internal/webhook"
)

func main() {
	root := &cobra.Command{
		Use:          "vaultindex",
		Short:        "Privacy-vault event indexer and Merkle proof service",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook ingest and proof API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN (empty runs the in-memory store)")
	serveCmd.Flags().String("audit-log", "", "optional JSONL audit trail path")
	serveCmd.Flags().StringSlice("vault-address", nil, "allowlisted vault contract addresses (comma-separated)")
	serveCmd.Flags().Int("batch-limit", 100, "maximum items per batch submission")
	serveCmd.Flags().Int("max-retries", 5, "maximum storage retry attempts")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial storage retry backoff")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	var pinger server.Pinger
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pgStore
		pinger = pgStore
	} else {
		logger.Warn("no pg-dsn configured, using the in-memory store")
		store = storage.NewMemoryStore()
	}

	validator, err := webhook.NewValidator(cfg.VaultAddresses)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	proc := processor.New(processor.Config{
		BatchLimit:   cfg.BatchLimit,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, store, vault.NewRegistry(store, logger), validator, storage.NewJsonlAudit(cfg.AuditLog), metrics.New(registry), logger)

	srv := server.New(proc, proof.NewService(store, logger), store, pinger, registry, logger)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	logger.Info("vaultindex start",
		zap.String("listen", cfg.ListenAddr),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Int("allowlisted_vaults", len(cfg.VaultAddresses)),
		zap.Int("batch_limit", cfg.BatchLimit),
		zap.String("audit_log", cfg.AuditLog),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("vaultindex stopped")
	return nil
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
