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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/analytics"
	"github.com/patrickwarner/surfacekit/internal/api"
	"github.com/patrickwarner/surfacekit/internal/campaignapi"
	"github.com/patrickwarner/surfacekit/internal/config"
	"github.com/patrickwarner/surfacekit/internal/db"
	"github.com/patrickwarner/surfacekit/internal/engine"
	"github.com/patrickwarner/surfacekit/internal/kvstore"
	"github.com/patrickwarner/surfacekit/internal/logic"
	"github.com/patrickwarner/surfacekit/internal/macros"
	"github.com/patrickwarner/surfacekit/internal/observability"
	"github.com/patrickwarner/surfacekit/internal/syncer"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	conns, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer conns.Close()

	if conns.Postgres != nil {
		if err := conns.Postgres.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}

	// processes sharing SESSION_ID share the redis ledger
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var ledger logic.ImpressionLedger
	if cfg.LedgerBackend == db.BackendRedis {
		rl, err := logic.NewRedisLedger(ctx, conns.Redis, sessionID, cfg.LedgerTTL, logger)
		if err != nil {
			return fmt.Errorf("redis ledger: %w", err)
		}
		ledger = rl
	}

	kv, err := kvstore.FromConnections(cfg.KVBackend, conns)
	if err != nil {
		return fmt.Errorf("kv store: %w", err)
	}

	var journal analytics.Journal
	if cfg.ClickHouseDSN != "" {
		ch, err := analytics.InitClickHouse(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("failed to connect clickhouse: %w", err)
		}
		defer ch.Close()
		if err := ch.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
		journal = ch
	}

	metricsRegistry := observability.NewPrometheusRegistry()
	client := campaignapi.NewClient(cfg.APIBaseURL, cfg.TrackingURL, cfg.APITimeout, logger, metricsRegistry)

	eng, err := engine.New(engine.Deps{
		Config:    cfg,
		API:       client,
		Ledger:    ledger,
		KV:        kv,
		Journal:   journal,
		Macros:    macros.NewService(logger),
		Logger:    logger,
		Metrics:   metricsRegistry,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	eng.Start(ctx)
	defer eng.Close()

	// sessions configured in the environment start syncing before the
	// renderer connects
	if cfg.AppID != "" && cfg.AccountID != "" {
		eng.Initialize(syncer.Session{AppID: cfg.AppID, AccountID: cfg.AccountID, UserID: cfg.UserID})
	}

	srvDeps := api.NewServer(logger, eng, metricsRegistry, cfg)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      srvDeps.Router(true),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("bridge server running",
		zap.String("addr", addr),
		zap.String("session_id", sessionID),
		zap.String("ledger", cfg.LedgerBackend),
		zap.String("kv", cfg.KVBackend))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
