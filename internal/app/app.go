// Package app assembles configuration, storage, services and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adeolu/wallet-multicurrency/internal/api"
	"github.com/adeolu/wallet-multicurrency/internal/api/middleware"
	"github.com/adeolu/wallet-multicurrency/internal/config"
	"github.com/adeolu/wallet-multicurrency/internal/db"
	"github.com/adeolu/wallet-multicurrency/internal/idempotency"
	"github.com/adeolu/wallet-multicurrency/internal/notify"
	"github.com/adeolu/wallet-multicurrency/internal/observability"
	"github.com/adeolu/wallet-multicurrency/internal/ratesource"
	"github.com/adeolu/wallet-multicurrency/internal/repository"
	"github.com/adeolu/wallet-multicurrency/internal/service"
	"github.com/adeolu/wallet-multicurrency/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Run boots the wallet service and blocks until shutdown completes.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, idempotency cache disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	var idemCache redis.Cmdable
	if rdb != nil {
		idemCache = rdb
	}
	idemStore := idempotency.NewStore(idemCache, pool, cfg.IdempotencyTTL)

	var rates ratesource.Provider
	if cfg.RateProviderURL != "" {
		rates = ratesource.NewClient(cfg.RateProviderURL, cfg.RateProviderTimeout)
	} else {
		logger.Warn("RATE_PROVIDER_URL not set, using built-in mock rates")
		rates = ratesource.NewMock()
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhook(cfg.NotifyWebhookURL)
	}

	repo := repository.NewRepository(pool)
	store := repository.NewStore(pool)
	accounts := service.NewAccountService(repo, store)
	ledger := service.NewLedgerService(repo, pool, rates, notifier).WithLockWait(cfg.LockWaitTimeout)

	reconciler := worker.NewReconciliationWorker(service.NewReconciliationService(pool), logger).
		WithInterval(cfg.ReconciliationInterval)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	router := api.NewRouter(cfg, logger, pool, rdb, repo, idemStore, accounts, ledger)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}
