package api

import (
	"net/http"

	"github.com/adeolu/wallet-multicurrency/internal/api/handler"
	"github.com/adeolu/wallet-multicurrency/internal/api/middleware"
	"github.com/adeolu/wallet-multicurrency/internal/api/spec"
	"github.com/adeolu/wallet-multicurrency/internal/config"
	"github.com/adeolu/wallet-multicurrency/internal/idempotency"
	"github.com/adeolu/wallet-multicurrency/internal/repository"
	"github.com/adeolu/wallet-multicurrency/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRouter wires middleware, handlers and routes.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *pgxpool.Pool,
	rdb *redis.Client,
	repo *repository.Repository,
	idemStore *idempotency.Store,
	accounts *service.AccountService,
	ledger *service.LedgerService,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.MetricsMiddleware)

	authHandler := handler.NewAuthHandler(repo, accounts)
	accountHandler := handler.NewAccountHandler(accounts)
	ledgerHandler := handler.NewLedgerHandler(ledger, accounts)
	healthHandler := handler.NewHealthHandler(db, rdb)

	r.Get("/healthz/live", healthHandler.Live)
	r.Get("/healthz/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.PublicRateLimiter(cfg.PublicRateLimitRPS))
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware)
			r.Use(middleware.AuthRateLimiter(cfg.AuthRateLimitRPS))

			r.Get("/accounts/{accountID}", accountHandler.GetAccount)
			r.Get("/accounts/{accountID}/transactions", accountHandler.GetStatement)

			r.Group(func(r chi.Router) {
				r.Use(middleware.IdempotencyMiddleware(idemStore, logger))
				r.Post("/deposits", ledgerHandler.Deposit)
				r.Post("/transfers", ledgerHandler.Transfer)
				r.Post("/conversions", ledgerHandler.Convert)
			})
		})
	})

	return r
}
