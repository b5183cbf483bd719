package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/finledger/internal/adapter/http/handler"
	"github.com/iho/finledger/internal/adapter/http/middleware"
	"github.com/iho/finledger/internal/infrastructure/metrics"
	"github.com/iho/finledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler     *handler.AccountHandler
	JournalHandler     *handler.JournalHandler
	BalanceHandler     *handler.BalanceHandler
	CoordinatorHandler *handler.CoordinatorHandler
	AuditHandler       *handler.AuditHandler
	HealthHandler      *handler.HealthHandler
	IdempotencyStore   usecase.IdempotencyStore
	Metrics            *metrics.Metrics
	RateLimiter        *middleware.RateLimiter
	Logger             zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.NewRecoveryMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health and observability endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Chart of accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Put("/{id}", cfg.AccountHandler.Update)
			r.Post("/{id}/close", cfg.AccountHandler.Close)
			r.Get("/{id}/balance", cfg.BalanceHandler.GetBalance)
			r.Get("/{id}/transactions", cfg.JournalHandler.ListByAccount)
			r.Get("/code/{code}", cfg.AccountHandler.GetByCode)
		})

		// Journal
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", cfg.JournalHandler.Record)
			r.Get("/{id}", cfg.JournalHandler.Get)
			r.Post("/{id}/post", cfg.JournalHandler.Post)
			r.Post("/{id}/reverse", cfg.JournalHandler.Reverse)
		})

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", cfg.BalanceHandler.TrialBalance)
			r.Get("/balance-sheet", cfg.BalanceHandler.BalanceSheet)
			r.Post("/reconcile", cfg.BalanceHandler.Reconcile)
		})

		// Distributed transaction coordinator
		r.Route("/contexts", func(r chi.Router) {
			r.Post("/", cfg.CoordinatorHandler.Begin)
			r.Get("/{id}", cfg.CoordinatorHandler.Get)
			r.Post("/{id}/operations", cfg.CoordinatorHandler.AddOperation)
			r.Post("/{id}/commit", cfg.CoordinatorHandler.Commit)
			r.Post("/{id}/rollback", cfg.CoordinatorHandler.Rollback)
		})

		// Audit trail
		r.Route("/audit", func(r chi.Router) {
			r.Get("/", cfg.AuditHandler.List)
			r.Get("/{type}/{id}", cfg.AuditHandler.GetByResource)
		})
	})

	return r
}
