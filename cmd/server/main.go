package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/finledger/internal/adapter/http"
	"github.com/iho/finledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/finledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/finledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/finledger/internal/adapter/repository/redis"
	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/infrastructure/config"
	"github.com/iho/finledger/internal/infrastructure/eventpublisher"
	"github.com/iho/finledger/internal/infrastructure/logger"
	"github.com/iho/finledger/internal/infrastructure/metrics"
	"github.com/iho/finledger/internal/infrastructure/postgres"
	"github.com/iho/finledger/internal/infrastructure/redis"
	"github.com/iho/finledger/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		URL:         cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
		PingTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	transactionRepo := postgresRepo.NewTransactionRepository(pool, entryRepo)
	snapshotRepo := postgresRepo.NewSnapshotRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	sagaRepo := postgresRepo.NewSagaRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)

	// Use cases
	guard := usecase.NewIntegrityGuard()
	retrier := postgresRepo.NewRetrier(appLogger)

	accountUC := usecase.NewAccountUseCase(accountRepo, outboxRepo, auditRepo, txManager, idGen)
	journalUC := usecase.NewJournalUseCase(
		txManager, accountRepo, transactionRepo, entryRepo,
		snapshotRepo, outboxRepo, auditRepo, cache, idGen, guard, retrier,
	)
	balanceUC := usecase.NewBalanceUseCase(accountRepo, entryRepo, snapshotRepo, auditRepo, cache, idGen, guard)

	coordinator := usecase.NewCoordinator(usecase.CoordinatorConfig{
		SagaRepo:   sagaRepo,
		OutboxRepo: outboxRepo,
		AuditRepo:  auditRepo,
		TxManager:  txManager,
		IDGen:      idGen,
		Logger:     appLogger,
		Timeout:    cfg.CoordinatorTimeout,
		Guard:      guard,
	})
	coordinator.RegisterCollaborator("ledger", usecase.NewLedgerCollaborator(journalUC))
	go coordinator.StartSweeper(ctx, cfg.CoordinatorSweepInterval)

	appMetrics := metrics.New()

	// Outbox relay: every event is logged and fanned out to in-process
	// subscribers.
	bus := eventpublisher.NewBus(0)
	defer bus.Close()

	for _, eventType := range []string{
		domain.EventTypeTransactionPosted,
		domain.EventTypeTransactionReversed,
		domain.EventTypeBalanceChanged,
		domain.EventTypeTransactionRolledBack,
		domain.EventTypeAccountCreated,
		domain.EventTypeAccountClosed,
	} {
		go func(events <-chan *domain.OutboxEvent) {
			for event := range events {
				appMetrics.EventsPublished.WithLabelValues(event.EventType).Inc()
			}
		}(bus.Subscribe(eventType))
	}

	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  eventpublisher.NewFanout(eventpublisher.NewLogPublisher(appLogger), bus),
		Logger:     appLogger,
		BatchSize:  cfg.PublisherBatchSize,
		Interval:   cfg.PublisherInterval,
		Retention:  cfg.PublisherRetention,
	})
	go publisher.Start(ctx)

	// HTTP layer
	rateLimiter := apimiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:     handler.NewAccountHandler(accountUC),
		JournalHandler:     handler.NewJournalHandler(journalUC),
		BalanceHandler:     handler.NewBalanceHandler(balanceUC),
		CoordinatorHandler: handler.NewCoordinatorHandler(coordinator),
		AuditHandler:       handler.NewAuditHandler(auditRepo),
		HealthHandler:      handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore:   idempotencyStore,
		Metrics:            appMetrics,
		RateLimiter:        rateLimiter,
		Logger:             appLogger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
