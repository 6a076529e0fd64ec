package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/possync/internal/adapter/http"
	"github.com/iho/possync/internal/adapter/http/handler"
	"github.com/iho/possync/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/possync/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/possync/internal/adapter/repository/redis"
	"github.com/iho/possync/internal/infrastructure/auth"
	"github.com/iho/possync/internal/infrastructure/config"
	"github.com/iho/possync/internal/infrastructure/logger"
	"github.com/iho/possync/internal/infrastructure/metrics"
	"github.com/iho/possync/internal/infrastructure/postgres"
	"github.com/iho/possync/internal/infrastructure/redis"
	"github.com/iho/possync/internal/usecase"
)

const (
	poolStatsInterval  = 15 * time.Second
	limiterCleanupTick = time.Minute
	limiterMaxIdle     = 10 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = lg

	if err := run(cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, lg zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	lg.Info().Msg("connected to postgres")

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, lg); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := redis.NewClient(ctx, redis.ClientConfig{URL: cfg.RedisURL})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()
	lg.Info().Msg("connected to redis")

	handler.HideStorageErrors(cfg.IsProduction())

	m := metrics.New(prometheus.DefaultRegisterer)

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	opRepo := postgresRepo.NewOperationRepository(pool)
	refRepo := postgresRepo.NewReferenceRepository(pool)
	delRepo := postgresRepo.NewDeletionRequestRepository(pool)
	trashRepo := postgresRepo.NewTrashRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	consistencyRepo := postgresRepo.NewConsistencyRepository(pool)
	retrier := postgresRepo.NewRetrier(lg).OnRetry(m.TxRetry)
	idGen := postgresRepo.NewULIDGenerator()
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)

	// Use cases
	resolver := usecase.NewReferenceResolver(refRepo, cache, cfg.CacheTTL)
	feedUC := usecase.NewChangeFeedUseCase(opRepo, m)
	uploadUC := usecase.NewUploadUseCase(txManager, opRepo, resolver, auditRepo, retrier, m, lg)
	handoffUC := usecase.NewTransferHandoffUseCase(txManager, opRepo, auditRepo, retrier, m, lg)
	tombstoneUC := usecase.NewTombstoneUseCase(trashRepo, m, cfg.TombstoneMaxCodes)
	deletionUC := usecase.NewDeletionWorkflowUseCase(txManager, opRepo, delRepo, trashRepo, auditRepo, idGen, retrier, m, lg)
	consistencyUC := usecase.NewConsistencyUseCase(consistencyRepo)
	operationUC := usecase.NewOperationUseCase(txManager, opRepo, auditRepo, retrier, lg)
	auditUC := usecase.NewAuditHistoryUseCase(auditRepo)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m.RateLimitHits)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		FeedHandler:      handler.NewFeedHandler(feedUC),
		UploadHandler:    handler.NewUploadHandler(uploadUC),
		TransferHandler:  handler.NewTransferHandler(handoffUC),
		TombstoneHandler: handler.NewTombstoneHandler(tombstoneUC),
		DeletionHandler:  handler.NewDeletionHandler(deletionUC),
		OperationHandler: handler.NewOperationHandler(operationUC),
		AuditHandler:     handler.NewAuditHandler(auditUC),
		HealthHandler: handler.NewHealthHandler(
			handler.PingFunc(pool.Ping),
			handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
			consistencyUC,
		),
		IdempotencyStore:   idempotencyStore,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		RateLimiter:        limiter,
		Metrics:            m,
		Logger:             lg,
		TokenVerifier:      tokenVerifier(cfg),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout:     cfg.HTTPRequestTimeout,
	})

	done := make(chan struct{})
	defer close(done)
	go limiter.RunCleanup(done, limiterCleanupTick, limiterMaxIdle)
	go observePool(done, pool, m)

	server := newHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("port", cfg.HTTPPort).Bool("auth", cfg.AuthEnabled).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	lg.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	lg.Info().Msg("server stopped")
	return nil
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}

// tokenVerifier returns nil when authentication is disabled so the router
// falls back to query parameter scopes.
func tokenVerifier(cfg *config.Config) middleware.TokenVerifier {
	if !cfg.AuthEnabled {
		return nil
	}
	return auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
}

func observePool(stop <-chan struct{}, pool *pgxpool.Pool, m *metrics.Metrics) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.ObservePool(pool.Stat())
		case <-stop:
			return
		}
	}
}
