package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/possync/internal/adapter/http/handler"
	"github.com/iho/possync/internal/adapter/http/middleware"
	"github.com/iho/possync/internal/infrastructure/metrics"
	"github.com/iho/possync/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	FeedHandler      *handler.FeedHandler
	UploadHandler    *handler.UploadHandler
	TransferHandler  *handler.TransferHandler
	TombstoneHandler *handler.TombstoneHandler
	DeletionHandler  *handler.DeletionHandler
	OperationHandler *handler.OperationHandler
	AuditHandler     *handler.AuditHandler
	HealthHandler    *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
	// TokenVerifier enables bearer authentication. When nil the caller
	// scope is read from the user_role/shop_id query parameters.
	TokenVerifier      middleware.TokenVerifier
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader},
		ExposedHeaders: []string{middleware.IdempotencyReplayHeader},
		MaxAge:         300,
	}))
	r.Use(bareOptions)
	r.Use(chimiddleware.Compress(5))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/sync", func(r chi.Router) {
		if cfg.TokenVerifier != nil {
			r.Use(middleware.Authenticate(cfg.TokenVerifier))
		} else {
			r.Use(middleware.ScopeFromQuery)
		}

		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		r.Get("/ping", cfg.HealthHandler.Ping)
		r.With(middleware.RequireAdmin).Get("/consistency", cfg.HealthHandler.Consistency)
		r.With(middleware.RequireAdmin).Get("/audit", cfg.AuditHandler.History)

		r.Route("/operations", func(r chi.Router) {
			r.Get("/changes", cfg.FeedHandler.Changes)
			r.Get("/feed", cfg.FeedHandler.Page)
			r.Post("/smart", cfg.FeedHandler.Smart)
			r.Post("/delta", cfg.FeedHandler.Delta)
			r.Post("/upload", cfg.UploadHandler.Upload)
			r.Post("/validate-transfer", cfg.TransferHandler.Validate)
			r.Get("/validated-transfers", cfg.TransferHandler.ListValidated)
			r.Post("/tombstones", cfg.TombstoneHandler.Check)
			r.Get("/{code}", cfg.OperationHandler.Get)
			r.Post("/{code}/status", cfg.OperationHandler.UpdateStatus)
		})

		r.Route("/deletion-requests", func(r chi.Router) {
			r.Get("/", cfg.DeletionHandler.List)
			r.With(middleware.RequireAdmin).Post("/", cfg.DeletionHandler.Create)
			r.With(middleware.RequireAdmin).Get("/pending/admin", cfg.DeletionHandler.PendingForAdmin)
			r.Get("/pending/agent", cfg.DeletionHandler.PendingForAgent)
			r.With(middleware.RequireAdmin).Post("/{code}/admin-approve", cfg.DeletionHandler.AdminApprove)
			r.Post("/{code}/agent-decision", cfg.DeletionHandler.AgentDecision)
			r.Post("/{code}/cancel", cfg.DeletionHandler.Cancel)
		})

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", cfg.DeletionHandler.ListTrash)
			r.With(middleware.RequireAdmin).Post("/{code}/restore", cfg.DeletionHandler.Restore)
		})
	})

	return r
}

// bareOptions answers an OPTIONS request that is not a CORS preflight with an
// empty 204. Preflights never get here: the CORS handler answers them.
func bareOptions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Allow", "GET, POST, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
