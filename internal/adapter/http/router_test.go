package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/possync/internal/adapter/http/handler"
	apimiddleware "github.com/iho/possync/internal/adapter/http/middleware"
	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/infrastructure/auth"
	"github.com/iho/possync/internal/infrastructure/metrics"
	"github.com/iho/possync/internal/usecase"
	"github.com/iho/possync/internal/usecase/mocks"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1, nil)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/operations/tombstones", strings.NewReader(`{"code_ops_list":["OP-1"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if !store.checkCalled {
		t.Fatalf("expected idempotency store to be used")
	}
	if rec.Code != http.StatusOK || !store.updateCalled {
		t.Fatalf("expected response to be stored, got %d", rec.Code)
	}
}

func TestNewRouter_ScopeFromQuery(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/trash/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("trash listing needs no scope, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/trash/OP-1/restore?user_role=agent&shop_id=2", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("agents may not restore, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/trash/OP-1/restore", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing scope should be unauthorized, got %d", rec.Code)
	}
}

func TestNewRouter_BearerAuthentication(t *testing.T) {
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.TokenVerifier = rejectingVerifier{}
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/ping?user_role=admin", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("query scope must be ignored when auth is enabled, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health stays public, got %d", rec.Code)
	}
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.CORSAllowedOrigins = []string{"https://pos.example"}
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sync/operations/upload", nil)
	req.Header.Set("Origin", "https://pos.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://pos.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestNewRouter_BareOptionsIsNoContent(t *testing.T) {
	router := NewRouter(newRouterConfig())

	for _, path := range []string{"/health", "/api/v1/sync/operations/upload", "/api/v1/sync/operations/OP-1/status"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, path, nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("OPTIONS %s: expected 204, got %d", path, rec.Code)
		}
		if rec.Header().Get("Allow") == "" {
			t.Fatalf("OPTIONS %s: expected an Allow header", path)
		}
	}
}

func TestNewRouter_AuditHistoryIsAdminOnly(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/audit?user_role=agent&shop_id=2", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for an agent, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/audit?user_role=admin", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an admin, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.Metrics = metrics.New(reg)
		cfg.Gatherer = reg
	}))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "possync_http_requests_total") {
		t.Fatalf("expected http request counter in exposition")
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /api/v1/sync/ping",
		"GET /api/v1/sync/consistency",
		"GET /api/v1/sync/operations/changes",
		"GET /api/v1/sync/operations/feed",
		"POST /api/v1/sync/operations/smart",
		"POST /api/v1/sync/operations/delta",
		"POST /api/v1/sync/operations/upload",
		"POST /api/v1/sync/operations/validate-transfer",
		"GET /api/v1/sync/operations/validated-transfers",
		"POST /api/v1/sync/operations/tombstones",
		"GET /api/v1/sync/operations/{code}",
		"POST /api/v1/sync/operations/{code}/status",
		"GET /api/v1/sync/audit",
		"POST /api/v1/sync/deletion-requests/",
		"GET /api/v1/sync/deletion-requests/",
		"GET /api/v1/sync/deletion-requests/pending/admin",
		"GET /api/v1/sync/deletion-requests/pending/agent",
		"POST /api/v1/sync/deletion-requests/{code}/admin-approve",
		"POST /api/v1/sync/deletion-requests/{code}/agent-decision",
		"POST /api/v1/sync/deletion-requests/{code}/cancel",
		"GET /api/v1/sync/trash/",
		"POST /api/v1/sync/trash/{code}/restore",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	ping := handler.PingFunc(func(ctx context.Context) error { return nil })

	cfg := RouterConfig{
		FeedHandler:      handler.NewFeedHandler(nil),
		UploadHandler:    handler.NewUploadHandler(nil),
		TransferHandler:  handler.NewTransferHandler(nil),
		TombstoneHandler: handler.NewTombstoneHandler(stubTombstoneService{}),
		DeletionHandler:  handler.NewDeletionHandler(stubDeletionService{}),
		OperationHandler: handler.NewOperationHandler(nil),
		AuditHandler:     handler.NewAuditHandler(usecase.NewAuditHistoryUseCase(mocks.NewMockAuditRepository())),
		HealthHandler:    handler.NewHealthHandler(ping, nil, nil),
		Logger:           zerolog.Nop(),
		Gatherer:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubTombstoneService struct{}

func (stubTombstoneService) Check(ctx context.Context, codes []string) ([]string, error) {
	return []string{}, nil
}

// stubDeletionService answers the trash listing; the other methods are not
// reached in these tests.
type stubDeletionService struct {
	handler.DeletionService
}

func (stubDeletionService) ListTrash(ctx context.Context, filter usecase.TrashFilter) ([]*domain.TrashEntry, error) {
	return nil, nil
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(token string) (*auth.Claims, error) {
	return nil, domain.ErrAccessDenied
}

type stubIdempotencyStore struct {
	checkCalled  bool
	updateCalled bool
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.updateCalled = true
	return nil
}

func (s *stubIdempotencyStore) Release(ctx context.Context, key string) error {
	return nil
}
