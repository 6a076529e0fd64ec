package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/possync/internal/infrastructure/metrics"
)

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		path       string
		route      string
		statusCode int
	}{
		{
			name:       "labels by route pattern",
			method:     http.MethodPost,
			path:       "/deletion-requests/OP-123/cancel",
			route:      "/deletion-requests/{code}/cancel",
			statusCode: http.StatusConflict,
		},
		{
			name:       "static route",
			method:     http.MethodGet,
			path:       "/health",
			route:      "/health",
			statusCode: http.StatusOK,
		},
		{
			name:       "unmatched path collapses",
			method:     http.MethodGet,
			path:       "/does/not/exist",
			route:      unmatchedRoute,
			statusCode: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry())

			r := chi.NewRouter()
			r.Use(Metrics(m))
			handler := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(tc.statusCode) }
			r.Post("/deletion-requests/{code}/cancel", handler)
			r.Get("/health", handler)

			req := httptest.NewRequest(tc.method, tc.path, nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if got := testutil.ToFloat64(m.HTTPInFlight); got != 0 {
				t.Fatalf("expected in-flight gauge to return to 0, got %v", got)
			}

			counter := m.HTTPRequests.WithLabelValues(tc.method, tc.route, strconv.Itoa(tc.statusCode))
			if got := testutil.ToFloat64(counter); got != 1 {
				t.Fatalf("expected counter to be 1, got %v", got)
			}
		})
	}
}

func TestRoutePatternWithoutRouter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if got := routePattern(req); got != unmatchedRoute {
		t.Fatalf("routePattern = %q, want %q", got, unmatchedRoute)
	}
}
