package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/possync/internal/adapter/http/dto"
)

const healthCheckTimeout = 5 * time.Second

// Pinger checks that a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check requests.
type HealthHandler struct {
	db          Pinger
	cache       Pinger
	consistency ConsistencyService
	now         func() time.Time
}

// NewHealthHandler creates a new HealthHandler. cache and consistency may be nil.
func NewHealthHandler(db, cache Pinger, consistency ConsistencyService) *HealthHandler {
	return &HealthHandler{
		db:          db,
		cache:       cache,
		consistency: consistency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Liveness returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// Readiness returns 200 if Postgres and Redis answer.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		ready = false
	} else {
		checks["postgres"] = "ok"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable", Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "ready", Checks: checks})
}

// Ping reports server time and database reachability. It always answers
// 200 so clients can read the server clock even when storage is down.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := dto.PingResponse{Status: "ok", ServerTime: h.now(), Database: "connected"}
	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
	}
	if h.cache != nil {
		resp.Cache = "connected"
		if err := h.cache.Ping(ctx); err != nil {
			resp.Cache = "unreachable"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Consistency runs the invariant scan.
func (h *HealthHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	if h.consistency == nil {
		writeErrorMessage(w, http.StatusNotImplemented, "storage", "consistency check not configured")
		return
	}

	report, err := h.consistency.Check(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromReport(report))
}
