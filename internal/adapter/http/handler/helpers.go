package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/iho/possync/internal/adapter/http/dto"
	"github.com/iho/possync/internal/adapter/http/middleware"
	"github.com/iho/possync/internal/domain"
)

// maxBodyBytes bounds request bodies; upload batches are the largest.
const maxBodyBytes = 8 << 20

// hideStorageErrors replaces storage error details with a generic message.
var hideStorageErrors atomic.Bool

// HideStorageErrors controls whether storage failures are reported verbatim.
// Production deployments hide them.
func HideStorageErrors(hide bool) {
	hideStorageErrors.Store(hide)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeErrorMessage writes an error response with an explicit status.
func writeErrorMessage(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: kind, Message: message})
}

// writeError maps err to its kind and HTTP status.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	writeErrorMessage(w, statusForKind(kind), string(kind), publicMessage(kind, err.Error()))
}

// publicMessage drops storage error text when storage errors are hidden.
func publicMessage(kind domain.ErrorKind, message string) string {
	if kind == domain.KindStorage && hideStorageErrors.Load() {
		return "internal error"
	}
	return message
}

// statusForKind maps error kinds to HTTP status codes.
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindDuplicateSkipped:
		return http.StatusOK
	case domain.KindAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewFieldError("body", "invalid request body: "+err.Error())
	}
	return nil
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseTimeQuery parses an optional timestamp query parameter.
func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return nil, nil
	}
	t, err := domain.ParseTimestamp(val)
	if err != nil {
		return nil, domain.NewFieldError(key, "unrecognized timestamp "+val)
	}
	return &t, nil
}

// parseInt64Query parses an optional positive id query parameter.
func parseInt64Query(r *http.Request, key string) (*int64, error) {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil || id <= 0 {
		return nil, domain.NewFieldError(key, "must be a positive integer")
	}
	return &id, nil
}

// parseBoolQuery parses an optional boolean query parameter.
func parseBoolQuery(r *http.Request, key string) (*bool, error) {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, domain.NewFieldError(key, "must be a boolean")
	}
	return &b, nil
}

// scopeOf returns the caller scope attached by the scope middleware.
func scopeOf(r *http.Request) (domain.Scope, error) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		return domain.Scope{}, domain.NewFieldError("user_role", "caller role is required")
	}
	if err := scope.Validate(); err != nil {
		return domain.Scope{}, err
	}
	return scope, nil
}

// actorOf prefers the authenticated identity over the one named in the body.
func actorOf(r *http.Request, fromBody domain.Actor) domain.Actor {
	if scope, ok := middleware.ScopeFromContext(r.Context()); ok && !scope.Actor.IsZero() {
		return scope.Actor
	}
	return fromBody
}
