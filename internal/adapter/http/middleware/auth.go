package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/infrastructure/auth"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// ScopeContextKey is the context key for the caller's visibility scope
	ScopeContextKey ContextKey = "scope"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

// Authenticate requires a bearer token and stores the scope carried by its claims.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header format")
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), claims.Scope())))
		})
	}
}

// ScopeFromQuery builds the scope from the user_role and shop_id query
// parameters legacy POS clients send. It never rejects: a missing or bad
// role leaves the context without a scope and the handler reports it.
func ScopeFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		role, err := domain.ParseRole(q.Get("user_role"))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		scope := domain.Scope{Role: role}
		if raw := q.Get("shop_id"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				scope.ShopID = &id
			}
		}
		scope.Actor.Name = strings.TrimSpace(q.Get("user_id"))

		next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
	})
}

// RequireAdmin rejects callers whose scope is not admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := ScopeFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "caller scope required")
			return
		}
		if !scope.IsAdmin() {
			writeJSONError(w, http.StatusForbidden, string(domain.KindAccessDenied), "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithScope stores scope in ctx.
func WithScope(ctx context.Context, scope domain.Scope) context.Context {
	return context.WithValue(ctx, ScopeContextKey, scope)
}

// ScopeFromContext extracts the caller scope from context
func ScopeFromContext(ctx context.Context) (domain.Scope, bool) {
	scope, ok := ctx.Value(ScopeContextKey).(domain.Scope)
	return scope, ok
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}
