package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/iho/possync/internal/adapter/http/dto"
	"github.com/iho/possync/internal/adapter/http/middleware"
	"github.com/iho/possync/internal/domain"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/feed?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/feed?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestParseTimeQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/feed?since=2026-03-10+09:00:00", nil)
	got, err := parseTimeQuery(req, "since")
	if err != nil || got == nil || got.Hour() != 9 {
		t.Fatalf("unexpected result: %v %v", got, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/feed?since=soon", nil)
	if _, err := parseTimeQuery(req, "since"); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/feed", nil)
	if got, err := parseTimeQuery(req, "since"); got != nil || err != nil {
		t.Fatalf("expected nil checkpoint, got %v %v", got, err)
	}
}

func TestParseInt64AndBoolQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?shop_id=4&is_restored=true", nil)
	id, err := parseInt64Query(req, "shop_id")
	if err != nil || id == nil || *id != 4 {
		t.Fatalf("unexpected shop id: %v %v", id, err)
	}
	b, err := parseBoolQuery(req, "is_restored")
	if err != nil || b == nil || !*b {
		t.Fatalf("unexpected bool: %v %v", b, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/x?shop_id=-1&is_restored=maybe", nil)
	if _, err := parseInt64Query(req, "shop_id"); err == nil {
		t.Fatal("expected error for negative id")
	}
	if _, err := parseBoolQuery(req, "is_restored"); err == nil {
		t.Fatal("expected error for bad bool")
	}
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", domain.NewFieldError("x", "bad"), http.StatusBadRequest},
		{"not found", domain.ErrOperationNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("shop: %w", domain.ErrShopNotFound), http.StatusNotFound},
		{"conflict", domain.ErrInvalidTransition, http.StatusConflict},
		{"open request", domain.ErrOpenRequestExists, http.StatusConflict},
		{"duplicate", domain.ErrDuplicateSkipped, http.StatusOK},
		{"access denied", domain.ErrAgentWithoutShop, http.StatusForbidden},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForKind(domain.KindOf(tt.err)); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"status": "ok"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestWriteError_HidesStorageDetails(t *testing.T) {
	t.Cleanup(func() { HideStorageErrors(false) })

	storageErr := domain.WrapStorage("list changes", errors.New("pq: relation operations does not exist"))

	rr := httptest.NewRecorder()
	writeError(rr, storageErr)
	var resp dto.ErrorResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Error != "storage" || !strings.Contains(resp.Message, "relation") {
		t.Fatalf("expected verbatim storage error, got %+v", resp)
	}

	HideStorageErrors(true)
	rr = httptest.NewRecorder()
	writeError(rr, storageErr)
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if rr.Code != http.StatusInternalServerError || strings.Contains(resp.Message, "relation") {
		t.Fatalf("expected hidden storage error, got %d %+v", rr.Code, resp)
	}

	rr = httptest.NewRecorder()
	writeError(rr, domain.ErrOperationNotFound)
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Message != domain.ErrOperationNotFound.Error() {
		t.Fatalf("non-storage messages stay visible, got %+v", resp)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		A int `json:"a"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"a":3}`))
	if err := decodeJSON(httptest.NewRecorder(), req, &dst); err != nil || dst.A != 3 {
		t.Fatalf("decode: %v %+v", err, dst)
	}

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(``))
	if err := decodeJSON(httptest.NewRecorder(), req, &dst); err != nil {
		t.Fatalf("empty body should be accepted, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"a":`))
	if err := decodeJSON(httptest.NewRecorder(), req, &dst); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestScopeOf(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := scopeOf(req); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("missing scope should be a validation error, got %v", err)
	}

	req = withScope(req, domain.Scope{Role: domain.RoleAgent})
	if _, err := scopeOf(req); domain.KindOf(err) != domain.KindAccessDenied {
		t.Fatalf("agent without shop should be denied, got %v", err)
	}

	req = withScope(req, domain.AgentScope(3))
	scope, err := scopeOf(req)
	if err != nil || *scope.ShopID != 3 {
		t.Fatalf("unexpected scope: %+v %v", scope, err)
	}
}

func TestActorOf(t *testing.T) {
	body := domain.Actor{Name: "from-body"}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if got := actorOf(req, body); got.Name != "from-body" {
		t.Fatalf("expected body actor, got %+v", got)
	}

	scope := domain.AdminScope()
	scope.Actor = domain.Actor{ID: 1, Name: "from-token"}
	req = withScope(req, scope)
	if got := actorOf(req, body); got.Name != "from-token" {
		t.Fatalf("expected token actor, got %+v", got)
	}
}

func withScope(r *http.Request, scope domain.Scope) *http.Request {
	return r.WithContext(middleware.WithScope(r.Context(), scope))
}
