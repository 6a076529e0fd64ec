package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/possync/internal/adapter/http/dto"
	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

func TestTransferHandler_Validate_Success(t *testing.T) {
	var captured domain.HandoffRequest
	h := NewTransferHandler(&handoffServiceStub{
		validateFn: func(ctx context.Context, req domain.HandoffRequest) (*usecase.HandoffResult, error) {
			captured = req
			return &usecase.HandoffResult{
				Operation: &domain.Operation{ID: 9, Reference: req.Reference, Status: domain.OperationStatusValidated},
				Strategy:  domain.MatchByReference,
			}, nil
		},
	})

	scope := domain.AgentScope(5)
	scope.Actor = domain.Actor{Name: "agent-5"}
	body := `{"reference":"TRF-1","shop_destination_id":5,"mode_paiement":"cash","validated_by":"someone-else"}`
	req := withScope(httptest.NewRequest(http.MethodPost, "/transfers/validate", bytes.NewBufferString(body)), scope)
	rec := httptest.NewRecorder()
	h.Validate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Reference != "TRF-1" || captured.DestinationShopID != 5 {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if captured.ValidatorID != "agent-5" {
		t.Fatalf("expected validator from token, got %q", captured.ValidatorID)
	}

	var resp dto.ValidateTransferResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.MatchedBy != "reference" || resp.Operation.ID != 9 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTransferHandler_Validate_WrongDestination(t *testing.T) {
	h := NewTransferHandler(&handoffServiceStub{
		validateFn: func(ctx context.Context, req domain.HandoffRequest) (*usecase.HandoffResult, error) {
			t.Fatal("use case must not be called")
			return nil, nil
		},
	})

	body := `{"reference":"TRF-1","shop_destination_id":6,"mode_paiement":"cash"}`
	req := withScope(httptest.NewRequest(http.MethodPost, "/transfers/validate", bytes.NewBufferString(body)), domain.AgentScope(5))
	rec := httptest.NewRecorder()
	h.Validate(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestTransferHandler_Validate_NotFound(t *testing.T) {
	h := NewTransferHandler(&handoffServiceStub{
		validateFn: func(ctx context.Context, req domain.HandoffRequest) (*usecase.HandoffResult, error) {
			return nil, domain.ErrOperationNotFound
		},
	})

	body := `{"code_ops":"OP-404","shop_destination_id":5,"mode_paiement":"cash"}`
	req := withScope(httptest.NewRequest(http.MethodPost, "/transfers/validate", bytes.NewBufferString(body)), domain.AdminScope())
	rec := httptest.NewRecorder()
	h.Validate(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTransferHandler_ListValidated_AgentPinned(t *testing.T) {
	var captured usecase.ValidatedTransfersQuery
	h := NewTransferHandler(&handoffServiceStub{
		listValidatedFn: func(ctx context.Context, query usecase.ValidatedTransfersQuery) ([]*domain.Operation, error) {
			captured = query
			return []*domain.Operation{{ID: 1}, {ID: 2}}, nil
		},
	})

	req := withScope(httptest.NewRequest(http.MethodGet, "/transfers/validated?role=Destination&limit=10", nil), domain.AgentScope(8))
	rec := httptest.NewRecorder()
	h.ListValidated(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.ShopID != 8 || captured.Role != "destination" || captured.Limit != 10 {
		t.Fatalf("unexpected query: %+v", captured)
	}

	var resp dto.ListResponse[*dto.OperationPayload]
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 2 {
		t.Fatalf("expected 2 items, got %d", resp.Count)
	}
}

func TestTransferHandler_ListValidated_AgentOtherShop(t *testing.T) {
	h := NewTransferHandler(&handoffServiceStub{})

	req := withScope(httptest.NewRequest(http.MethodGet, "/transfers/validated?shop_id=9", nil), domain.AgentScope(8))
	rec := httptest.NewRecorder()
	h.ListValidated(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestTransferHandler_ListValidated_AdminNeedsShop(t *testing.T) {
	h := NewTransferHandler(&handoffServiceStub{})

	req := withScope(httptest.NewRequest(http.MethodGet, "/transfers/validated", nil), domain.AdminScope())
	rec := httptest.NewRecorder()
	h.ListValidated(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
