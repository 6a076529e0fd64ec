package handler

import (
	"net/http"
	"strings"

	"github.com/iho/possync/internal/adapter/http/dto"
	"github.com/iho/possync/internal/adapter/http/middleware"
	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// TransferHandler handles transfer handoff requests.
type TransferHandler struct {
	handoff HandoffService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(handoff HandoffService) *TransferHandler {
	return &TransferHandler{handoff: handoff}
}

// Validate marks a pending transfer validated by its destination shop.
func (h *TransferHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidateTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	hr := req.ToDomain()

	// An agent may only validate transfers addressed to their own shop.
	if scope, ok := middleware.ScopeFromContext(r.Context()); ok && !scope.IsAdmin() {
		if scope.ShopID == nil || *scope.ShopID != hr.DestinationShopID {
			writeError(w, domain.ErrDestinationMismatch)
			return
		}
		if name := strings.TrimSpace(scope.Actor.Name); name != "" {
			hr.ValidatorID = name
		}
	}

	result, err := h.handoff.Validate(r.Context(), hr)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ValidateTransferFromResult(result))
}

// ListValidated lists validated transfers a shop sent or received.
func (h *TransferHandler) ListValidated(w http.ResponseWriter, r *http.Request) {
	since, err := parseTimeQuery(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	shopID, err := parseInt64Query(r, "shop_id")
	if err != nil {
		writeError(w, err)
		return
	}

	if scope, ok := middleware.ScopeFromContext(r.Context()); ok && !scope.IsAdmin() {
		if scope.ShopID == nil || (shopID != nil && *shopID != *scope.ShopID) {
			writeError(w, domain.ErrAgentWithoutShop)
			return
		}
		shopID = scope.ShopID
	}
	if shopID == nil {
		writeError(w, domain.NewFieldError("shop_id", "shop id is required"))
		return
	}

	ops, err := h.handoff.ListValidated(r.Context(), usecase.ValidatedTransfersQuery{
		Since:  since,
		Role:   strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))),
		ShopID: *shopID,
		Limit:  parseIntQuery(r, "limit", domain.DefaultPageSize),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(dto.OperationsFromDomain(ops)))
}
