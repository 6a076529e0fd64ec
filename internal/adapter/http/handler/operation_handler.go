package handler

import (
	"net/http"

	"github.com/iho/possync/internal/adapter/http/dto"
)

// OperationHandler serves single operations outside a sync batch.
type OperationHandler struct {
	operations OperationService
}

// NewOperationHandler creates a new OperationHandler.
func NewOperationHandler(operations OperationService) *OperationHandler {
	return &OperationHandler{operations: operations}
}

// Get returns one operation by business code.
func (h *OperationHandler) Get(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	scope, err := scopeOf(r)
	if err != nil {
		writeError(w, err)
		return
	}

	op, err := h.operations.Get(r.Context(), code, scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OperationFromDomain(op))
}

// UpdateStatus moves one operation forward and flags it for the next sync.
func (h *OperationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	scope, err := scopeOf(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.StatusUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.operations.UpdateStatus(r.Context(), req.ToUseCaseInput(code, actorOf(r, req.Actor()), scope))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatusUpdateFromResult(result))
}
