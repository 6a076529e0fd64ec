package handler

import (
	"net/http"
	"time"

	"github.com/iho/possync/internal/adapter/http/dto"
	"github.com/iho/possync/internal/domain"
)

// TombstoneHandler tells clients which cached business codes were deleted.
type TombstoneHandler struct {
	tombstones TombstoneService
	now        func() time.Time
}

// NewTombstoneHandler creates a new TombstoneHandler.
func NewTombstoneHandler(tombstones TombstoneService) *TombstoneHandler {
	return &TombstoneHandler{tombstones: tombstones, now: func() time.Time { return time.Now().UTC() }}
}

// Check returns the subset of the submitted codes that now only exist in the trash.
func (h *TombstoneHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req dto.TombstoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Codes == nil {
		writeError(w, domain.NewFieldError("code_ops_list", "code_ops_list is required"))
		return
	}

	codes, err := h.tombstones.Check(r.Context(), req.Codes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TombstonesFromCodes(codes, h.now()))
}
