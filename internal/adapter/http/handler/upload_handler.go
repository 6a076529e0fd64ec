package handler

import (
	"net/http"
	"time"

	"github.com/iho/possync/internal/adapter/http/dto"
	"github.com/iho/possync/internal/domain"
)

// UploadHandler accepts operation batches pushed by POS clients.
type UploadHandler struct {
	uploads UploadService
	now     func() time.Time
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uploads UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads, now: func() time.Time { return time.Now().UTC() }}
}

// Upload applies a batch. Rejected items are reported in the body; the
// request itself only fails when the batch could not be committed.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req dto.UploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Entities == nil {
		writeErrorMessage(w, http.StatusBadRequest, string(domain.KindValidation), "entities is required")
		return
	}

	input := req.ToUseCaseInput()
	if actor := actorOf(r, domain.Actor{Name: input.SubmitterID}); actor.Name != "" {
		input.SubmitterID = actor.Name
	}

	result, err := h.uploads.Upload(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := dto.UploadFromResult(result, h.now())
	for i := range resp.Errors {
		resp.Errors[i].Message = publicMessage(domain.ErrorKind(resp.Errors[i].Kind), resp.Errors[i].Message)
	}

	writeJSON(w, http.StatusOK, resp)
}
