package handler

import (
	"net/http"
	"strings"

	"github.com/iho/possync/internal/adapter/http/dto"
	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	audit AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(audit AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// History lists audit rows newest first. resource_type and resource_id narrow
// it to one operation, deletion request or trash entry.
func (h *AuditHandler) History(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeQuery(r, "start_date")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := parseTimeQuery(r, "end_date")
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	page, err := h.audit.History(r.Context(), domain.AuditFilter{
		UserID:       strings.TrimSpace(q.Get("user_id")),
		Action:       strings.TrimSpace(q.Get("action")),
		ResourceType: strings.TrimSpace(q.Get("resource_type")),
		ResourceID:   strings.TrimSpace(q.Get("resource_id")),
		StartDate:    start,
		EndDate:      end,
		Limit:        parseIntQuery(r, "limit", usecase.DefaultAuditPageSize),
		Offset:       parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditHistoryFromResult(page))
}
