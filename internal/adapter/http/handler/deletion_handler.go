package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iho/possync/internal/adapter/http/dto"
	"github.com/iho/possync/internal/adapter/http/middleware"
	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// DeletionHandler handles the two-step deletion workflow and the trash.
type DeletionHandler struct {
	deletions DeletionService
}

// NewDeletionHandler creates a new DeletionHandler.
func NewDeletionHandler(deletions DeletionService) *DeletionHandler {
	return &DeletionHandler{deletions: deletions}
}

func codeParam(r *http.Request) (string, error) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		return "", domain.NewFieldError("code_ops", "business code is required")
	}
	return code, nil
}

// Create opens a deletion request.
func (h *DeletionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDeletionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.deletions.Create(r.Context(), req.ToUseCaseInput(actorOf(r, req.Actor())))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.DeletionRequestFromDomain(created))
}

// AdminApprove records the admin validation step.
func (h *DeletionHandler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.AdminApproveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.deletions.AdminApprove(r.Context(), usecase.AdminApprovalInput{
		BusinessCode: code,
		Admin:        actorOf(r, req.Actor()),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DeletionRequestFromDomain(updated))
}

// AgentDecision records the agent's approval or rejection. Approval moves
// the operation to the trash.
func (h *DeletionHandler) AgentDecision(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.AgentDecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.deletions.AgentDecide(r.Context(), usecase.AgentDecisionInput{
		BusinessCode: code,
		Outcome:      strings.ToLower(strings.TrimSpace(req.Action)),
		Agent:        actorOf(r, req.Actor()),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AgentDecisionFromResult(result))
}

// Cancel withdraws an open request.
func (h *DeletionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.ActorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	cancelled, err := h.deletions.Cancel(r.Context(), usecase.CancelDeletionInput{
		BusinessCode: code,
		By:           actorOf(r, req.Actor()),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DeletionRequestFromDomain(cancelled))
}

// List returns deletion requests newest first, filtered by ?statut, ?since and ?shop_id.
func (h *DeletionHandler) List(w http.ResponseWriter, r *http.Request) {
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
	shopID, err = restrictToOwnShop(r, shopID)
	if err != nil {
		writeError(w, err)
		return
	}

	var statuses []domain.DeletionStatus
	if raw := r.URL.Query().Get("statut"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, domain.DeletionStatus(s))
			}
		}
	}

	reqs, err := h.deletions.List(r.Context(), usecase.DeletionRequestFilter{
		Since:        since,
		SourceShopID: shopID,
		Statuses:     statuses,
		Limit:        parseIntQuery(r, "limit", domain.DefaultPageSize),
		Offset:       parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(dto.DeletionRequestsFromDomain(reqs)))
}

// PendingForAdmin lists requests awaiting admin validation.
func (h *DeletionHandler) PendingForAdmin(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.deletions.ListPendingForAdmin(r.Context(),
		parseIntQuery(r, "limit", domain.DefaultPageSize),
		parseIntQuery(r, "offset", 0),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(dto.DeletionRequestsFromDomain(reqs)))
}

// PendingForAgent lists admin-approved requests awaiting the agent of a shop.
func (h *DeletionHandler) PendingForAgent(w http.ResponseWriter, r *http.Request) {
	shopID, err := parseInt64Query(r, "shop_id")
	if err != nil {
		writeError(w, err)
		return
	}
	shopID, err = restrictToOwnShop(r, shopID)
	if err != nil {
		writeError(w, err)
		return
	}

	reqs, err := h.deletions.ListPendingForAgent(r.Context(), shopID,
		parseIntQuery(r, "limit", domain.DefaultPageSize),
		parseIntQuery(r, "offset", 0),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(dto.DeletionRequestsFromDomain(reqs)))
}

// ListTrash returns trash entries, filtered by ?is_restored and ?since.
func (h *DeletionHandler) ListTrash(w http.ResponseWriter, r *http.Request) {
	since, err := parseTimeQuery(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	restored, err := parseBoolQuery(r, "is_restored")
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.deletions.ListTrash(r.Context(), usecase.TrashFilter{
		Since:    since,
		Restored: restored,
		Limit:    parseIntQuery(r, "limit", domain.DefaultPageSize),
		Offset:   parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(dto.TrashEntriesFromDomain(entries)))
}

// Restore re-creates the latest trashed operation of a business code.
func (h *DeletionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.ActorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.deletions.Restore(r.Context(), usecase.RestoreInput{
		BusinessCode: code,
		By:           actorOf(r, req.Actor()),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RestoreFromResult(result))
}

// restrictToOwnShop pins agents to their own shop. Admins may pass any shop or none.
func restrictToOwnShop(r *http.Request, requested *int64) (*int64, error) {
	scope, ok := middleware.ScopeFromContext(r.Context())
	if !ok || scope.IsAdmin() {
		return requested, nil
	}
	if scope.ShopID == nil {
		return nil, domain.ErrAgentWithoutShop
	}
	if requested != nil && *requested != *scope.ShopID {
		return nil, domain.ErrAgentWithoutShop
	}
	return scope.ShopID, nil
}
