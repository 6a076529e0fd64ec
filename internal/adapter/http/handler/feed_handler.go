package handler

import (
	"net/http"
	"time"

	"github.com/iho/possync/internal/adapter/http/dto"
	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// FeedHandler serves the change feeds.
type FeedHandler struct {
	feed ChangeFeedService
	now  func() time.Time
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(feed ChangeFeedService) *FeedHandler {
	return &FeedHandler{feed: feed, now: func() time.Time { return time.Now().UTC() }}
}

// Changes returns rows modified after ?since, oldest first.
func (h *FeedHandler) Changes(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeOf(r)
	if err != nil {
		writeError(w, err)
		return
	}

	since, err := parseTimeQuery(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.feed.Changes(r.Context(), usecase.FeedInput{Since: since, Scope: scope})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FeedFromResult(result, h.now()))
}

// Page returns one newest-first page with the total row count.
func (h *FeedHandler) Page(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeOf(r)
	if err != nil {
		writeError(w, err)
		return
	}

	since, err := parseTimeQuery(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.feed.Page(r.Context(), usecase.FeedInput{
		Since:  since,
		Scope:  scope,
		Limit:  parseIntQuery(r, "limit", domain.DefaultPageSize),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FeedFromResult(result, h.now()))
}

// Smart returns a prioritized page.
func (h *FeedHandler) Smart(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeOf(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.SmartFeedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.feed.Smart(r.Context(), req.ToUseCaseInput(scope))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SmartFeedFromResult(result, h.now()))
}

// Delta classifies changes against the ids the client already holds.
func (h *FeedHandler) Delta(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeOf(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dto.DeltaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.feed.Delta(r.Context(), req.ToUseCaseInput(scope))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DeltaFromResult(result, h.now()))
}
