package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// FeedResponse is one page of a change feed.
type FeedResponse struct {
	Entities  []*OperationPayload `json:"entities"`
	Count     int                 `json:"count"`
	Total     int                 `json:"total"`
	Limit     int                 `json:"limit"`
	Offset    int                 `json:"offset"`
	HasMore   bool                `json:"has_more"`
	Timestamp time.Time           `json:"timestamp"`
}

// FeedFromResult converts a feed page.
func FeedFromResult(r *usecase.FeedResult, now time.Time) *FeedResponse {
	return &FeedResponse{
		Entities:  OperationsFromDomain(r.Operations),
		Count:     len(r.Operations),
		Total:     r.Total,
		Limit:     r.Limit,
		Offset:    r.Offset,
		HasMore:   r.HasMore,
		Timestamp: now,
	}
}

// StatsResponse counts the statuses in a smart feed page.
type StatsResponse struct {
	Pending   int `json:"en_attente"`
	Validated int `json:"validee"`
	Completed int `json:"terminee"`
	Cancelled int `json:"annulee"`
}

// SmartFeedResponse is a prioritized page with client hints.
type SmartFeedResponse struct {
	FeedResponse
	Strategy        string        `json:"filter_strategy"`
	Statistics      StatsResponse `json:"statistics"`
	Recommendations []string      `json:"recommendations"`
}

// SmartFeedFromResult converts a smart feed page.
func SmartFeedFromResult(r *usecase.SmartFeedResult, now time.Time) *SmartFeedResponse {
	recs := r.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return &SmartFeedResponse{
		FeedResponse: *FeedFromResult(&r.FeedResult, now),
		Strategy:     string(r.Strategy),
		Statistics: StatsResponse{
			Pending:   r.Stats.Pending,
			Validated: r.Stats.Validated,
			Completed: r.Stats.Completed,
			Cancelled: r.Stats.Cancelled,
		},
		Recommendations: recs,
	}
}

// DeltaResponse separates new rows from updates of rows the client holds.
type DeltaResponse struct {
	Since     *Timestamp          `json:"since"`
	Mode      string              `json:"sync_mode"`
	New       []*OperationPayload `json:"new_operations"`
	Updated   []*OperationPayload `json:"updated_operations"`
	Hash      string              `json:"sync_hash"`
	Total     int                 `json:"total"`
	HasMore   bool                `json:"has_more"`
	Timestamp time.Time           `json:"timestamp"`
}

// DeltaFromResult converts a delta result.
func DeltaFromResult(r *usecase.DeltaResult, now time.Time) *DeltaResponse {
	return &DeltaResponse{
		Since:     timestampOf(r.Since),
		Mode:      string(r.Mode),
		New:       OperationsFromDomain(r.New),
		Updated:   OperationsFromDomain(r.Updated),
		Hash:      r.Hash,
		Total:     r.Total,
		HasMore:   r.HasMore,
		Timestamp: now,
	}
}

// ItemErrorResponse reports one rejected upload item.
type ItemErrorResponse struct {
	ItemRef string `json:"item_ref"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// UploadResponse summarizes an upload batch.
type UploadResponse struct {
	Success    bool                `json:"success"`
	Uploaded   int                 `json:"uploaded"`
	Updated    int                 `json:"updated"`
	Duplicates int                 `json:"duplicates"`
	Stale      int                 `json:"stale"`
	Total      int                 `json:"total"`
	Errors     []ItemErrorResponse `json:"errors"`
	Timestamp  time.Time           `json:"timestamp"`
}

// UploadFromResult converts an upload result. Success means every item was
// either applied or skipped as a duplicate or stale copy.
func UploadFromResult(r *usecase.UploadResult, now time.Time) *UploadResponse {
	errs := make([]ItemErrorResponse, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = ItemErrorResponse{ItemRef: e.ItemRef, Kind: string(e.Kind), Message: e.Message}
	}
	return &UploadResponse{
		Success:    len(errs) == 0,
		Uploaded:   r.Accepted,
		Updated:    r.Updated,
		Duplicates: r.Duplicates,
		Stale:      r.Stale,
		Total:      r.Accepted + r.Updated,
		Errors:     errs,
		Timestamp:  now,
	}
}

// ValidateTransferResponse is the validated operation and how it was located.
type ValidateTransferResponse struct {
	Operation *OperationPayload `json:"operation"`
	MatchedBy string            `json:"matched_by"`
}

// ValidateTransferFromResult converts a handoff result.
func ValidateTransferFromResult(r *usecase.HandoffResult) *ValidateTransferResponse {
	return &ValidateTransferResponse{
		Operation: OperationFromDomain(r.Operation),
		MatchedBy: r.Strategy.String(),
	}
}

// TombstoneResponse lists the codes the client should drop.
type TombstoneResponse struct {
	DeletedCodes []string  `json:"deleted_code_ops"`
	Count        int       `json:"count"`
	Timestamp    time.Time `json:"timestamp"`
}

// TombstonesFromCodes converts a tombstone answer.
func TombstonesFromCodes(codes []string, now time.Time) *TombstoneResponse {
	if codes == nil {
		codes = []string{}
	}
	return &TombstoneResponse{DeletedCodes: codes, Count: len(codes), Timestamp: now}
}

// ActorResponse identifies a workflow participant.
type ActorResponse struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func actorOf(a domain.Actor) *ActorResponse {
	if a.IsZero() {
		return nil
	}
	return &ActorResponse{ID: a.ID, Name: a.Name}
}

// DeletionRequestResponse is a deletion request in API responses.
type DeletionRequestResponse struct {
	ID               int64           `json:"id"`
	BusinessCode     string          `json:"code_ops"`
	OperationID      *int64          `json:"operation_id,omitempty"`
	OperationType    string          `json:"operation_type"`
	GrossAmount      decimal.Decimal `json:"montant"`
	Currency         string          `json:"devise"`
	RecipientName    string          `json:"destinataire,omitempty"`
	SourceShopID     int64           `json:"shop_source_id"`
	Reason           string          `json:"reason"`
	RequestedBy      *ActorResponse  `json:"requested_by,omitempty"`
	RequestedAt      time.Time       `json:"request_date"`
	AdminValidator   *ActorResponse  `json:"validated_by_admin,omitempty"`
	AdminValidatedAt *Timestamp      `json:"validation_admin_date,omitempty"`
	AgentValidator   *ActorResponse  `json:"validated_by_agent,omitempty"`
	AgentValidatedAt *Timestamp      `json:"validation_date,omitempty"`
	Status           string          `json:"statut"`
	LastModifiedAt   time.Time       `json:"last_modified_at"`
	IsSynced         bool            `json:"is_synced"`
}

// DeletionRequestFromDomain converts a deletion request.
func DeletionRequestFromDomain(r *domain.DeletionRequest) *DeletionRequestResponse {
	return &DeletionRequestResponse{
		ID:               r.ID,
		BusinessCode:     r.BusinessCode,
		OperationID:      r.OperationID,
		OperationType:    string(r.OperationType),
		GrossAmount:      r.GrossAmount,
		Currency:         r.Currency,
		RecipientName:    r.RecipientName,
		SourceShopID:     r.SourceShopID,
		Reason:           r.Reason,
		RequestedBy:      actorOf(r.RequestedBy),
		RequestedAt:      r.RequestedAt,
		AdminValidator:   actorOf(r.AdminValidator),
		AdminValidatedAt: timestampOf(r.AdminValidatedAt),
		AgentValidator:   actorOf(r.AgentValidator),
		AgentValidatedAt: timestampOf(r.AgentValidatedAt),
		Status:           string(r.Status),
		LastModifiedAt:   r.LastModifiedAt,
		IsSynced:         r.IsSynced,
	}
}

// DeletionRequestsFromDomain converts a list of deletion requests.
func DeletionRequestsFromDomain(reqs []*domain.DeletionRequest) []*DeletionRequestResponse {
	result := make([]*DeletionRequestResponse, len(reqs))
	for i, r := range reqs {
		result[i] = DeletionRequestFromDomain(r)
	}
	return result
}

// TrashEntryResponse is a trashed operation snapshot.
type TrashEntryResponse struct {
	ID                  string            `json:"id"`
	Operation           *OperationPayload `json:"operation"`
	DeletionRequestID   int64             `json:"deletion_request_id"`
	DeletedBy           *ActorResponse    `json:"deleted_by,omitempty"`
	DeletedAt           time.Time         `json:"deleted_at"`
	Restored            bool              `json:"is_restored"`
	RestoredBy          *ActorResponse    `json:"restored_by,omitempty"`
	RestoredAt          *Timestamp        `json:"restored_at,omitempty"`
	RestoredOperationID *int64            `json:"restored_operation_id,omitempty"`
}

// TrashEntryFromDomain converts a trash entry.
func TrashEntryFromDomain(e *domain.TrashEntry) *TrashEntryResponse {
	return &TrashEntryResponse{
		ID:                  e.ID,
		Operation:           OperationFromDomain(&e.Operation),
		DeletionRequestID:   e.DeletionRequestID,
		DeletedBy:           actorOf(e.DeletedBy),
		DeletedAt:           e.DeletedAt,
		Restored:            e.Restored,
		RestoredBy:          actorOf(e.RestoredBy),
		RestoredAt:          timestampOf(e.RestoredAt),
		RestoredOperationID: e.RestoredOperationID,
	}
}

// TrashEntriesFromDomain converts a list of trash entries.
func TrashEntriesFromDomain(entries []*domain.TrashEntry) []*TrashEntryResponse {
	result := make([]*TrashEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = TrashEntryFromDomain(e)
	}
	return result
}

// AgentDecisionResponse is the decided request and, on approval, its trash entry.
type AgentDecisionResponse struct {
	Request    *DeletionRequestResponse `json:"deletion_request"`
	TrashEntry *TrashEntryResponse      `json:"trash_entry,omitempty"`
}

// AgentDecisionFromResult converts an agent decision.
func AgentDecisionFromResult(r *usecase.AgentDecisionResult) *AgentDecisionResponse {
	resp := &AgentDecisionResponse{Request: DeletionRequestFromDomain(r.Request)}
	if r.TrashEntry != nil {
		resp.TrashEntry = TrashEntryFromDomain(r.TrashEntry)
	}
	return resp
}

// RestoreResponse carries the id assigned to the restored operation.
type RestoreResponse struct {
	NewOperationID int64               `json:"new_operation_id"`
	Entry          *TrashEntryResponse `json:"trash_entry"`
	Operation      *OperationPayload   `json:"operation"`
}

// RestoreFromResult converts a restoration.
func RestoreFromResult(r *usecase.RestoreResult) *RestoreResponse {
	return &RestoreResponse{
		NewOperationID: r.Operation.ID,
		Entry:          TrashEntryFromDomain(r.Entry),
		Operation:      OperationFromDomain(r.Operation),
	}
}

// StatusUpdateResponse reports a status change.
type StatusUpdateResponse struct {
	BusinessCode string            `json:"code_ops"`
	OldStatus    string            `json:"old_status"`
	NewStatus    string            `json:"new_status"`
	Operation    *OperationPayload `json:"operation"`
}

// StatusUpdateFromResult converts a status change.
func StatusUpdateFromResult(r *usecase.StatusUpdateResult) *StatusUpdateResponse {
	return &StatusUpdateResponse{
		BusinessCode: r.Operation.BusinessCode,
		OldStatus:    string(r.Previous),
		NewStatus:    string(r.Operation.Status),
		Operation:    OperationFromDomain(r.Operation),
	}
}

// AuditLogResponse is one audit trail row.
type AuditLogResponse struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id,omitempty"`
	Action       string      `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id"`
	RequestID    string      `json:"request_id,omitempty"`
	BeforeState  domain.JSON `json:"before_state,omitempty"`
	AfterState   domain.JSON `json:"after_state,omitempty"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// AuditHistoryResponse is one page of the audit trail.
type AuditHistoryResponse struct {
	Audits []*AuditLogResponse `json:"audits"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// AuditHistoryFromResult converts an audit page.
func AuditHistoryFromResult(h *usecase.AuditHistory) *AuditHistoryResponse {
	audits := make([]*AuditLogResponse, len(h.Logs))
	for i, l := range h.Logs {
		audits[i] = &AuditLogResponse{
			ID:           l.ID,
			UserID:       l.UserID,
			Action:       l.Action,
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			RequestID:    l.RequestID,
			BeforeState:  l.BeforeState,
			AfterState:   l.AfterState,
			Status:       l.Status,
			ErrorMessage: l.ErrorMessage,
			CreatedAt:    l.CreatedAt,
		}
	}
	return &AuditHistoryResponse{Audits: audits, Total: h.Total, Limit: h.Limit, Offset: h.Offset}
}

// ListResponse wraps any listing with its count.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewListResponse builds a ListResponse. A nil slice is rendered as [].
func NewListResponse[T any](items []T) *ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return &ListResponse[T]{Items: items, Count: len(items)}
}

// ConsistencyResponse lists every stored row violating an invariant.
type ConsistencyResponse struct {
	CheckedAt               time.Time                  `json:"checked_at"`
	Consistent              bool                       `json:"consistent"`
	UnreconciledOperations  []*OperationPayload        `json:"unreconciled_operations"`
	OrphanTrashEntries      []*TrashEntryResponse      `json:"orphan_trash_entries"`
	InvalidDeletionRequests []*DeletionRequestResponse `json:"invalid_deletion_requests"`
}

// ConsistencyFromReport converts a consistency report.
func ConsistencyFromReport(r *usecase.ConsistencyReport) *ConsistencyResponse {
	return &ConsistencyResponse{
		CheckedAt:               r.CheckedAt,
		Consistent:              r.Consistent,
		UnreconciledOperations:  OperationsFromDomain(r.UnreconciledOperations),
		OrphanTrashEntries:      TrashEntriesFromDomain(r.OrphanTrashEntries),
		InvalidDeletionRequests: DeletionRequestsFromDomain(r.InvalidDeletionRequests),
	}
}

// PingResponse reports server time and storage reachability.
type PingResponse struct {
	Status     string    `json:"status"`
	ServerTime time.Time `json:"server_time"`
	Database   string    `json:"database"`
	Cache      string    `json:"cache,omitempty"`
}

// HealthResponse is the liveness/readiness body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
