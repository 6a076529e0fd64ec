package domain

import (
	"encoding/json"
	"time"
)

// AuditLog is one row of the synchronization audit trail.
type AuditLog struct {
	ID           string
	UserID       string // Who performed the action
	Action       string // What action (operation.upload, deletion.admin_approve, etc.)
	ResourceType string // Type of resource (operation, deletion_request, trash_entry)
	ResourceID   string // Business code or trash id of the resource
	IPAddress    string
	UserAgent    string
	RequestID    string
	BeforeState  JSON
	AfterState   JSON
	Status       string // success, failure, skipped
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction names an auditable step of the protocol.
type AuditAction string

const (
	// Operation actions
	AuditActionOperationInsert  AuditAction = "operation.insert"
	AuditActionOperationUpdate  AuditAction = "operation.update"
	AuditActionOperationSkip    AuditAction = "operation.duplicate_skip"
	AuditActionTransferValidate AuditAction = "operation.validate_transfer"
	AuditActionStatusUpdate     AuditAction = "operation.status_update"

	// Deletion workflow actions
	AuditActionDeletionCreate AuditAction = "deletion.create"
	AuditActionDeletionAdmin  AuditAction = "deletion.admin_approve"
	AuditActionDeletionAgent  AuditAction = "deletion.agent_approve"
	AuditActionDeletionReject AuditAction = "deletion.agent_reject"
	AuditActionDeletionCancel AuditAction = "deletion.cancel"
	AuditActionTrashRestore   AuditAction = "trash.restore"
)

// Audited resource types.
const (
	AuditResourceOperation       = "operation"
	AuditResourceDeletionRequest = "deletion_request"
	AuditResourceTrashEntry      = "trash_entry"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
	AuditStatusSkipped AuditStatus = "skipped"
)

// NewAuditLog builds an entry with before/after snapshots.
func NewAuditLog(action AuditAction, resourceType, resourceID, userID string, before, after any, at time.Time) *AuditLog {
	return &AuditLog{
		UserID:       userID,
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeState:  MarshalState(before),
		AfterState:   MarshalState(after),
		Status:       string(AuditStatusSuccess),
		CreatedAt:    at,
	}
}

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}
