package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// UploadRequest is a batch of operations pushed by a POS client. Entities
// stay raw so that one unreadable entity is rejected on its own.
type UploadRequest struct {
	Entities []json.RawMessage `json:"entities"`
	UserID   string            `json:"user_id"`
}

// ToUseCaseInput converts to use case input.
func (r *UploadRequest) ToUseCaseInput() usecase.UploadInput {
	items := make([]usecase.UploadItem, len(r.Entities))
	for i, raw := range r.Entities {
		items[i] = decodeUploadItem(raw)
	}
	submitter := strings.TrimSpace(r.UserID)
	if submitter == "" {
		submitter = "unknown"
	}
	return usecase.UploadInput{SubmitterID: submitter, Items: items}
}

func decodeUploadItem(raw json.RawMessage) usecase.UploadItem {
	var p OperationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		// Keep the business code, when readable, so the client can match the error.
		var ident struct {
			BusinessCode string `json:"code_ops"`
		}
		_ = json.Unmarshal(raw, &ident)
		return usecase.UploadItem{
			Operation: &domain.Operation{BusinessCode: ident.BusinessCode},
			DecodeErr: fmt.Errorf("%w: unreadable entity: %v", domain.ErrValidation, err),
		}
	}
	op, refs := p.ToDomain()
	return usecase.UploadItem{Operation: op, Refs: refs}
}

// SmartFeedRequest tunes the prioritized feed.
type SmartFeedRequest struct {
	Since               *Timestamp `json:"since,omitempty"`
	ModifiedSince       *Timestamp `json:"modified_since,omitempty"`
	CreatedSince        *Timestamp `json:"created_since,omitempty"`
	Strategy            string     `json:"filter_strategy"`
	Priority            string     `json:"priority_mode"`
	IncludeStatuses     []string   `json:"include_only_statuses,omitempty"`
	ExcludeStatuses     []string   `json:"exclude_statuses,omitempty"`
	ModifiedWindowHours int        `json:"modified_window_hours,omitempty"`
	MaxAgeDays          int        `json:"max_age_days,omitempty"`
	Limit               int        `json:"limit,omitempty"`
	Offset              int        `json:"offset,omitempty"`
	OnlyModified        bool       `json:"only_modified,omitempty"`
}

// ToUseCaseInput converts to use case input. The scope comes from the request context.
func (r *SmartFeedRequest) ToUseCaseInput(scope domain.Scope) usecase.SmartFeedInput {
	return usecase.SmartFeedInput{
		Since:           r.Since.Ptr(),
		ModifiedSince:   r.ModifiedSince.Ptr(),
		CreatedSince:    r.CreatedSince.Ptr(),
		Strategy:        domain.FilterStrategy(r.Strategy),
		Priority:        domain.PriorityMode(r.Priority),
		IncludeStatuses: statuses(r.IncludeStatuses),
		ExcludeStatuses: statuses(r.ExcludeStatuses),
		Scope:           scope,
		ModifiedWindow:  time.Duration(r.ModifiedWindowHours) * time.Hour,
		MaxAgeDays:      r.MaxAgeDays,
		Limit:           r.Limit,
		Offset:          r.Offset,
		OnlyModified:    r.OnlyModified,
	}
}

// DeltaRequest asks for changes classified against the ids the client holds.
type DeltaRequest struct {
	Since        *Timestamp `json:"since,omitempty"`
	Mode         string     `json:"sync_mode"`
	KnownIDs     []int64    `json:"known_ids,omitempty"`
	StatusFilter []string   `json:"status_filter,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *DeltaRequest) ToUseCaseInput(scope domain.Scope) usecase.DeltaInput {
	return usecase.DeltaInput{
		Since:    r.Since.Ptr(),
		Mode:     domain.DeltaMode(r.Mode),
		KnownIDs: r.KnownIDs,
		Statuses: statuses(r.StatusFilter),
		Scope:    scope,
		Limit:    r.Limit,
		Offset:   r.Offset,
	}
}

func statuses(raw []string) []domain.OperationStatus {
	if len(raw) == 0 {
		return nil
	}
	out := make([]domain.OperationStatus, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, domain.OperationStatus(s))
		}
	}
	return out
}

// ValidateTransferRequest is the destination shop confirming receipt of a transfer.
type ValidateTransferRequest struct {
	Reference         string              `json:"reference,omitempty"`
	BusinessCode      string              `json:"code_ops,omitempty"`
	OperationID       int64               `json:"operation_id,omitempty"`
	SourceShopID      int64               `json:"shop_source_id,omitempty"`
	OperationDate     *Timestamp          `json:"date_operation,omitempty"`
	NetAmount         *decimal.Decimal    `json:"montant_net,omitempty"`
	RecipientName     string              `json:"destinataire,omitempty"`
	PaymentChannel    PaymentChannelValue `json:"mode_paiement"`
	DestinationShopID int64               `json:"shop_destination_id"`
	ValidatedBy       string              `json:"validated_by"`
}

// ToDomain converts to a handoff request.
func (r *ValidateTransferRequest) ToDomain() domain.HandoffRequest {
	return domain.HandoffRequest{
		OperationTime:     r.OperationDate.Ptr(),
		NetAmount:         r.NetAmount,
		Reference:         r.Reference,
		BusinessCode:      r.BusinessCode,
		RecipientName:     r.RecipientName,
		ValidatorID:       r.ValidatedBy,
		PaymentChannel:    domain.PaymentChannel(r.PaymentChannel),
		OperationID:       r.OperationID,
		SourceShopID:      r.SourceShopID,
		DestinationShopID: r.DestinationShopID,
	}
}

// TombstoneRequest lists business codes the client still holds.
type TombstoneRequest struct {
	Codes []string `json:"code_ops_list"`
}

// ActorPayload identifies who performs a workflow step.
type ActorPayload struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ToDomain converts to a domain actor.
func (a ActorPayload) ToDomain() domain.Actor {
	return domain.Actor{ID: a.ID, Name: strings.TrimSpace(a.Name)}
}

// CreateDeletionRequest opens a deletion request for an operation.
type CreateDeletionRequest struct {
	BusinessCode    string `json:"code_ops"`
	Reason          string `json:"reason"`
	RequestedByID   int64  `json:"requested_by_admin_id,omitempty"`
	RequestedByName string `json:"requested_by_admin_name,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateDeletionRequest) ToUseCaseInput(by domain.Actor) usecase.CreateDeletionInput {
	return usecase.CreateDeletionInput{
		BusinessCode: strings.TrimSpace(r.BusinessCode),
		Reason:       r.Reason,
		RequestedBy:  by,
	}
}

// Actor returns the requester named in the body.
func (r *CreateDeletionRequest) Actor() domain.Actor {
	return ActorPayload{ID: r.RequestedByID, Name: r.RequestedByName}.ToDomain()
}

// AdminApproveRequest records the admin validation step.
type AdminApproveRequest struct {
	AdminID   int64  `json:"validated_by_admin_id,omitempty"`
	AdminName string `json:"validated_by_admin_name,omitempty"`
}

// Actor returns the admin named in the body.
func (r *AdminApproveRequest) Actor() domain.Actor {
	return ActorPayload{ID: r.AdminID, Name: r.AdminName}.ToDomain()
}

// AgentDecisionRequest records the agent's approval or rejection.
type AgentDecisionRequest struct {
	Action    string `json:"action"`
	AgentID   int64  `json:"validated_by_agent_id,omitempty"`
	AgentName string `json:"validated_by_agent_name,omitempty"`
}

// Actor returns the agent named in the body.
func (r *AgentDecisionRequest) Actor() domain.Actor {
	return ActorPayload{ID: r.AgentID, Name: r.AgentName}.ToDomain()
}

// ActorRequest is the body of steps that only need an identity: cancel and restore.
type ActorRequest struct {
	By         ActorPayload `json:"by"`
	RestoredBy string       `json:"restored_by,omitempty"`
}

// Actor returns the identity named in the body.
func (r *ActorRequest) Actor() domain.Actor {
	a := r.By.ToDomain()
	if a.IsZero() && strings.TrimSpace(r.RestoredBy) != "" {
		a.Name = strings.TrimSpace(r.RestoredBy)
	}
	return a
}

// StatusUpdateRequest moves one operation to a new status.
type StatusUpdateRequest struct {
	Status     StatusValue `json:"statut"`
	ModifiedBy string      `json:"last_modified_by,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *StatusUpdateRequest) ToUseCaseInput(code string, by domain.Actor, scope domain.Scope) usecase.StatusUpdateInput {
	return usecase.StatusUpdateInput{
		BusinessCode: code,
		Status:       domain.OperationStatus(r.Status),
		By:           by,
		Scope:        scope,
	}
}

// Actor returns the modifier named in the body.
func (r *StatusUpdateRequest) Actor() domain.Actor {
	return ActorPayload{Name: r.ModifiedBy}.ToDomain()
}
