package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DeletionStatus is the state of a two-party deletion approval.
type DeletionStatus string

const (
	DeletionStatusPending       DeletionStatus = "en_attente"
	DeletionStatusAdminApproved DeletionStatus = "admin_validee"
	DeletionStatusAgentApproved DeletionStatus = "validee"
	DeletionStatusRejected      DeletionStatus = "refusee"
	DeletionStatusCancelled     DeletionStatus = "annulee"
)

// deletionTransitions is the complete set of allowed moves.
var deletionTransitions = map[DeletionStatus][]DeletionStatus{
	DeletionStatusPending:       {DeletionStatusAdminApproved, DeletionStatusCancelled},
	DeletionStatusAdminApproved: {DeletionStatusAgentApproved, DeletionStatusRejected, DeletionStatusCancelled},
}

// KnownDeletionStatuses lists every status the store may legitimately hold.
var KnownDeletionStatuses = []DeletionStatus{
	DeletionStatusPending,
	DeletionStatusAdminApproved,
	DeletionStatusAgentApproved,
	DeletionStatusRejected,
	DeletionStatusCancelled,
}

// NormalizeDeletionStatus maps a stored value to a status. Empty or
// unrecognized values are corrupt rows and are treated as pending so they stay visible.
func NormalizeDeletionStatus(raw string) DeletionStatus {
	s := DeletionStatus(strings.TrimSpace(raw))
	for _, known := range KnownDeletionStatuses {
		if s == known {
			return s
		}
	}
	return DeletionStatusPending
}

// IsTerminal reports whether no further transition is possible.
func (s DeletionStatus) IsTerminal() bool {
	return len(deletionTransitions[s]) == 0
}

// CanTransitionTo reports whether the table allows s -> next.
func (s DeletionStatus) CanTransitionTo(next DeletionStatus) bool {
	for _, allowed := range deletionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Actor identifies the person performing a workflow step.
type Actor struct {
	Name string
	ID   int64
}

// IsZero reports whether no identity was supplied.
func (a Actor) IsZero() bool {
	return a.ID == 0 && strings.TrimSpace(a.Name) == ""
}

// DeletionRequest asks for an operation to be moved to the trash.
// It is keyed by the operation's business code, never by its numeric id.
type DeletionRequest struct {
	RequestedAt      time.Time
	LastModifiedAt   time.Time
	AdminValidatedAt *time.Time
	AgentValidatedAt *time.Time
	OperationID      *int64
	GrossAmount      decimal.Decimal
	BusinessCode     string
	OperationType    OperationType
	Currency         string
	RecipientName    string
	Reason           string
	RequestedBy      Actor
	AdminValidator   Actor
	AgentValidator   Actor
	Status           DeletionStatus
	ID               int64
	SourceShopID     int64
	IsSynced         bool
}

// NewDeletionRequest opens a pending request for op, denormalizing the fields auditors need.
func NewDeletionRequest(op *Operation, reason string, by Actor, at time.Time) (*DeletionRequest, error) {
	if by.IsZero() {
		return nil, NewFieldError("requested_by", "requester identity is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, NewFieldError("reason", "reason is required")
	}

	id := op.ID
	return &DeletionRequest{
		BusinessCode:   op.BusinessCode,
		OperationID:    &id,
		OperationType:  op.Type,
		GrossAmount:    op.GrossAmount,
		Currency:       op.Currency,
		RecipientName:  op.RecipientName,
		SourceShopID:   op.SourceShopID,
		Reason:         reason,
		RequestedBy:    by,
		RequestedAt:    at,
		LastModifiedAt: at,
		Status:         DeletionStatusPending,
	}, nil
}

func (r *DeletionRequest) transition(next DeletionStatus, at time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	r.Status = next
	r.LastModifiedAt = at
	r.IsSynced = false
	return nil
}

// AdminApprove records the admin validation step.
func (r *DeletionRequest) AdminApprove(admin Actor, at time.Time) error {
	if admin.IsZero() {
		return NewFieldError("validated_by_admin", "admin identity is required")
	}
	if err := r.transition(DeletionStatusAdminApproved, at); err != nil {
		return err
	}
	r.AdminValidator = admin
	r.AdminValidatedAt = &at
	return nil
}

// AgentDecide records the agent's approval or rejection.
func (r *DeletionRequest) AgentDecide(approve bool, agent Actor, at time.Time) error {
	if agent.IsZero() {
		return NewFieldError("validated_by_agent", "agent identity is required")
	}
	next := DeletionStatusRejected
	if approve {
		next = DeletionStatusAgentApproved
	}
	if err := r.transition(next, at); err != nil {
		return err
	}
	r.AgentValidator = agent
	r.AgentValidatedAt = &at
	return nil
}

// Cancel withdraws a request that has not reached a terminal state.
func (r *DeletionRequest) Cancel(at time.Time) error {
	return r.transition(DeletionStatusCancelled, at)
}

// Validate reports invalid stored states.
func (r *DeletionRequest) Validate() error {
	if strings.TrimSpace(r.BusinessCode) == "" {
		return NewFieldError("code_ops", "business code is required")
	}
	switch r.Status {
	case DeletionStatusAdminApproved, DeletionStatusAgentApproved, DeletionStatusRejected:
		if r.AdminValidator.IsZero() || r.AdminValidatedAt == nil {
			return NewFieldError("validated_by_admin", "status "+string(r.Status)+" requires an admin validator")
		}
	}
	return nil
}
