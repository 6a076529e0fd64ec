package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OperationType is the kind of financial operation.
type OperationType string

const (
	OperationTypeNationalTransfer OperationType = "transfertNational"
	OperationTypeOutboundTransfer OperationType = "transfertInternationalSortant"
	OperationTypeInboundTransfer  OperationType = "transfertInternationalEntrant"
	OperationTypeDeposit          OperationType = "depot"
	OperationTypeWithdrawal       OperationType = "retrait"
	OperationTypeFloatMove        OperationType = "virement"
)

var validOperationTypes = map[OperationType]bool{
	OperationTypeNationalTransfer: true,
	OperationTypeOutboundTransfer: true,
	OperationTypeInboundTransfer:  true,
	OperationTypeDeposit:          true,
	OperationTypeWithdrawal:       true,
	OperationTypeFloatMove:        true,
}

// TransferTypes are the operation types a destination shop validates on receipt.
var TransferTypes = []OperationType{
	OperationTypeNationalTransfer,
	OperationTypeOutboundTransfer,
	OperationTypeInboundTransfer,
}

// DestinationVisibleTypes are the types an agent of the destination shop may see.
var DestinationVisibleTypes = []OperationType{
	OperationTypeNationalTransfer,
	OperationTypeInboundTransfer,
}

// IsValid checks if the type is known.
func (t OperationType) IsValid() bool {
	return validOperationTypes[t]
}

// IsTransfer reports whether t moves money between two shops.
func (t OperationType) IsTransfer() bool {
	for _, tt := range TransferTypes {
		if t == tt {
			return true
		}
	}
	return false
}

// VisibleToDestination reports whether the destination shop's agents see operations of type t.
func (t OperationType) VisibleToDestination() bool {
	for _, tt := range DestinationVisibleTypes {
		if t == tt {
			return true
		}
	}
	return false
}

// PaymentChannel is how the counter-party was paid.
type PaymentChannel string

const (
	PaymentChannelCash        PaymentChannel = "cash"
	PaymentChannelAirtelMoney PaymentChannel = "airtelMoney"
	PaymentChannelMPesa       PaymentChannel = "mPesa"
	PaymentChannelOrangeMoney PaymentChannel = "orangeMoney"
)

// IsValid checks if the channel is known.
func (c PaymentChannel) IsValid() bool {
	switch c {
	case PaymentChannelCash, PaymentChannelAirtelMoney, PaymentChannelMPesa, PaymentChannelOrangeMoney:
		return true
	}
	return false
}

// OperationStatus is the lifecycle state of an operation.
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "enAttente"
	OperationStatusValidated OperationStatus = "validee"
	OperationStatusCompleted OperationStatus = "terminee"
	OperationStatusCancelled OperationStatus = "annulee"
)

// statusRank orders the forward progression. Cancellation sits outside it.
var statusRank = map[OperationStatus]int{
	OperationStatusPending:   0,
	OperationStatusValidated: 1,
	OperationStatusCompleted: 2,
}

// IsValid checks if the status is known.
func (s OperationStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok || s == OperationStatusCancelled
}

// IsTerminal reports whether s is completed or cancelled.
func (s OperationStatus) IsTerminal() bool {
	return s == OperationStatusCompleted || s == OperationStatusCancelled
}

// CanTransitionTo reports whether an operation in s may move to next.
// Statuses only move forward, except that anything not yet cancelled may be cancelled.
func (s OperationStatus) CanTransitionTo(next OperationStatus) bool {
	if s == next {
		return true
	}
	if s == OperationStatusCancelled {
		return false
	}
	if next == OperationStatusCancelled {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// Operation is a financial transaction recorded by a shop.
type Operation struct {
	CreatedAt         time.Time
	LastModifiedAt    time.Time
	ValidatedAt       *time.Time
	SyncedAt          *time.Time
	DestinationShopID *int64
	ClientID          *int64
	GrossAmount       decimal.Decimal
	NetAmount         decimal.Decimal
	Commission        decimal.Decimal
	BusinessCode      string
	Type              OperationType
	Currency          string
	RecipientName     string
	RecipientPhone    string
	PaymentChannel    PaymentChannel
	Status            OperationStatus
	Reference         string
	Notes             string
	ValidatedBy       string
	LastModifiedBy    string
	ID                int64
	SourceShopID      int64
	AgentID           int64
	Version           int64
	IsSynced          bool
}

// Validate checks the fields every stored operation must carry.
func (o *Operation) Validate() error {
	if strings.TrimSpace(o.BusinessCode) == "" {
		return NewFieldError("code_ops", "business code is required")
	}
	if !o.Type.IsValid() {
		return NewFieldError("type", "unknown operation type "+string(o.Type))
	}
	if !o.Status.IsValid() {
		return NewFieldError("statut", "unknown status "+string(o.Status))
	}
	if o.PaymentChannel != "" && !o.PaymentChannel.IsValid() {
		return NewFieldError("mode_paiement", "unknown payment channel "+string(o.PaymentChannel))
	}
	if o.GrossAmount.IsNegative() || o.NetAmount.IsNegative() || o.Commission.IsNegative() {
		return NewFieldError("montant", "amounts cannot be negative")
	}
	if !o.Reconciles() {
		return ErrUnreconciledAmounts
	}
	return nil
}

// Reconciles reports whether net amount plus commission equals gross amount.
func (o *Operation) Reconciles() bool {
	return o.NetAmount.Add(o.Commission).Equal(o.GrossAmount)
}

// ModifiedAfterCreation reports whether the row was changed after it was first recorded.
func (o *Operation) ModifiedAfterCreation() bool {
	return o.LastModifiedAt.After(o.CreatedAt)
}

// Touch records a local mutation. The modification clock never moves backwards.
func (o *Operation) Touch(at time.Time, by string) {
	if at.After(o.LastModifiedAt) {
		o.LastModifiedAt = at
	}
	if by != "" {
		o.LastModifiedBy = by
	}
	o.IsSynced = false
	o.SyncedAt = nil
}

// MarkSynced stamps the row as acknowledged by the server.
func (o *Operation) MarkSynced(at time.Time) {
	o.IsSynced = true
	o.SyncedAt = &at
}

// ApplyStatus moves the operation to next, enforcing monotonic progression.
func (o *Operation) ApplyStatus(next OperationStatus, at time.Time, by string) error {
	if !next.IsValid() {
		return NewFieldError("statut", "unknown status "+string(next))
	}
	if !o.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	o.Status = next
	o.Touch(at, by)
	return nil
}

// FeedPriority ranks the row for prioritized feeds: pending first, then rows
// modified after creation, then everything else.
func (o *Operation) FeedPriority() int {
	switch {
	case o.Status == OperationStatusPending:
		return 1
	case o.ModifiedAfterCreation():
		return 2
	default:
		return 3
	}
}

// DestinationIs reports whether the recorded destination shop is shopID.
func (o *Operation) DestinationIs(shopID int64) bool {
	return o.DestinationShopID != nil && *o.DestinationShopID == shopID
}

// Clone returns a deep copy.
func (o *Operation) Clone() *Operation {
	c := *o
	if o.DestinationShopID != nil {
		v := *o.DestinationShopID
		c.DestinationShopID = &v
	}
	if o.ClientID != nil {
		v := *o.ClientID
		c.ClientID = &v
	}
	if o.ValidatedAt != nil {
		v := *o.ValidatedAt
		c.ValidatedAt = &v
	}
	if o.SyncedAt != nil {
		v := *o.SyncedAt
		c.SyncedAt = &v
	}
	return &c
}
