package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchStrategy identifies how a transfer is located across device id spaces.
type MatchStrategy int

const (
	MatchByReference MatchStrategy = iota + 1
	MatchByBusinessCode
	MatchByID
	MatchByComposite
)

func (s MatchStrategy) String() string {
	switch s {
	case MatchByReference:
		return "reference"
	case MatchByBusinessCode:
		return "business_code"
	case MatchByID:
		return "id"
	case MatchByComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// AmountTolerance is the epsilon used when matching net amounts.
var AmountTolerance = decimal.RequireFromString("0.01")

// CompositeKey is the natural key of a transfer as seen by the creating shop.
type CompositeKey struct {
	OperationTime time.Time
	NetAmount     decimal.Decimal
	RecipientName string
	SourceShopID  int64
}

// Matches reports whether op carries this key: same source shop, same second,
// net amount within tolerance and same recipient.
func (k CompositeKey) Matches(op *Operation) bool {
	if op.SourceShopID != k.SourceShopID {
		return false
	}
	if !op.CreatedAt.Truncate(time.Second).Equal(k.OperationTime.Truncate(time.Second)) {
		return false
	}
	if op.NetAmount.Sub(k.NetAmount).Abs().GreaterThanOrEqual(AmountTolerance) {
		return false
	}
	return op.RecipientName == k.RecipientName
}

// TransferLocator is one matcher in the ranked list. Exactly one of the value
// fields is meaningful, selected by Strategy.
type TransferLocator struct {
	Composite    CompositeKey
	Reference    string
	BusinessCode string
	ID           int64
	Strategy     MatchStrategy
}

// HandoffRequest asks the destination shop's validation of a pending transfer.
type HandoffRequest struct {
	OperationTime     *time.Time
	NetAmount         *decimal.Decimal
	Reference         string
	BusinessCode      string
	RecipientName     string
	ValidatorID       string
	PaymentChannel    PaymentChannel
	OperationID       int64
	SourceShopID      int64
	DestinationShopID int64
}

// Validate checks the fields required regardless of the match strategy.
func (r HandoffRequest) Validate() error {
	if r.PaymentChannel == "" {
		return NewFieldError("mode_paiement", "payment channel is required")
	}
	if !r.PaymentChannel.IsValid() {
		return NewFieldError("mode_paiement", "unknown payment channel "+string(r.PaymentChannel))
	}
	if r.DestinationShopID <= 0 {
		return NewFieldError("shop_destination_id", "destination shop is required")
	}
	if strings.TrimSpace(r.ValidatorID) == "" {
		return NewFieldError("validated_by", "validator identity is required")
	}
	if len(r.Locators()) == 0 {
		return ErrMissingIdentification
	}
	return nil
}

// Locators returns the applicable matchers in priority order.
func (r HandoffRequest) Locators() []TransferLocator {
	var out []TransferLocator
	if ref := strings.TrimSpace(r.Reference); ref != "" {
		out = append(out, TransferLocator{Strategy: MatchByReference, Reference: ref})
	}
	if code := strings.TrimSpace(r.BusinessCode); code != "" {
		out = append(out, TransferLocator{Strategy: MatchByBusinessCode, BusinessCode: code})
	}
	if r.OperationID > 0 {
		out = append(out, TransferLocator{Strategy: MatchByID, ID: r.OperationID})
	}
	if r.SourceShopID > 0 && r.OperationTime != nil && r.NetAmount != nil && strings.TrimSpace(r.RecipientName) != "" {
		out = append(out, TransferLocator{Strategy: MatchByComposite, Composite: CompositeKey{
			SourceShopID:  r.SourceShopID,
			OperationTime: *r.OperationTime,
			NetAmount:     *r.NetAmount,
			RecipientName: strings.TrimSpace(r.RecipientName),
		}})
	}
	return out
}

// Authorize enforces the handoff invariants on a located operation.
func (r HandoffRequest) Authorize(op *Operation) error {
	if !op.Type.IsTransfer() {
		return ErrNotATransfer
	}
	if op.Status != OperationStatusPending {
		return ErrNotPending
	}
	if !op.DestinationIs(r.DestinationShopID) {
		return ErrDestinationMismatch
	}
	return nil
}

// ApplyHandoff marks op validated by the destination shop.
func (r HandoffRequest) ApplyHandoff(op *Operation, at time.Time) error {
	if err := r.Authorize(op); err != nil {
		return err
	}
	if err := op.ApplyStatus(OperationStatusValidated, at, r.ValidatorID); err != nil {
		return err
	}
	op.PaymentChannel = r.PaymentChannel
	op.ValidatedAt = &at
	op.ValidatedBy = r.ValidatorID
	return nil
}
