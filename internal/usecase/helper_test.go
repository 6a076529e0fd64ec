package usecase_test

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/possync/internal/domain"
)

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time {
	return base.Add(d)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func ptrInt(v int64) *int64 {
	return &v
}

// newOp builds a reconciled deposit of shop 1 created and modified at the given offsets.
func newOp(id int64, code string, status domain.OperationStatus, created, modified time.Duration) *domain.Operation {
	return &domain.Operation{
		ID:             id,
		BusinessCode:   code,
		Type:           domain.OperationTypeDeposit,
		Status:         status,
		Currency:       "USD",
		PaymentChannel: domain.PaymentChannelCash,
		GrossAmount:    decimal.NewFromInt(100),
		NetAmount:      decimal.NewFromInt(95),
		Commission:     decimal.NewFromInt(5),
		SourceShopID:   1,
		AgentID:        7,
		CreatedAt:      at(created),
		LastModifiedAt: at(modified),
		Version:        1,
	}
}

// newTransfer builds a pending national transfer from shop 1 to dest.
func newTransfer(id int64, code string, dest int64, created time.Duration) *domain.Operation {
	op := newOp(id, code, domain.OperationStatusPending, created, created)
	op.Type = domain.OperationTypeNationalTransfer
	op.DestinationShopID = ptrInt(dest)
	op.RecipientName = "Amani"
	op.Reference = "REF-" + code
	return op
}

func ids(ops []*domain.Operation) []int64 {
	out := make([]int64, len(ops))
	for i, op := range ops {
		out[i] = op.ID
	}
	return out
}
