package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validOperation() *Operation {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &Operation{
		BusinessCode:   "OP-1",
		Type:           OperationTypeNationalTransfer,
		GrossAmount:    decimal.NewFromInt(105),
		NetAmount:      decimal.NewFromInt(100),
		Commission:     decimal.NewFromInt(5),
		Currency:       "USD",
		SourceShopID:   1,
		AgentID:        7,
		PaymentChannel: PaymentChannelCash,
		Status:         OperationStatusPending,
		CreatedAt:      created,
		LastModifiedAt: created,
	}
}

func TestOperation_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Operation)
		expectError error
	}{
		{"valid operation", func(*Operation) {}, nil},
		{"missing business code", func(o *Operation) { o.BusinessCode = " " }, ErrValidation},
		{"unknown type", func(o *Operation) { o.Type = "loan" }, ErrValidation},
		{"unknown status", func(o *Operation) { o.Status = "" }, ErrValidation},
		{"unknown channel", func(o *Operation) { o.PaymentChannel = "card" }, ErrValidation},
		{"negative commission", func(o *Operation) { o.Commission = decimal.NewFromInt(-5) }, ErrValidation},
		{"unreconciled", func(o *Operation) { o.NetAmount = decimal.NewFromInt(99) }, ErrUnreconciledAmounts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := validOperation()
			tt.mutate(op)

			err := op.Validate()

			if tt.expectError == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.expectError != nil && !errors.Is(err, tt.expectError) {
				t.Errorf("expected %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestOperationStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OperationStatus
		want     bool
	}{
		{OperationStatusPending, OperationStatusValidated, true},
		{OperationStatusValidated, OperationStatusCompleted, true},
		{OperationStatusPending, OperationStatusCompleted, true},
		{OperationStatusValidated, OperationStatusPending, false},
		{OperationStatusCompleted, OperationStatusValidated, false},
		{OperationStatusCompleted, OperationStatusCancelled, true},
		{OperationStatusCancelled, OperationStatusPending, false},
		{OperationStatusCancelled, OperationStatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOperation_TouchNeverRegresses(t *testing.T) {
	op := validOperation()
	later := op.CreatedAt.Add(time.Hour)
	earlier := op.CreatedAt.Add(30 * time.Minute)
	op.MarkSynced(op.CreatedAt)

	op.Touch(later, "agentA")
	op.Touch(earlier, "agentB")

	if !op.LastModifiedAt.Equal(later) {
		t.Fatalf("last_modified_at regressed to %v", op.LastModifiedAt)
	}
	if op.LastModifiedBy != "agentB" {
		t.Fatalf("expected last modifier agentB, got %s", op.LastModifiedBy)
	}
	if op.IsSynced || op.SyncedAt != nil {
		t.Fatalf("local mutation must clear the sync flag")
	}
}

func TestOperation_ApplyStatus(t *testing.T) {
	op := validOperation()
	at := op.CreatedAt.Add(time.Minute)

	if err := op.ApplyStatus(OperationStatusValidated, at, "agentA"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := op.ApplyStatus(OperationStatusPending, at, "agentA"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := op.ApplyStatus("bogus", at, "agentA"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestOperation_FeedPriority(t *testing.T) {
	op := validOperation()
	if op.FeedPriority() != 1 {
		t.Fatalf("pending should rank first")
	}

	op.Status = OperationStatusCompleted
	if op.FeedPriority() != 3 {
		t.Fatalf("untouched completed row should rank last")
	}

	op.LastModifiedAt = op.CreatedAt.Add(time.Second)
	if op.FeedPriority() != 2 {
		t.Fatalf("modified row should rank second")
	}
}

func TestOperation_Clone(t *testing.T) {
	op := validOperation()
	dest := int64(5)
	op.DestinationShopID = &dest

	c := op.Clone()
	*c.DestinationShopID = 9

	if *op.DestinationShopID != 5 {
		t.Fatalf("clone shares destination pointer")
	}
}
