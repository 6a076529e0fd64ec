package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
	"github.com/iho/possync/internal/usecase/mocks"
)

type operationFixture struct {
	uc    *usecase.OperationUseCase
	repo  *mocks.MockOperationRepository
	audit *mocks.MockAuditRepository
	tx    *mocks.MockTransactionManager
}

func newOperationFixture(ops ...*domain.Operation) *operationFixture {
	f := &operationFixture{
		repo:  mocks.NewMockOperationRepository(),
		audit: mocks.NewMockAuditRepository(),
		tx:    mocks.NewMockTransactionManager(),
	}
	f.repo.Seed(ops...)
	f.uc = usecase.NewOperationUseCase(f.tx, f.repo, f.audit, nil, zerolog.Nop())
	f.uc.SetClock(mocks.FixedClock(at(6 * time.Hour)))
	return f
}

func TestOperation_Get(t *testing.T) {
	transfer := newTransfer(2, "T2", 3, time.Hour)
	f := newOperationFixture(newOp(1, "OP-1", domain.OperationStatusPending, 0, 0), transfer)

	tests := []struct {
		name    string
		code    string
		scope   domain.Scope
		wantID  int64
		wantErr error
	}{
		{name: "admin", code: " OP-1 ", scope: domain.AdminScope(), wantID: 1},
		{name: "agent of source shop", code: "OP-1", scope: domain.AgentScope(1), wantID: 1},
		{name: "agent of destination shop", code: "T2", scope: domain.AgentScope(3), wantID: 2},
		{name: "agent of another shop", code: "OP-1", scope: domain.AgentScope(9), wantErr: domain.ErrOperationNotFound},
		{name: "unknown code", code: "OP-404", scope: domain.AdminScope(), wantErr: domain.ErrOperationNotFound},
		{name: "agent without shop", code: "OP-1", scope: domain.Scope{Role: domain.RoleAgent}, wantErr: domain.ErrAgentWithoutShop},
		{name: "blank code", code: " ", scope: domain.AdminScope(), wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := f.uc.Get(context.Background(), tt.code, tt.scope)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if op.ID != tt.wantID {
				t.Errorf("expected id %d, got %d", tt.wantID, op.ID)
			}
		})
	}
}

func TestOperation_Get_StorageFailure(t *testing.T) {
	f := newOperationFixture()
	f.repo.GetByCodeFunc = func(ctx context.Context, code string) (*domain.Operation, error) {
		return nil, errors.New("connection reset")
	}

	_, err := f.uc.Get(context.Background(), "OP-1", domain.AdminScope())
	if domain.KindOf(err) != domain.KindStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestOperation_UpdateStatus_MovesForwardAndFlagsForSync(t *testing.T) {
	op := newOp(1, "OP-1", domain.OperationStatusPending, 0, time.Hour)
	op.MarkSynced(at(2 * time.Hour))
	f := newOperationFixture(op)

	result, err := f.uc.UpdateStatus(context.Background(), usecase.StatusUpdateInput{
		BusinessCode: "OP-1",
		Status:       domain.OperationStatusValidated,
		By:           domain.Actor{Name: "kinshasa-admin"},
		Scope:        domain.AdminScope(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Previous != domain.OperationStatusPending {
		t.Errorf("expected previous enAttente, got %s", result.Previous)
	}

	stored, _ := f.repo.Get(1)
	if stored.Status != domain.OperationStatusValidated {
		t.Errorf("expected validee, got %s", stored.Status)
	}
	if stored.IsSynced || stored.SyncedAt != nil {
		t.Error("expected the row to wait for the next sync")
	}
	if !stored.LastModifiedAt.Equal(at(6 * time.Hour)) {
		t.Errorf("expected last_modified_at to move to the update time, got %v", stored.LastModifiedAt)
	}
	if stored.LastModifiedBy != "kinshasa-admin" {
		t.Errorf("expected last_modified_by kinshasa-admin, got %q", stored.LastModifiedBy)
	}
	if stored.Version != 2 {
		t.Errorf("expected version 2, got %d", stored.Version)
	}
	if f.tx.Commits != 1 {
		t.Errorf("expected one commit, got %d", f.tx.Commits)
	}

	logs, _ := f.audit.List(context.Background(), domain.AuditFilter{Action: string(domain.AuditActionStatusUpdate)})
	if len(logs) != 1 {
		t.Fatalf("expected one status audit row, got %d", len(logs))
	}
	if logs[0].BeforeState["Status"] != string(domain.OperationStatusPending) || logs[0].UserID != "kinshasa-admin" {
		t.Errorf("unexpected audit row: %+v", logs[0])
	}
}

func TestOperation_UpdateStatus_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		stored  domain.OperationStatus
		next    domain.OperationStatus
		scope   domain.Scope
		setup   func(f *operationFixture)
		wantErr error
	}{
		{name: "backwards", stored: domain.OperationStatusCompleted, next: domain.OperationStatusPending, scope: domain.AdminScope(), wantErr: domain.ErrInvalidTransition},
		{name: "out of cancelled", stored: domain.OperationStatusCancelled, next: domain.OperationStatusValidated, scope: domain.AdminScope(), wantErr: domain.ErrInvalidTransition},
		{name: "unknown status", stored: domain.OperationStatusPending, next: "archived", scope: domain.AdminScope(), wantErr: domain.ErrValidation},
		{name: "other shop", stored: domain.OperationStatusPending, next: domain.OperationStatusValidated, scope: domain.AgentScope(9), wantErr: domain.ErrOperationNotFound},
		{
			name: "audit failure", stored: domain.OperationStatusPending, next: domain.OperationStatusValidated, scope: domain.AdminScope(),
			setup: func(f *operationFixture) {
				f.audit.CreateTxFunc = func(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
					return errors.New("disk full")
				}
			},
			wantErr: domain.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOperationFixture(newOp(1, "OP-1", tt.stored, 0, 0))
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.uc.UpdateStatus(context.Background(), usecase.StatusUpdateInput{
				BusinessCode: "OP-1",
				Status:       tt.next,
				Scope:        tt.scope,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if f.tx.Commits != 0 {
				t.Errorf("expected no commit, got %d", f.tx.Commits)
			}
		})
	}
}

func TestOperation_UpdateStatus_AgentCancelsOwnOperation(t *testing.T) {
	f := newOperationFixture(newOp(1, "OP-1", domain.OperationStatusValidated, 0, 0))

	result, err := f.uc.UpdateStatus(context.Background(), usecase.StatusUpdateInput{
		BusinessCode: "OP-1",
		Status:       domain.OperationStatusCancelled,
		By:           domain.Actor{ID: 7},
		Scope:        domain.AgentScope(1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Operation.Status != domain.OperationStatusCancelled || result.Operation.LastModifiedBy != "7" {
		t.Errorf("unexpected result: %+v", result.Operation)
	}
}
