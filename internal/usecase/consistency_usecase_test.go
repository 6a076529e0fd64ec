package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
	"github.com/iho/possync/internal/usecase/mocks"
)

func TestConsistencyUseCase_Check(t *testing.T) {
	broken := newOp(1, "OP-1", domain.OperationStatusCompleted, 0, 0)
	broken.Commission = decimal.NewFromInt(50)

	tests := []struct {
		name           string
		repo           *mocks.MockConsistencyRepository
		wantConsistent bool
		wantErr        bool
	}{
		{
			name:           "clean store",
			repo:           &mocks.MockConsistencyRepository{},
			wantConsistent: true,
		},
		{
			name: "unreconciled operation",
			repo: &mocks.MockConsistencyRepository{
				UnreconciledOperationsFunc: func(ctx context.Context, limit int) ([]*domain.Operation, error) {
					return []*domain.Operation{broken}, nil
				},
			},
		},
		{
			name: "orphan trash entry",
			repo: &mocks.MockConsistencyRepository{
				OrphanTrashEntriesFunc: func(ctx context.Context, limit int) ([]*domain.TrashEntry, error) {
					return []*domain.TrashEntry{{ID: "t1"}}, nil
				},
			},
		},
		{
			name: "approved request without admin",
			repo: &mocks.MockConsistencyRepository{
				InvalidDeletionRequestsFunc: func(ctx context.Context, limit int) ([]*domain.DeletionRequest, error) {
					return []*domain.DeletionRequest{{BusinessCode: "OP-2", Status: domain.DeletionStatusAgentApproved}}, nil
				},
			},
		},
		{
			name: "query failure",
			repo: &mocks.MockConsistencyRepository{
				OrphanTrashEntriesFunc: func(ctx context.Context, limit int) ([]*domain.TrashEntry, error) {
					return nil, errors.New("relation does not exist")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := usecase.NewConsistencyUseCase(tt.repo)

			report, err := uc.Check(context.Background())
			if tt.wantErr {
				if domain.KindOf(err) != domain.KindStorage {
					t.Fatalf("expected storage error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if report.Consistent != tt.wantConsistent {
				t.Errorf("Consistent = %v, want %v", report.Consistent, tt.wantConsistent)
			}
		})
	}
}
