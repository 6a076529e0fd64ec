package usecase

import (
	"context"
	"time"

	"github.com/iho/possync/internal/domain"
)

// ConsistencyUseCase checks the store-wide invariants of the sync engine.
type ConsistencyUseCase struct {
	repo ConsistencyRepository
	now  func() time.Time
}

// NewConsistencyUseCase creates a new consistency use case
func NewConsistencyUseCase(repo ConsistencyRepository) *ConsistencyUseCase {
	return &ConsistencyUseCase{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// ConsistencyReport lists every row violating an invariant.
type ConsistencyReport struct {
	CheckedAt               time.Time
	UnreconciledOperations  []*domain.Operation
	OrphanTrashEntries      []*domain.TrashEntry
	InvalidDeletionRequests []*domain.DeletionRequest
	Consistent              bool
}

// Check runs every consistency query:
// operations where net + commission != gross, trash entries without an
// agent-approved deletion request, and approved requests with no admin validator.
func (uc *ConsistencyUseCase) Check(ctx context.Context) (*ConsistencyReport, error) {
	unreconciled, err := uc.repo.UnreconciledOperations(ctx, consistencyScanLimit)
	if err != nil {
		return nil, domain.WrapStorage("scan unreconciled operations", err)
	}

	orphans, err := uc.repo.OrphanTrashEntries(ctx, consistencyScanLimit)
	if err != nil {
		return nil, domain.WrapStorage("scan orphan trash entries", err)
	}

	invalid, err := uc.repo.InvalidDeletionRequests(ctx, consistencyScanLimit)
	if err != nil {
		return nil, domain.WrapStorage("scan deletion requests", err)
	}

	return &ConsistencyReport{
		CheckedAt:               uc.now(),
		UnreconciledOperations:  unreconciled,
		OrphanTrashEntries:      orphans,
		InvalidDeletionRequests: invalid,
		Consistent:              len(unreconciled) == 0 && len(orphans) == 0 && len(invalid) == 0,
	}, nil
}
