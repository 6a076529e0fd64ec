package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/possync/internal/domain"
)

// ConsistencyRepository implements usecase.ConsistencyRepository.
type ConsistencyRepository struct {
	pool dbPool
}

// NewConsistencyRepository creates a new ConsistencyRepository.
func NewConsistencyRepository(pool *pgxpool.Pool) *ConsistencyRepository {
	return &ConsistencyRepository{pool: pool}
}

func newConsistencyRepository(pool dbPool) *ConsistencyRepository {
	return &ConsistencyRepository{pool: pool}
}

// UnreconciledOperations returns operations whose net amount plus commission
// differs from the gross amount.
func (r *ConsistencyRepository) UnreconciledOperations(ctx context.Context, limit int) ([]*domain.Operation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE montant_net + commission <> montant_brut
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectOperations(rows)
}

// OrphanTrashEntries returns trash entries not backed by an agent-approved request.
func (r *ConsistencyRepository) OrphanTrashEntries(ctx context.Context, limit int) ([]*domain.TrashEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+trashColumns+`
		FROM operations_trash t
		WHERE NOT EXISTS (
			SELECT 1 FROM deletion_requests d
			WHERE d.id = t.deletion_request_id AND d.statut = $1
		)
		ORDER BY t.deleted_at DESC
		LIMIT $2`, string(domain.DeletionStatusAgentApproved), limit)
	if err != nil {
		return nil, err
	}
	return collectTrashEntries(rows)
}

// InvalidDeletionRequests returns requests past admin validation that carry no admin validator.
func (r *ConsistencyRepository) InvalidDeletionRequests(ctx context.Context, limit int) ([]*domain.DeletionRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+deletionColumns+`
		FROM deletion_requests
		WHERE statut = ANY($1)
		  AND (validated_by_admin = '' OR validation_admin_date IS NULL)
		ORDER BY requested_at DESC
		LIMIT $2`,
		deletionStatusStrings([]domain.DeletionStatus{
			domain.DeletionStatusAdminApproved,
			domain.DeletionStatusAgentApproved,
			domain.DeletionStatusRejected,
		}), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := []*domain.DeletionRequest{}
	for rows.Next() {
		req, err := scanDeletionRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
