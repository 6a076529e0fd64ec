package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

var deletionColumnNames = []string{
	"id", "code_ops", "operation_id", "operation_type", "montant", "devise", "destinataire",
	"shop_source_id", "reason", "requested_by", "requested_by_id", "requested_at",
	"validated_by_admin", "validated_by_admin_id", "validation_admin_date",
	"validated_by_agent", "validated_by_agent_id", "validation_agent_date",
	"statut", "last_modified_at", "is_synced",
}

func deletionRow(rows *pgxmock.Rows, id int64, code, status string) *pgxmock.Rows {
	return rows.AddRow(
		id, code, pgtype.Int8{Int64: 11, Valid: true}, string(domain.OperationTypeDeposit),
		decimalToNumeric(decimal.NewFromInt(250)), "USD", "Amani",
		int64(1), "duplicate entry", "requester", int64(21), repoBase,
		"admin", int64(1), pgtype.Timestamptz{Time: repoBase, Valid: true},
		"", int64(0), pgtype.Timestamptz{},
		status, repoBase, false,
	)
}

func TestDeletionCreate(t *testing.T) {
	pool := newMockPool(t)
	repo := newDeletionRequestRepository(pool)

	pool.ExpectQuery("INSERT INTO deletion_requests").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(8)))

	req := &domain.DeletionRequest{BusinessCode: "OP-1", Status: domain.DeletionStatusPending, RequestedAt: repoBase}
	require.NoError(t, repo.Create(context.Background(), nil, req))
	assert.Equal(t, int64(8), req.ID)
	assertExpectations(t, pool)
}

func TestDeletionCreateOpenExists(t *testing.T) {
	pool := newMockPool(t)
	repo := newDeletionRequestRepository(pool)

	pool.ExpectQuery("INSERT INTO deletion_requests").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := repo.Create(context.Background(), nil, &domain.DeletionRequest{BusinessCode: "OP-1"})
	assert.ErrorIs(t, err, domain.ErrOpenRequestExists)
}

func TestDeletionUpdate(t *testing.T) {
	pool := newMockPool(t)
	repo := newDeletionRequestRepository(pool)

	pool.ExpectExec("UPDATE deletion_requests SET").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), nil, &domain.DeletionRequest{ID: 99})
	assert.ErrorIs(t, err, domain.ErrDeletionRequestNotFound)
	assertExpectations(t, pool)
}

func TestDeletionGetOpenByCode(t *testing.T) {
	pool := newMockPool(t)
	repo := newDeletionRequestRepository(pool)

	pool.ExpectQuery("FOR UPDATE").
		WillReturnRows(deletionRow(pgxmock.NewRows(deletionColumnNames), 3, "OP-1", "admin_validee"))

	req, err := repo.GetOpenByCodeForUpdate(context.Background(), nil, "OP-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeletionStatusAdminApproved, req.Status)
	assert.Equal(t, domain.Actor{Name: "requester", ID: 21}, req.RequestedBy)
	require.NotNil(t, req.OperationID)
	assert.Equal(t, int64(11), *req.OperationID)
	assert.NotNil(t, req.AdminValidatedAt)
	assert.Nil(t, req.AgentValidatedAt)
	assert.True(t, req.GrossAmount.Equal(decimal.NewFromInt(250)))
	assertExpectations(t, pool)
}

func TestDeletionGetOpenByCodeNotFound(t *testing.T) {
	pool := newMockPool(t)
	repo := newDeletionRequestRepository(pool)

	pool.ExpectQuery("FOR UPDATE").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetOpenByCodeForUpdate(context.Background(), nil, "OP-1")
	assert.ErrorIs(t, err, domain.ErrDeletionRequestNotFound)
}

func TestDeletionListPendingIncludesCorrupt(t *testing.T) {
	pool := newMockPool(t)
	repo := newDeletionRequestRepository(pool)

	rows := pgxmock.NewRows(deletionColumnNames)
	deletionRow(rows, 1, "OP-1", "en_attente")
	deletionRow(rows, 2, "OP-2", "")
	deletionRow(rows, 3, "OP-3", "garbage")

	pool.ExpectQuery("statut = ANY\\(\\$1\\) OR NOT \\(statut = ANY\\(\\$2\\)\\)").
		WillReturnRows(rows)

	reqs, err := repo.List(context.Background(), usecase.DeletionRequestFilter{
		Statuses: []domain.DeletionStatus{domain.DeletionStatusPending},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	for _, r := range reqs {
		assert.Equal(t, domain.DeletionStatusPending, r.Status)
	}
	assertExpectations(t, pool)
}

func TestDeletionListAdminApprovedForShop(t *testing.T) {
	pool := newMockPool(t)
	repo := newDeletionRequestRepository(pool)

	shop := int64(1)
	pool.ExpectQuery("statut = ANY\\(\\$1\\)\\) AND shop_source_id = \\$2").
		WillReturnRows(deletionRow(pgxmock.NewRows(deletionColumnNames), 4, "OP-4", "admin_validee"))

	reqs, err := repo.List(context.Background(), usecase.DeletionRequestFilter{
		Statuses:     []domain.DeletionStatus{domain.DeletionStatusAdminApproved},
		SourceShopID: &shop,
	})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assertExpectations(t, pool)
}
