package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsistencyQueries(t *testing.T) {
	pool := newMockPool(t)
	repo := newConsistencyRepository(pool)
	ctx := context.Background()

	pool.ExpectQuery("montant_net \\+ commission <> montant_brut").
		WithArgs(100).
		WillReturnRows(opRow(pgxmock.NewRows(opColumnNames), 5, "OP-5", "terminee", nil))
	pool.ExpectQuery("FROM operations_trash t").
		WithArgs("validee", 100).
		WillReturnRows(trashRow(t, pgxmock.NewRows(trashColumnNames), "01HORPHAN", false))
	pool.ExpectQuery("validated_by_admin = ''").
		WithArgs(pgxmock.AnyArg(), 100).
		WillReturnRows(pgxmock.NewRows(deletionColumnNames))

	ops, err := repo.UnreconciledOperations(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, ops, 1)

	orphans, err := repo.OrphanTrashEntries(ctx, 100)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "01HORPHAN", orphans[0].ID)

	invalid, err := repo.InvalidDeletionRequests(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, invalid)

	assertExpectations(t, pool)
}

func TestConsistencyQueryError(t *testing.T) {
	pool := newMockPool(t)
	repo := newConsistencyRepository(pool)

	boom := errors.New("statement timeout")
	pool.ExpectQuery("montant_net").WillReturnError(boom)

	_, err := repo.UnreconciledOperations(context.Background(), 10)
	assert.ErrorIs(t, err, boom)
}
