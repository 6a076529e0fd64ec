package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/possync/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/possync/internal/adapter/repository/redis"
	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
	"github.com/iho/possync/tests/testutil"
)

func TestUpload(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	shopID := e.db.CreateShop(ctx, "Goma Centre")
	agentID := e.db.CreateAgent(ctx, "kahindo", shopID)
	refs := domain.ReferenceKeys{SourceShopName: "Goma Centre", AgentUsername: "kahindo"}

	t.Run("inserts by designation and records an audit row", func(t *testing.T) {
		op := testutil.NewDeposit("OP-UP-1", 100, now())

		res, err := e.upload.Upload(ctx, usecase.UploadInput{
			SubmitterID: "kahindo",
			Items:       []usecase.UploadItem{{Operation: op, Refs: refs}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Accepted)
		assert.Empty(t, res.Errors)

		stored, err := e.opRepo.GetByCodeOrIDForUpdate(ctx, nil, "OP-UP-1", 0)
		require.NoError(t, err)
		assert.Equal(t, shopID, stored.SourceShopID)
		assert.Equal(t, agentID, stored.AgentID)
		assert.True(t, stored.IsSynced)
		assert.Equal(t, int64(1), stored.Version)
		assert.True(t, stored.GrossAmount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, 1, e.db.CountAudit(ctx, domain.AuditActionOperationInsert))
	})

	t.Run("replaying the same code updates in place", func(t *testing.T) {
		op := testutil.NewDeposit("OP-UP-2", 200, now())
		item := usecase.UploadItem{Operation: op, Refs: refs}

		_, err := e.upload.Upload(ctx, usecase.UploadInput{Items: []usecase.UploadItem{item}})
		require.NoError(t, err)

		newer := op.Clone()
		newer.LastModifiedAt = op.LastModifiedAt.Add(time.Minute)
		newer.Notes = "corrected"
		res, err := e.upload.Upload(ctx, usecase.UploadInput{Items: []usecase.UploadItem{{Operation: newer, Refs: refs}}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, 1, e.db.CountOperations(ctx, "OP-UP-2"))

		stored, err := e.opRepo.GetByCodeOrIDForUpdate(ctx, nil, "OP-UP-2", 0)
		require.NoError(t, err)
		assert.Equal(t, "corrected", stored.Notes)
		assert.Equal(t, int64(2), stored.Version)
	})

	t.Run("older edits are stale", func(t *testing.T) {
		op := testutil.NewDeposit("OP-UP-3", 300, now())
		_, err := e.upload.Upload(ctx, usecase.UploadInput{Items: []usecase.UploadItem{{Operation: op, Refs: refs}}})
		require.NoError(t, err)

		older := op.Clone()
		older.LastModifiedAt = op.LastModifiedAt.Add(-time.Hour)
		older.Notes = "old"
		res, err := e.upload.Upload(ctx, usecase.UploadInput{Items: []usecase.UploadItem{{Operation: older, Refs: refs}}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Stale)

		stored, err := e.opRepo.GetByCodeOrIDForUpdate(ctx, nil, "OP-UP-3", 0)
		require.NoError(t, err)
		assert.Empty(t, stored.Notes)
	})

	t.Run("same content under another code is a duplicate", func(t *testing.T) {
		at := now()
		first := testutil.NewDeposit("OP-UP-4", 400, at)
		second := testutil.NewDeposit("OP-UP-4B", 400, at)

		res, err := e.upload.Upload(ctx, usecase.UploadInput{Items: []usecase.UploadItem{
			{Operation: first, Refs: refs},
			{Operation: second, Refs: refs},
		}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Accepted)
		assert.Equal(t, 1, res.Duplicates)
		assert.Equal(t, 0, e.db.CountOperations(ctx, "OP-UP-4B"))
	})

	t.Run("bad items are reported without sinking the batch", func(t *testing.T) {
		good := testutil.NewDeposit("OP-UP-5", 500, now())
		unknownShop := testutil.NewDeposit("OP-UP-6", 600, now())
		unreconciled := testutil.NewDeposit("OP-UP-7", 700, now())
		unreconciled.Commission = decimal.NewFromInt(1)

		res, err := e.upload.Upload(ctx, usecase.UploadInput{Items: []usecase.UploadItem{
			{Operation: good, Refs: refs},
			{Operation: unknownShop, Refs: domain.ReferenceKeys{SourceShopName: "Nowhere"}},
			{Operation: unreconciled, Refs: refs},
		}})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Accepted)
		require.Len(t, res.Errors, 2)
		assert.Equal(t, "OP-UP-6", res.Errors[0].ItemRef)
		assert.Equal(t, domain.KindNotFound, res.Errors[0].Kind)
		assert.Equal(t, "OP-UP-7", res.Errors[1].ItemRef)
		assert.Equal(t, domain.KindValidation, res.Errors[1].Kind)

		assert.Equal(t, 1, e.db.CountOperations(ctx, "OP-UP-5"))
		assert.Equal(t, 0, e.db.CountOperations(ctx, "OP-UP-6"))
	})

	t.Run("unknown agents fall back to the system agent", func(t *testing.T) {
		op := testutil.NewDeposit("OP-UP-8", 800, now())
		res, err := e.upload.Upload(ctx, usecase.UploadInput{Items: []usecase.UploadItem{{
			Operation: op,
			Refs:      domain.ReferenceKeys{SourceShopID: shopID, AgentUsername: "ghost"},
		}}})
		require.NoError(t, err)
		require.Equal(t, 1, res.Accepted)

		stored, err := e.opRepo.GetByCodeOrIDForUpdate(ctx, nil, "OP-UP-8", 0)
		require.NoError(t, err)

		system, err := postgres.NewReferenceRepository(e.db.Pool).AgentByUsername(ctx, nil, domain.SystemAgentUsername)
		require.NoError(t, err)
		assert.Equal(t, system.ID, stored.AgentID)
	})

	t.Run("cancelled operations cannot be revived", func(t *testing.T) {
		op := testutil.NewDeposit("OP-UP-9", 900, now())
		op.Status = domain.OperationStatusCancelled
		_, err := e.upload.Upload(ctx, usecase.UploadInput{Items: []usecase.UploadItem{{Operation: op, Refs: refs}}})
		require.NoError(t, err)

		revived := op.Clone()
		revived.Status = domain.OperationStatusCompleted
		revived.LastModifiedAt = op.LastModifiedAt.Add(time.Minute)
		res, err := e.upload.Upload(ctx, usecase.UploadInput{Items: []usecase.UploadItem{{Operation: revived, Refs: refs}}})
		require.NoError(t, err)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, domain.KindConflict, res.Errors[0].Kind)
	})
}

func TestUpload_CachedReferences(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.NewRedis(t)
	e := newEnv(t, redisRepo.NewCache(client))
	ctx := context.Background()

	shopID := e.db.CreateShop(ctx, "Bukavu Port")
	refs := domain.ReferenceKeys{SourceShopName: "Bukavu Port"}

	for i, code := range []string{"OP-C-1", "OP-C-2"} {
		op := testutil.NewDeposit(code, int64(100+i), now())
		res, err := e.upload.Upload(ctx, usecase.UploadInput{Items: []usecase.UploadItem{{Operation: op, Refs: refs}}})
		require.NoError(t, err)
		require.Equal(t, 1, res.Accepted)
	}

	keys, err := client.Keys(ctx, "*").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, keys)

	stored, err := e.opRepo.GetByCodeOrIDForUpdate(ctx, nil, "OP-C-2", 0)
	require.NoError(t, err)
	assert.Equal(t, shopID, stored.SourceShopID)
}
