package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/possync/internal/adapter/repository/postgres"
	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
	"github.com/iho/possync/tests/testutil"
)

// env wires the use cases against a real database the way the server does.
type env struct {
	db        *testutil.TestDB
	opRepo    *postgres.OperationRepository
	trashRepo *postgres.TrashRepository
	upload    *usecase.UploadUseCase
	feed      *usecase.ChangeFeedUseCase
	handoff   *usecase.TransferHandoffUseCase
	deletion  *usecase.DeletionWorkflowUseCase
	tombstone *usecase.TombstoneUseCase
	check     *usecase.ConsistencyUseCase
	operation *usecase.OperationUseCase
	audit     *usecase.AuditHistoryUseCase
}

func newEnv(t *testing.T, cache usecase.Cache) *env {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := testutil.NewTestDB(t)
	t.Cleanup(db.Cleanup)
	db.TruncateAll(context.Background())

	pool := db.Pool
	lg := zerolog.Nop()

	txManager := postgres.NewTxManager(pool)
	opRepo := postgres.NewOperationRepository(pool)
	refRepo := postgres.NewReferenceRepository(pool)
	delRepo := postgres.NewDeletionRequestRepository(pool)
	trashRepo := postgres.NewTrashRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	retrier := postgres.NewRetrier(lg)

	resolver := usecase.NewReferenceResolver(refRepo, cache, time.Minute)

	return &env{
		db:        db,
		opRepo:    opRepo,
		trashRepo: trashRepo,
		upload:    usecase.NewUploadUseCase(txManager, opRepo, resolver, auditRepo, retrier, nil, lg),
		feed:      usecase.NewChangeFeedUseCase(opRepo, nil),
		handoff:   usecase.NewTransferHandoffUseCase(txManager, opRepo, auditRepo, retrier, nil, lg),
		deletion: usecase.NewDeletionWorkflowUseCase(txManager, opRepo, delRepo, trashRepo, auditRepo,
			postgres.NewULIDGenerator(), retrier, nil, lg),
		tombstone: usecase.NewTombstoneUseCase(trashRepo, nil, 0),
		check:     usecase.NewConsistencyUseCase(postgres.NewConsistencyRepository(pool)),
		operation: usecase.NewOperationUseCase(txManager, opRepo, auditRepo, retrier, lg),
		audit:     usecase.NewAuditHistoryUseCase(auditRepo),
	}
}

// now is truncated to the precision Postgres keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// uploadOf wraps op in a single item batch from shopID.
func uploadOf(op *domain.Operation, shopID int64) usecase.UploadInput {
	return usecase.UploadInput{
		SubmitterID: "integration",
		Items:       []usecase.UploadItem{{Operation: op, Refs: domain.ReferenceKeys{SourceShopID: shopID}}},
	}
}
