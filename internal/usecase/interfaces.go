package usecase

import (
	"context"

	"github.com/iho/possync/internal/domain"
)

// OperationRepository defines data access for operations.
type OperationRepository interface {
	Create(ctx context.Context, tx Transaction, op *domain.Operation) error
	Update(ctx context.Context, tx Transaction, op *domain.Operation) error
	Delete(ctx context.Context, tx Transaction, id int64) error
	GetByCode(ctx context.Context, code string) (*domain.Operation, error)
	GetByCodeOrIDForUpdate(ctx context.Context, tx Transaction, code string, id int64) (*domain.Operation, error)
	// FindDuplicate returns a stored row with op's agent, type and gross amount
	// created on the same UTC day, or nil.
	FindDuplicate(ctx context.Context, tx Transaction, op *domain.Operation) (*domain.Operation, error)
	FindTransferForUpdate(ctx context.Context, tx Transaction, locator domain.TransferLocator) (*domain.Operation, error)
	ListChanges(ctx context.Context, filter domain.FeedFilter) ([]*domain.Operation, error)
	CountChanges(ctx context.Context, filter domain.FeedFilter) (int, error)
	ListValidatedTransfers(ctx context.Context, query ValidatedTransfersQuery) ([]*domain.Operation, error)
}

// DeletionRequestRepository defines data access for deletion requests.
type DeletionRequestRepository interface {
	Create(ctx context.Context, tx Transaction, req *domain.DeletionRequest) error
	Update(ctx context.Context, tx Transaction, req *domain.DeletionRequest) error
	GetOpenByCodeForUpdate(ctx context.Context, tx Transaction, code string) (*domain.DeletionRequest, error)
	List(ctx context.Context, filter DeletionRequestFilter) ([]*domain.DeletionRequest, error)
}

// TrashRepository defines data access for trash entries.
type TrashRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.TrashEntry) error
	MarkRestored(ctx context.Context, tx Transaction, entry *domain.TrashEntry) error
	GetLatestUnrestoredForUpdate(ctx context.Context, tx Transaction, code string) (*domain.TrashEntry, error)
	List(ctx context.Context, filter TrashFilter) ([]*domain.TrashEntry, error)
	DeletedCodes(ctx context.Context, codes []string) ([]string, error)
}

// ReferenceRepository resolves shops, agents and clients.
type ReferenceRepository interface {
	ShopByDesignation(ctx context.Context, tx Transaction, designation string) (*domain.Shop, error)
	ShopByID(ctx context.Context, tx Transaction, id int64) (*domain.Shop, error)
	AgentByUsername(ctx context.Context, tx Transaction, username string) (*domain.Agent, error)
	AgentByID(ctx context.Context, tx Transaction, id int64) (*domain.Agent, error)
	CreateAgent(ctx context.Context, tx Transaction, agent *domain.Agent) error
	ClientByName(ctx context.Context, tx Transaction, name string) (*domain.Client, error)
	ClientByID(ctx context.Context, tx Transaction, id int64) (*domain.Client, error)
}

// ConsistencyRepository runs the integrity queries behind the consistency report.
type ConsistencyRepository interface {
	UnreconciledOperations(ctx context.Context, limit int) ([]*domain.Operation, error)
	OrphanTrashEntries(ctx context.Context, limit int) ([]*domain.TrashEntry, error)
	InvalidDeletionRequests(ctx context.Context, limit int) ([]*domain.DeletionRequest, error)
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
	Count(ctx context.Context, filter domain.AuditFilter) (int, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	// Begin opens a nested transaction (a savepoint) inside this one.
	Begin(ctx context.Context) (Transaction, error)
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs a unit of work on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// MetricsRecorder receives protocol-level counters.
type MetricsRecorder interface {
	FeedServed(kind string, rows int)
	UploadItem(outcome string)
	HandoffAttempt(strategy, outcome string)
	DeletionTransition(to domain.DeletionStatus)
	TombstonesFound(n int)
}

type nopMetrics struct{}

func (nopMetrics) FeedServed(string, int)                   {}
func (nopMetrics) UploadItem(string)                        {}
func (nopMetrics) HandoffAttempt(string, string)            {}
func (nopMetrics) DeletionTransition(domain.DeletionStatus) {}
func (nopMetrics) TombstonesFound(int)                      {}

// NopMetrics discards every measurement.
var NopMetrics MetricsRecorder = nopMetrics{}

// noRetry runs the operation exactly once.
type noRetry struct{}

func (noRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}
