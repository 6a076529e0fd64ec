package handler

import (
	"context"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// ChangeFeedService serves the pull side of the sync protocol.
type ChangeFeedService interface {
	Changes(ctx context.Context, input usecase.FeedInput) (*usecase.FeedResult, error)
	Page(ctx context.Context, input usecase.FeedInput) (*usecase.FeedResult, error)
	Smart(ctx context.Context, input usecase.SmartFeedInput) (*usecase.SmartFeedResult, error)
	Delta(ctx context.Context, input usecase.DeltaInput) (*usecase.DeltaResult, error)
}

// UploadService applies client batches.
type UploadService interface {
	Upload(ctx context.Context, input usecase.UploadInput) (*usecase.UploadResult, error)
}

// HandoffService validates transfers on receipt.
type HandoffService interface {
	Validate(ctx context.Context, req domain.HandoffRequest) (*usecase.HandoffResult, error)
	ListValidated(ctx context.Context, query usecase.ValidatedTransfersQuery) ([]*domain.Operation, error)
}

// TombstoneService reports deleted business codes.
type TombstoneService interface {
	Check(ctx context.Context, codes []string) ([]string, error)
}

// DeletionService drives deletion requests and the trash.
type DeletionService interface {
	Create(ctx context.Context, input usecase.CreateDeletionInput) (*domain.DeletionRequest, error)
	AdminApprove(ctx context.Context, input usecase.AdminApprovalInput) (*domain.DeletionRequest, error)
	AgentDecide(ctx context.Context, input usecase.AgentDecisionInput) (*usecase.AgentDecisionResult, error)
	Cancel(ctx context.Context, input usecase.CancelDeletionInput) (*domain.DeletionRequest, error)
	List(ctx context.Context, filter usecase.DeletionRequestFilter) ([]*domain.DeletionRequest, error)
	ListPendingForAdmin(ctx context.Context, limit, offset int) ([]*domain.DeletionRequest, error)
	ListPendingForAgent(ctx context.Context, shopID *int64, limit, offset int) ([]*domain.DeletionRequest, error)
	Restore(ctx context.Context, input usecase.RestoreInput) (*usecase.RestoreResult, error)
	ListTrash(ctx context.Context, filter usecase.TrashFilter) ([]*domain.TrashEntry, error)
}

// OperationService reads single operations and changes their status.
type OperationService interface {
	Get(ctx context.Context, code string, scope domain.Scope) (*domain.Operation, error)
	UpdateStatus(ctx context.Context, input usecase.StatusUpdateInput) (*usecase.StatusUpdateResult, error)
}

// AuditService reads the audit trail.
type AuditService interface {
	History(ctx context.Context, filter domain.AuditFilter) (*usecase.AuditHistory, error)
}

// ConsistencyService scans the store for invariant violations.
type ConsistencyService interface {
	Check(ctx context.Context) (*usecase.ConsistencyReport, error)
}
