package handler

import (
	"context"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

type feedServiceStub struct {
	changesFn func(ctx context.Context, input usecase.FeedInput) (*usecase.FeedResult, error)
	pageFn    func(ctx context.Context, input usecase.FeedInput) (*usecase.FeedResult, error)
	smartFn   func(ctx context.Context, input usecase.SmartFeedInput) (*usecase.SmartFeedResult, error)
	deltaFn   func(ctx context.Context, input usecase.DeltaInput) (*usecase.DeltaResult, error)
}

func (s *feedServiceStub) Changes(ctx context.Context, input usecase.FeedInput) (*usecase.FeedResult, error) {
	return s.changesFn(ctx, input)
}

func (s *feedServiceStub) Page(ctx context.Context, input usecase.FeedInput) (*usecase.FeedResult, error) {
	return s.pageFn(ctx, input)
}

func (s *feedServiceStub) Smart(ctx context.Context, input usecase.SmartFeedInput) (*usecase.SmartFeedResult, error) {
	return s.smartFn(ctx, input)
}

func (s *feedServiceStub) Delta(ctx context.Context, input usecase.DeltaInput) (*usecase.DeltaResult, error) {
	return s.deltaFn(ctx, input)
}

type uploadServiceStub struct {
	uploadFn func(ctx context.Context, input usecase.UploadInput) (*usecase.UploadResult, error)
}

func (s *uploadServiceStub) Upload(ctx context.Context, input usecase.UploadInput) (*usecase.UploadResult, error) {
	return s.uploadFn(ctx, input)
}

type handoffServiceStub struct {
	validateFn      func(ctx context.Context, req domain.HandoffRequest) (*usecase.HandoffResult, error)
	listValidatedFn func(ctx context.Context, query usecase.ValidatedTransfersQuery) ([]*domain.Operation, error)
}

func (s *handoffServiceStub) Validate(ctx context.Context, req domain.HandoffRequest) (*usecase.HandoffResult, error) {
	return s.validateFn(ctx, req)
}

func (s *handoffServiceStub) ListValidated(ctx context.Context, query usecase.ValidatedTransfersQuery) ([]*domain.Operation, error) {
	return s.listValidatedFn(ctx, query)
}

type tombstoneServiceStub struct {
	checkFn func(ctx context.Context, codes []string) ([]string, error)
}

func (s *tombstoneServiceStub) Check(ctx context.Context, codes []string) ([]string, error) {
	return s.checkFn(ctx, codes)
}

type deletionServiceStub struct {
	createFn       func(ctx context.Context, input usecase.CreateDeletionInput) (*domain.DeletionRequest, error)
	adminApproveFn func(ctx context.Context, input usecase.AdminApprovalInput) (*domain.DeletionRequest, error)
	agentDecideFn  func(ctx context.Context, input usecase.AgentDecisionInput) (*usecase.AgentDecisionResult, error)
	cancelFn       func(ctx context.Context, input usecase.CancelDeletionInput) (*domain.DeletionRequest, error)
	listFn         func(ctx context.Context, filter usecase.DeletionRequestFilter) ([]*domain.DeletionRequest, error)
	pendingAdminFn func(ctx context.Context, limit, offset int) ([]*domain.DeletionRequest, error)
	pendingAgentFn func(ctx context.Context, shopID *int64, limit, offset int) ([]*domain.DeletionRequest, error)
	restoreFn      func(ctx context.Context, input usecase.RestoreInput) (*usecase.RestoreResult, error)
	listTrashFn    func(ctx context.Context, filter usecase.TrashFilter) ([]*domain.TrashEntry, error)
}

func (s *deletionServiceStub) Create(ctx context.Context, input usecase.CreateDeletionInput) (*domain.DeletionRequest, error) {
	return s.createFn(ctx, input)
}

func (s *deletionServiceStub) AdminApprove(ctx context.Context, input usecase.AdminApprovalInput) (*domain.DeletionRequest, error) {
	return s.adminApproveFn(ctx, input)
}

func (s *deletionServiceStub) AgentDecide(ctx context.Context, input usecase.AgentDecisionInput) (*usecase.AgentDecisionResult, error) {
	return s.agentDecideFn(ctx, input)
}

func (s *deletionServiceStub) Cancel(ctx context.Context, input usecase.CancelDeletionInput) (*domain.DeletionRequest, error) {
	return s.cancelFn(ctx, input)
}

func (s *deletionServiceStub) List(ctx context.Context, filter usecase.DeletionRequestFilter) ([]*domain.DeletionRequest, error) {
	return s.listFn(ctx, filter)
}

func (s *deletionServiceStub) ListPendingForAdmin(ctx context.Context, limit, offset int) ([]*domain.DeletionRequest, error) {
	return s.pendingAdminFn(ctx, limit, offset)
}

func (s *deletionServiceStub) ListPendingForAgent(ctx context.Context, shopID *int64, limit, offset int) ([]*domain.DeletionRequest, error) {
	return s.pendingAgentFn(ctx, shopID, limit, offset)
}

func (s *deletionServiceStub) Restore(ctx context.Context, input usecase.RestoreInput) (*usecase.RestoreResult, error) {
	return s.restoreFn(ctx, input)
}

func (s *deletionServiceStub) ListTrash(ctx context.Context, filter usecase.TrashFilter) ([]*domain.TrashEntry, error) {
	return s.listTrashFn(ctx, filter)
}

type consistencyServiceStub struct {
	checkFn func(ctx context.Context) (*usecase.ConsistencyReport, error)
}

func (s *consistencyServiceStub) Check(ctx context.Context) (*usecase.ConsistencyReport, error) {
	return s.checkFn(ctx)
}

type operationServiceStub struct {
	getFn          func(ctx context.Context, code string, scope domain.Scope) (*domain.Operation, error)
	updateStatusFn func(ctx context.Context, input usecase.StatusUpdateInput) (*usecase.StatusUpdateResult, error)
}

func (s *operationServiceStub) Get(ctx context.Context, code string, scope domain.Scope) (*domain.Operation, error) {
	return s.getFn(ctx, code, scope)
}

func (s *operationServiceStub) UpdateStatus(ctx context.Context, input usecase.StatusUpdateInput) (*usecase.StatusUpdateResult, error) {
	return s.updateStatusFn(ctx, input)
}

type auditServiceStub struct {
	historyFn func(ctx context.Context, filter domain.AuditFilter) (*usecase.AuditHistory, error)
}

func (s *auditServiceStub) History(ctx context.Context, filter domain.AuditFilter) (*usecase.AuditHistory, error) {
	return s.historyFn(ctx, filter)
}
