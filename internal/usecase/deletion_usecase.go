package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/possync/internal/domain"
)

// DeletionRequestFilter narrows a deletion request listing.
type DeletionRequestFilter struct {
	Since        *time.Time
	SourceShopID *int64
	Statuses     []domain.DeletionStatus
	Limit        int
	Offset       int
}

// TrashFilter narrows a trash listing.
type TrashFilter struct {
	Since    *time.Time
	Restored *bool
	Limit    int
	Offset   int
}

// CreateDeletionInput opens a deletion request.
type CreateDeletionInput struct {
	BusinessCode string
	Reason       string
	RequestedBy  domain.Actor
}

// AdminApprovalInput records the admin step.
type AdminApprovalInput struct {
	BusinessCode string
	Admin        domain.Actor
}

// Agent decision outcomes.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// AgentDecisionInput records the agent step.
type AgentDecisionInput struct {
	BusinessCode string
	Outcome      string
	Agent        domain.Actor
}

// AgentDecisionResult carries the trash entry created by an approval.
type AgentDecisionResult struct {
	Request    *domain.DeletionRequest
	TrashEntry *domain.TrashEntry
}

// CancelDeletionInput withdraws an open request.
type CancelDeletionInput struct {
	BusinessCode string
	By           domain.Actor
}

// RestoreInput restores the latest trash entry of a business code.
type RestoreInput struct {
	BusinessCode string
	By           domain.Actor
}

// RestoreResult carries the new operation created by a restoration.
type RestoreResult struct {
	Entry     *domain.TrashEntry
	Operation *domain.Operation
}

// DeletionWorkflowUseCase drives the admin then agent approval of deletions.
type DeletionWorkflowUseCase struct {
	txManager TransactionManager
	opRepo    OperationRepository
	delRepo   DeletionRequestRepository
	trashRepo TrashRepository
	auditRepo AuditRepository
	idGen     IDGenerator
	retrier   Retrier
	metrics   MetricsRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewDeletionWorkflowUseCase creates a new DeletionWorkflowUseCase.
func NewDeletionWorkflowUseCase(
	txManager TransactionManager,
	opRepo OperationRepository,
	delRepo DeletionRequestRepository,
	trashRepo TrashRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	retrier Retrier,
	metrics MetricsRecorder,
	logger zerolog.Logger,
) *DeletionWorkflowUseCase {
	if retrier == nil {
		retrier = noRetry{}
	}
	if metrics == nil {
		metrics = NopMetrics
	}
	return &DeletionWorkflowUseCase{
		txManager: txManager,
		opRepo:    opRepo,
		delRepo:   delRepo,
		trashRepo: trashRepo,
		auditRepo: auditRepo,
		idGen:     idGen,
		retrier:   retrier,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (uc *DeletionWorkflowUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

// inTx runs fn in a transaction with the default timeout, retrying transient conflicts.
func (uc *DeletionWorkflowUseCase) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx Transaction) error) error {
	return uc.retrier.Retry(ctx, func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return domain.WrapStorage(op, err)
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := fn(txCtx, tx); err != nil {
			return domain.WrapStorage(op, err)
		}

		return domain.WrapStorage(op, tx.Commit(txCtx))
	})
}

// Create opens a pending request for an existing operation.
func (uc *DeletionWorkflowUseCase) Create(ctx context.Context, input CreateDeletionInput) (*domain.DeletionRequest, error) {
	code := strings.TrimSpace(input.BusinessCode)
	if err := domain.ValidateBusinessCode(code); err != nil {
		return nil, err
	}

	var req *domain.DeletionRequest
	err := uc.inTx(ctx, "create deletion request", func(ctx context.Context, tx Transaction) error {
		op, err := uc.opRepo.GetByCodeOrIDForUpdate(ctx, tx, code, 0)
		if err != nil {
			return err
		}

		open, err := uc.delRepo.GetOpenByCodeForUpdate(ctx, tx, code)
		if err == nil && open != nil {
			return domain.ErrOpenRequestExists
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		now := uc.now()
		req, err = domain.NewDeletionRequest(op, input.Reason, input.RequestedBy, now)
		if err != nil {
			return err
		}
		if err := uc.delRepo.Create(ctx, tx, req); err != nil {
			return err
		}

		return uc.audit(ctx, tx, domain.AuditActionDeletionCreate, input.RequestedBy, nil, req, now)
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.DeletionTransition(req.Status)
	uc.logger.Info().Str("code_ops", code).Msg("deletion request created")

	return req, nil
}

// AdminApprove moves a pending request to admin-approved.
func (uc *DeletionWorkflowUseCase) AdminApprove(ctx context.Context, input AdminApprovalInput) (*domain.DeletionRequest, error) {
	return uc.transition(ctx, input.BusinessCode, domain.AuditActionDeletionAdmin, input.Admin, func(req *domain.DeletionRequest, at time.Time) error {
		return req.AdminApprove(input.Admin, at)
	})
}

// Cancel withdraws an open request. The operation is untouched.
func (uc *DeletionWorkflowUseCase) Cancel(ctx context.Context, input CancelDeletionInput) (*domain.DeletionRequest, error) {
	return uc.transition(ctx, input.BusinessCode, domain.AuditActionDeletionCancel, input.By, func(req *domain.DeletionRequest, at time.Time) error {
		return req.Cancel(at)
	})
}

func (uc *DeletionWorkflowUseCase) transition(
	ctx context.Context,
	code string,
	action domain.AuditAction,
	actor domain.Actor,
	apply func(req *domain.DeletionRequest, at time.Time) error,
) (*domain.DeletionRequest, error) {
	code = strings.TrimSpace(code)
	if err := domain.ValidateBusinessCode(code); err != nil {
		return nil, err
	}

	var req *domain.DeletionRequest
	err := uc.inTx(ctx, string(action), func(ctx context.Context, tx Transaction) error {
		var err error
		req, err = uc.delRepo.GetOpenByCodeForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}

		before := *req
		now := uc.now()
		if err := apply(req, now); err != nil {
			return err
		}
		if err := uc.delRepo.Update(ctx, tx, req); err != nil {
			return err
		}

		return uc.audit(ctx, tx, action, actor, &before, req, now)
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.DeletionTransition(req.Status)
	uc.logger.Info().Str("code_ops", code).Str("status", string(req.Status)).Msg("deletion request transitioned")

	return req, nil
}

// AgentDecide records the agent's outcome. An approval moves the operation
// into the trash and deletes it in the same transaction as the status change.
func (uc *DeletionWorkflowUseCase) AgentDecide(ctx context.Context, input AgentDecisionInput) (*AgentDecisionResult, error) {
	code := strings.TrimSpace(input.BusinessCode)
	if err := domain.ValidateBusinessCode(code); err != nil {
		return nil, err
	}

	var approve bool
	switch strings.ToLower(strings.TrimSpace(input.Outcome)) {
	case DecisionApprove:
		approve = true
	case DecisionReject:
	default:
		return nil, domain.NewFieldError("action", "outcome must be approve or reject")
	}

	result := &AgentDecisionResult{}
	err := uc.inTx(ctx, "agent decision", func(ctx context.Context, tx Transaction) error {
		req, err := uc.delRepo.GetOpenByCodeForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}

		before := *req
		now := uc.now()
		if err := req.AgentDecide(approve, input.Agent, now); err != nil {
			return err
		}

		action := domain.AuditActionDeletionReject
		if approve {
			action = domain.AuditActionDeletionAgent

			op, err := uc.opRepo.GetByCodeOrIDForUpdate(ctx, tx, code, 0)
			if err != nil {
				return err
			}
			entry, err := domain.NewTrashEntry(uc.idGen.Generate(), op, req, input.Agent, now)
			if err != nil {
				return err
			}
			if err := uc.trashRepo.Create(ctx, tx, entry); err != nil {
				return err
			}
			if err := uc.opRepo.Delete(ctx, tx, op.ID); err != nil {
				return err
			}
			result.TrashEntry = entry
		}

		if err := uc.delRepo.Update(ctx, tx, req); err != nil {
			return err
		}
		result.Request = req

		return uc.audit(ctx, tx, action, input.Agent, &before, req, now)
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.DeletionTransition(result.Request.Status)
	uc.logger.Info().Str("code_ops", code).Str("status", string(result.Request.Status)).Msg("deletion request decided by agent")

	return result, nil
}

// ListPendingForAdmin lists requests awaiting admin validation.
func (uc *DeletionWorkflowUseCase) ListPendingForAdmin(ctx context.Context, limit, offset int) ([]*domain.DeletionRequest, error) {
	return uc.List(ctx, DeletionRequestFilter{
		Statuses: []domain.DeletionStatus{domain.DeletionStatusPending},
		Limit:    limit,
		Offset:   offset,
	})
}

// ListPendingForAgent lists admin-approved requests awaiting the agent, optionally for one shop.
func (uc *DeletionWorkflowUseCase) ListPendingForAgent(ctx context.Context, shopID *int64, limit, offset int) ([]*domain.DeletionRequest, error) {
	return uc.List(ctx, DeletionRequestFilter{
		Statuses:     []domain.DeletionStatus{domain.DeletionStatusAdminApproved},
		SourceShopID: shopID,
		Limit:        limit,
		Offset:       offset,
	})
}

// List returns requests newest first.
func (uc *DeletionWorkflowUseCase) List(ctx context.Context, filter DeletionRequestFilter) ([]*domain.DeletionRequest, error) {
	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)

	reqs, err := uc.delRepo.List(ctx, filter)
	if err != nil {
		return nil, domain.WrapStorage("list deletion requests", err)
	}
	return reqs, nil
}

// Restore re-creates the operation of the latest unrestored trash entry
// under a new identity and flips the entry to restored.
func (uc *DeletionWorkflowUseCase) Restore(ctx context.Context, input RestoreInput) (*RestoreResult, error) {
	code := strings.TrimSpace(input.BusinessCode)
	if err := domain.ValidateBusinessCode(code); err != nil {
		return nil, err
	}
	if input.By.IsZero() {
		return nil, domain.NewFieldError("restored_by", "restorer identity is required")
	}

	result := &RestoreResult{}
	err := uc.inTx(ctx, "restore trash entry", func(ctx context.Context, tx Transaction) error {
		entry, err := uc.trashRepo.GetLatestUnrestoredForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}

		now := uc.now()
		op, err := entry.RestoredOperation(input.By, now)
		if err != nil {
			return err
		}
		if err := uc.opRepo.Create(ctx, tx, op); err != nil {
			return err
		}
		if err := entry.MarkRestored(input.By, op.ID, now); err != nil {
			return err
		}
		if err := uc.trashRepo.MarkRestored(ctx, tx, entry); err != nil {
			return err
		}

		result.Entry = entry
		result.Operation = op

		log := domain.NewAuditLog(domain.AuditActionTrashRestore, domain.AuditResourceTrashEntry, entry.ID, actorID(input.By), nil, op, now)
		return uc.auditRepo.CreateTx(ctx, tx, log)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().Str("code_ops", code).Int64("operation_id", result.Operation.ID).Msg("trash entry restored")

	return result, nil
}

// ListTrash returns trash entries newest first.
func (uc *DeletionWorkflowUseCase) ListTrash(ctx context.Context, filter TrashFilter) ([]*domain.TrashEntry, error) {
	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)

	entries, err := uc.trashRepo.List(ctx, filter)
	if err != nil {
		return nil, domain.WrapStorage("list trash", err)
	}
	return entries, nil
}

func (uc *DeletionWorkflowUseCase) audit(ctx context.Context, tx Transaction, action domain.AuditAction, actor domain.Actor, before, after *domain.DeletionRequest, now time.Time) error {
	var beforeState any
	if before != nil {
		beforeState = before
	}
	log := domain.NewAuditLog(action, domain.AuditResourceDeletionRequest, after.BusinessCode, actorID(actor), beforeState, after, now)
	return uc.auditRepo.CreateTx(ctx, tx, log)
}

func actorID(a domain.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	if a.ID == 0 {
		return ""
	}
	return strconv.FormatInt(a.ID, 10)
}
