package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/possync/internal/domain"
)

// StatusUpdateInput moves one operation to a new status.
type StatusUpdateInput struct {
	BusinessCode string
	Status       domain.OperationStatus
	By           domain.Actor
	Scope        domain.Scope
}

// StatusUpdateResult carries the updated row and the status it left.
type StatusUpdateResult struct {
	Operation *domain.Operation
	Previous  domain.OperationStatus
}

// OperationUseCase reads single operations and changes their status outside a sync batch.
type OperationUseCase struct {
	txManager TransactionManager
	opRepo    OperationRepository
	auditRepo AuditRepository
	retrier   Retrier
	logger    zerolog.Logger
	now       func() time.Time
}

// NewOperationUseCase creates a new OperationUseCase.
func NewOperationUseCase(
	txManager TransactionManager,
	opRepo OperationRepository,
	auditRepo AuditRepository,
	retrier Retrier,
	logger zerolog.Logger,
) *OperationUseCase {
	if retrier == nil {
		retrier = noRetry{}
	}
	return &OperationUseCase{
		txManager: txManager,
		opRepo:    opRepo,
		auditRepo: auditRepo,
		retrier:   retrier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (uc *OperationUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

// Get returns the operation carrying code. Rows outside the caller's scope
// are reported as missing.
func (uc *OperationUseCase) Get(ctx context.Context, code string, scope domain.Scope) (*domain.Operation, error) {
	code = strings.TrimSpace(code)
	if err := domain.ValidateBusinessCode(code); err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	op, err := uc.opRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, domain.WrapStorage("get operation", err)
	}
	if !scope.CanSee(op) {
		return nil, domain.ErrOperationNotFound
	}
	return op, nil
}

// UpdateStatus locks the operation, moves it forward to input.Status and
// flags it for the next sync. Backward moves are rejected.
func (uc *OperationUseCase) UpdateStatus(ctx context.Context, input StatusUpdateInput) (*StatusUpdateResult, error) {
	code := strings.TrimSpace(input.BusinessCode)
	if err := domain.ValidateBusinessCode(code); err != nil {
		return nil, err
	}
	if !input.Status.IsValid() {
		return nil, domain.NewFieldError("statut", "unknown status "+string(input.Status))
	}
	if err := input.Scope.Validate(); err != nil {
		return nil, err
	}

	var result *StatusUpdateResult
	err := uc.retrier.Retry(ctx, func() error {
		var err error
		result, err = uc.updateStatusOnce(ctx, code, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("code_ops", code).
		Str("from", string(result.Previous)).
		Str("to", string(result.Operation.Status)).
		Msg("operation status updated")

	return result, nil
}

func (uc *OperationUseCase) updateStatusOnce(ctx context.Context, code string, input StatusUpdateInput) (*StatusUpdateResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, domain.WrapStorage("begin status update", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	op, err := uc.opRepo.GetByCodeOrIDForUpdate(txCtx, tx, code, 0)
	if err != nil {
		return nil, domain.WrapStorage("lock operation", err)
	}
	if !input.Scope.CanSee(op) {
		return nil, domain.ErrOperationNotFound
	}

	before := op.Clone()
	now := uc.now()
	if err := op.ApplyStatus(input.Status, now, actorID(input.By)); err != nil {
		return nil, err
	}
	if err := uc.opRepo.Update(txCtx, tx, op); err != nil {
		return nil, domain.WrapStorage("update status", err)
	}

	log := domain.NewAuditLog(domain.AuditActionStatusUpdate, domain.AuditResourceOperation, op.BusinessCode, actorID(input.By), before, op, now)
	if err := uc.auditRepo.CreateTx(txCtx, tx, log); err != nil {
		return nil, domain.WrapStorage("audit status update", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, domain.WrapStorage("commit status update", err)
	}

	return &StatusUpdateResult{Operation: op, Previous: before.Status}, nil
}
