package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/possync/internal/domain"
)

// Transfer roles for the validated transfers feed.
const (
	ShopRoleSource      = "source"
	ShopRoleDestination = "destination"
)

// ValidatedTransfersQuery lists transfers a shop sent or received that were validated.
type ValidatedTransfersQuery struct {
	Since  *time.Time
	Role   string
	ShopID int64
	Limit  int
}

// HandoffResult is the validated operation and the matcher that located it.
type HandoffResult struct {
	Operation *domain.Operation
	Strategy  domain.MatchStrategy
}

// TransferHandoffUseCase validates receipt of a transfer by the destination shop.
type TransferHandoffUseCase struct {
	txManager TransactionManager
	opRepo    OperationRepository
	auditRepo AuditRepository
	retrier   Retrier
	metrics   MetricsRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTransferHandoffUseCase creates a new TransferHandoffUseCase.
func NewTransferHandoffUseCase(
	txManager TransactionManager,
	opRepo OperationRepository,
	auditRepo AuditRepository,
	retrier Retrier,
	metrics MetricsRecorder,
	logger zerolog.Logger,
) *TransferHandoffUseCase {
	if retrier == nil {
		retrier = noRetry{}
	}
	if metrics == nil {
		metrics = NopMetrics
	}
	return &TransferHandoffUseCase{
		txManager: txManager,
		opRepo:    opRepo,
		auditRepo: auditRepo,
		retrier:   retrier,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (uc *TransferHandoffUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

// Validate locates the transfer with the first matcher that hits, locks it,
// checks type, status and destination, then marks it validated.
func (uc *TransferHandoffUseCase) Validate(ctx context.Context, req domain.HandoffRequest) (*HandoffResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *HandoffResult
	err := uc.retrier.Retry(ctx, func() error {
		var err error
		result, err = uc.validateOnce(ctx, req)
		return err
	})
	if err != nil {
		strategy := "none"
		if result != nil {
			strategy = result.Strategy.String()
		}
		uc.metrics.HandoffAttempt(strategy, string(domain.KindOf(err)))
		return nil, err
	}

	uc.metrics.HandoffAttempt(result.Strategy.String(), "validated")
	uc.logger.Info().
		Str("code_ops", result.Operation.BusinessCode).
		Str("strategy", result.Strategy.String()).
		Int64("shop_destination_id", req.DestinationShopID).
		Msg("transfer validated")

	return result, nil
}

func (uc *TransferHandoffUseCase) validateOnce(ctx context.Context, req domain.HandoffRequest) (*HandoffResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, domain.WrapStorage("begin handoff", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	result, err := uc.locate(txCtx, tx, req)
	if err != nil {
		return nil, err
	}

	op := result.Operation
	before := op.Clone()
	now := uc.now()
	if err := req.ApplyHandoff(op, now); err != nil {
		return result, err
	}

	if err := uc.opRepo.Update(txCtx, tx, op); err != nil {
		return result, domain.WrapStorage("update transfer", err)
	}

	log := domain.NewAuditLog(domain.AuditActionTransferValidate, domain.AuditResourceOperation, op.BusinessCode, req.ValidatorID, before, op, now)
	if err := uc.auditRepo.CreateTx(txCtx, tx, log); err != nil {
		return result, domain.WrapStorage("audit handoff", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return result, domain.WrapStorage("commit handoff", err)
	}

	return result, nil
}

func (uc *TransferHandoffUseCase) locate(ctx context.Context, tx Transaction, req domain.HandoffRequest) (*HandoffResult, error) {
	for _, locator := range req.Locators() {
		op, err := uc.opRepo.FindTransferForUpdate(ctx, tx, locator)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, domain.WrapStorage("locate transfer", err)
		}
		return &HandoffResult{Operation: op, Strategy: locator.Strategy}, nil
	}
	return nil, domain.ErrOperationNotFound
}

// ListValidated returns validated or completed transfers for a shop.
func (uc *TransferHandoffUseCase) ListValidated(ctx context.Context, query ValidatedTransfersQuery) ([]*domain.Operation, error) {
	if query.ShopID <= 0 {
		return nil, domain.NewFieldError("shop_id", "shop id is required")
	}
	switch query.Role {
	case "":
		query.Role = ShopRoleDestination
	case ShopRoleSource, ShopRoleDestination:
	default:
		return nil, domain.NewFieldError("role", "role must be source or destination")
	}
	query.Limit, _, _ = domain.ClampPagination(query.Limit, 0, domain.DefaultPageSize, domain.MaxValidatedPageSize)

	ops, err := uc.opRepo.ListValidatedTransfers(ctx, query)
	if err != nil {
		return nil, domain.WrapStorage("list validated transfers", err)
	}
	return ops, nil
}
