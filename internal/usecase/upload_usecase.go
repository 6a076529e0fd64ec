package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/possync/internal/domain"
)

// Upload item outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeUpdated   = "updated"
	OutcomeDuplicate = "duplicate"
	OutcomeStale     = "stale"
	OutcomeError     = "error"
)

// UploadItem is one client-submitted operation with the references it names.
// DecodeErr is set when the payload could not be read; Operation then carries
// at most the business code.
type UploadItem struct {
	Operation *domain.Operation
	DecodeErr error
	Refs      domain.ReferenceKeys
}

// UploadInput is a batch pushed by one client.
type UploadInput struct {
	SubmitterID string
	Items       []UploadItem
}

// ItemError reports why one item of a batch was not applied.
type ItemError struct {
	ItemRef string
	Kind    domain.ErrorKind
	Message string
}

// UploadResult summarizes a batch.
type UploadResult struct {
	Errors     []ItemError
	Accepted   int
	Updated    int
	Duplicates int
	Stale      int
}

// UploadUseCase applies client batches idempotently.
type UploadUseCase struct {
	txManager TransactionManager
	opRepo    OperationRepository
	resolver  *ReferenceResolver
	auditRepo AuditRepository
	retrier   Retrier
	metrics   MetricsRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewUploadUseCase creates a new UploadUseCase.
func NewUploadUseCase(
	txManager TransactionManager,
	opRepo OperationRepository,
	resolver *ReferenceResolver,
	auditRepo AuditRepository,
	retrier Retrier,
	metrics MetricsRecorder,
	logger zerolog.Logger,
) *UploadUseCase {
	if retrier == nil {
		retrier = noRetry{}
	}
	if metrics == nil {
		metrics = NopMetrics
	}
	return &UploadUseCase{
		txManager: txManager,
		opRepo:    opRepo,
		resolver:  resolver,
		auditRepo: auditRepo,
		retrier:   retrier,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (uc *UploadUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

// Upload applies every item inside one outer transaction. Each item runs in
// its own savepoint, so a bad item is reported and skipped while the rest of
// the batch commits. Only a failure of the outer transaction aborts the batch.
func (uc *UploadUseCase) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if len(input.Items) == 0 {
		return &UploadResult{Errors: []ItemError{}}, nil
	}

	var result *UploadResult
	err := uc.retrier.Retry(ctx, func() error {
		var err error
		result, err = uc.uploadOnce(ctx, input)
		return err
	})
	if err != nil {
		return nil, domain.WrapStorage("upload batch", err)
	}

	for range result.Errors {
		uc.metrics.UploadItem(OutcomeError)
	}

	return result, nil
}

func (uc *UploadUseCase) uploadOnce(ctx context.Context, input UploadInput) (*UploadResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, UploadTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := uc.now()
	result := &UploadResult{Errors: []ItemError{}}
	outcomes := make([]string, 0, len(input.Items))

	for i, item := range input.Items {
		ref := itemRef(item, i)

		outcome, itemErr, fatal := uc.applyItem(txCtx, tx, item, input.SubmitterID, now)
		if fatal != nil {
			return nil, fatal
		}

		if itemErr != nil {
			uc.logger.Debug().Str("item", ref).Err(itemErr).Msg("upload item rejected")
			result.Errors = append(result.Errors, ItemError{
				ItemRef: ref,
				Kind:    domain.KindOf(itemErr),
				Message: itemErr.Error(),
			})
			failure := domain.NewAuditLog(domain.AuditActionOperationInsert, domain.AuditResourceOperation, ref, input.SubmitterID, nil, nil, now)
			failure.Status = string(domain.AuditStatusFailure)
			failure.ErrorMessage = itemErr.Error()
			if err := uc.auditRepo.CreateTx(txCtx, tx, failure); err != nil {
				return nil, err
			}
			continue
		}

		switch outcome {
		case OutcomeAccepted:
			result.Accepted++
		case OutcomeUpdated:
			result.Updated++
		case OutcomeDuplicate:
			result.Duplicates++
			uc.logger.Info().Str("item", ref).Msg("duplicate upload skipped")
		case OutcomeStale:
			result.Stale++
		}
		outcomes = append(outcomes, outcome)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	for _, o := range outcomes {
		uc.metrics.UploadItem(o)
	}

	return result, nil
}

func itemRef(item UploadItem, index int) string {
	if item.Operation != nil && item.Operation.BusinessCode != "" {
		return item.Operation.BusinessCode
	}
	return "#" + strconv.Itoa(index)
}

// applyItem wraps one item in a savepoint. Item errors roll the savepoint
// back; fatal errors mean the outer transaction is no longer usable.
// An insert that loses the race for its business code is a duplicate.
func (uc *UploadUseCase) applyItem(ctx context.Context, tx Transaction, item UploadItem, submitter string, now time.Time) (string, error, error) {
	if item.DecodeErr != nil {
		return "", item.DecodeErr, nil
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return "", nil, err
	}

	outcome, err := uc.reconcile(ctx, sp, item, submitter, now)
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return "", nil, rbErr
		}
		if errors.Is(err, domain.ErrBusinessCodeTaken) {
			return OutcomeDuplicate, nil, nil
		}
		return "", err, nil
	}

	if err := sp.Commit(ctx); err != nil {
		return "", nil, err
	}

	return outcome, nil, nil
}

func (uc *UploadUseCase) reconcile(ctx context.Context, tx Transaction, item UploadItem, submitter string, now time.Time) (string, error) {
	if item.Operation == nil {
		return "", domain.NewFieldError("operation", "missing payload")
	}

	op := item.Operation.Clone()
	deviceID := op.ID

	if err := domain.ValidateBusinessCode(op.BusinessCode); err != nil {
		return "", err
	}
	if op.Status == "" {
		return "", domain.NewFieldError("statut", "status is required")
	}
	currency, err := domain.ValidateCurrency(op.Currency)
	if err != nil {
		return "", err
	}
	op.Currency = currency
	if op.PaymentChannel == "" {
		op.PaymentChannel = domain.PaymentChannelCash
	}

	if err := uc.resolveReferences(ctx, tx, op, item.Refs); err != nil {
		return "", err
	}

	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	if op.LastModifiedAt.IsZero() {
		op.LastModifiedAt = op.CreatedAt
	}
	if op.LastModifiedBy == "" {
		op.LastModifiedBy = submitter
	}

	if err := op.Validate(); err != nil {
		return "", err
	}

	existing, err := uc.opRepo.GetByCodeOrIDForUpdate(ctx, tx, op.BusinessCode, deviceID)
	switch {
	case err == nil:
		return uc.update(ctx, tx, existing, op, submitter, now)
	case errors.Is(err, domain.ErrNotFound):
		return uc.insert(ctx, tx, op, submitter, now)
	default:
		return "", err
	}
}

func (uc *UploadUseCase) resolveReferences(ctx context.Context, tx Transaction, op *domain.Operation, refs domain.ReferenceKeys) error {
	sourceID, err := uc.resolver.ResolveShop(ctx, tx, refs.SourceShopName, refs.SourceShopID)
	if err != nil {
		return fmt.Errorf("source shop: %w", err)
	}
	op.SourceShopID = sourceID

	op.DestinationShopID = nil
	if refs.DestinationShopName != "" || refs.DestinationShopID > 0 {
		destID, err := uc.resolver.ResolveShop(ctx, tx, refs.DestinationShopName, refs.DestinationShopID)
		switch {
		case err == nil:
			op.DestinationShopID = &destID
		case errors.Is(err, domain.ErrNotFound) && !op.Type.IsTransfer():
		default:
			return fmt.Errorf("destination shop: %w", err)
		}
	} else if op.Type.IsTransfer() {
		return domain.NewFieldError("shop_destination_id", "transfers require a destination shop")
	}

	agentID, err := uc.resolver.ResolveAgent(ctx, tx, refs.AgentUsername, refs.AgentID)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	op.AgentID = agentID

	clientID, err := uc.resolver.ResolveClient(ctx, tx, refs.ClientName, refs.ClientID)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	op.ClientID = clientID

	return nil
}

func (uc *UploadUseCase) insert(ctx context.Context, tx Transaction, op *domain.Operation, submitter string, now time.Time) (string, error) {
	dup, err := uc.opRepo.FindDuplicate(ctx, tx, op)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if dup != nil {
		return OutcomeDuplicate, uc.audit(ctx, tx, domain.AuditActionOperationSkip, submitter, dup, op, domain.AuditStatusSkipped, now)
	}

	op.ID = 0
	op.Version = 1
	op.MarkSynced(now)

	if err := uc.opRepo.Create(ctx, tx, op); err != nil {
		return "", err
	}

	return OutcomeAccepted, uc.audit(ctx, tx, domain.AuditActionOperationInsert, submitter, nil, op, domain.AuditStatusSuccess, now)
}

func (uc *UploadUseCase) update(ctx context.Context, tx Transaction, existing, incoming *domain.Operation, submitter string, now time.Time) (string, error) {
	if incoming.LastModifiedAt.Before(existing.LastModifiedAt) {
		return OutcomeStale, uc.audit(ctx, tx, domain.AuditActionOperationUpdate, submitter, existing, incoming, domain.AuditStatusSkipped, now)
	}
	if !existing.Status.CanTransitionTo(incoming.Status) {
		return "", fmt.Errorf("%w: status %s cannot become %s", domain.ErrInvalidTransition, existing.Status, incoming.Status)
	}

	merged := incoming.Clone()
	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	merged.Version = existing.Version
	if merged.ValidatedAt == nil {
		merged.ValidatedAt = existing.ValidatedAt
		merged.ValidatedBy = existing.ValidatedBy
	}
	merged.MarkSynced(now)

	if err := uc.opRepo.Update(ctx, tx, merged); err != nil {
		return "", err
	}

	return OutcomeUpdated, uc.audit(ctx, tx, domain.AuditActionOperationUpdate, submitter, existing, merged, domain.AuditStatusSuccess, now)
}

func (uc *UploadUseCase) audit(ctx context.Context, tx Transaction, action domain.AuditAction, user string, before, after *domain.Operation, status domain.AuditStatus, now time.Time) error {
	code := ""
	if after != nil {
		code = after.BusinessCode
	}
	log := domain.NewAuditLog(action, domain.AuditResourceOperation, code, user, stateOf(before), stateOf(after), now)
	log.Status = string(status)
	return uc.auditRepo.CreateTx(ctx, tx, log)
}

func stateOf(op *domain.Operation) any {
	if op == nil {
		return nil
	}
	return op
}
