package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// TrashRepository implements usecase.TrashRepository.
type TrashRepository struct {
	pool dbPool
}

// NewTrashRepository creates a new TrashRepository.
func NewTrashRepository(pool *pgxpool.Pool) *TrashRepository {
	return &TrashRepository{pool: pool}
}

func newTrashRepository(pool dbPool) *TrashRepository {
	return &TrashRepository{pool: pool}
}

// operationSnapshot is the JSONB image of a deleted operation.
type operationSnapshot struct {
	CreatedAt         time.Time       `json:"created_at"`
	LastModifiedAt    time.Time       `json:"last_modified_at"`
	ValidatedAt       *time.Time      `json:"validated_at,omitempty"`
	DestinationShopID *int64          `json:"shop_destination_id,omitempty"`
	ClientID          *int64          `json:"client_id,omitempty"`
	GrossAmount       decimal.Decimal `json:"montant_brut"`
	NetAmount         decimal.Decimal `json:"montant_net"`
	Commission        decimal.Decimal `json:"commission"`
	BusinessCode      string          `json:"code_ops"`
	Type              string          `json:"type"`
	Currency          string          `json:"devise"`
	RecipientName     string          `json:"nom_destinataire"`
	RecipientPhone    string          `json:"telephone_destinataire"`
	PaymentChannel    string          `json:"mode_paiement"`
	Status            string          `json:"statut"`
	Reference         string          `json:"reference"`
	Notes             string          `json:"notes"`
	ValidatedBy       string          `json:"validated_by"`
	LastModifiedBy    string          `json:"last_modified_by"`
	ID                int64           `json:"id"`
	SourceShopID      int64           `json:"shop_source_id"`
	AgentID           int64           `json:"agent_id"`
	Version           int64           `json:"version"`
}

func snapshotOf(op *domain.Operation) operationSnapshot {
	return operationSnapshot{
		CreatedAt:         op.CreatedAt,
		LastModifiedAt:    op.LastModifiedAt,
		ValidatedAt:       op.ValidatedAt,
		DestinationShopID: op.DestinationShopID,
		ClientID:          op.ClientID,
		GrossAmount:       op.GrossAmount,
		NetAmount:         op.NetAmount,
		Commission:        op.Commission,
		BusinessCode:      op.BusinessCode,
		Type:              string(op.Type),
		Currency:          op.Currency,
		RecipientName:     op.RecipientName,
		RecipientPhone:    op.RecipientPhone,
		PaymentChannel:    string(op.PaymentChannel),
		Status:            string(op.Status),
		Reference:         op.Reference,
		Notes:             op.Notes,
		ValidatedBy:       op.ValidatedBy,
		LastModifiedBy:    op.LastModifiedBy,
		ID:                op.ID,
		SourceShopID:      op.SourceShopID,
		AgentID:           op.AgentID,
		Version:           op.Version,
	}
}

func (s operationSnapshot) operation() domain.Operation {
	return domain.Operation{
		CreatedAt:         s.CreatedAt.UTC(),
		LastModifiedAt:    s.LastModifiedAt.UTC(),
		ValidatedAt:       s.ValidatedAt,
		DestinationShopID: s.DestinationShopID,
		ClientID:          s.ClientID,
		GrossAmount:       s.GrossAmount,
		NetAmount:         s.NetAmount,
		Commission:        s.Commission,
		BusinessCode:      s.BusinessCode,
		Type:              domain.OperationType(s.Type),
		Currency:          s.Currency,
		RecipientName:     s.RecipientName,
		RecipientPhone:    s.RecipientPhone,
		PaymentChannel:    domain.PaymentChannel(s.PaymentChannel),
		Status:            domain.OperationStatus(s.Status),
		Reference:         s.Reference,
		Notes:             s.Notes,
		ValidatedBy:       s.ValidatedBy,
		LastModifiedBy:    s.LastModifiedBy,
		ID:                s.ID,
		SourceShopID:      s.SourceShopID,
		AgentID:           s.AgentID,
		Version:           s.Version,
	}
}

const trashColumns = `id, deletion_request_id, snapshot, deleted_by, deleted_by_id, deleted_at,
	is_restored, restored_by, restored_by_id, restored_at, restored_operation_id`

func scanTrashEntry(row pgx.Row) (*domain.TrashEntry, error) {
	var (
		entry        domain.TrashEntry
		requestID    pgtype.Int8
		snapshot     []byte
		restoredAt   pgtype.Timestamptz
		restoredOpID pgtype.Int8
	)

	err := row.Scan(
		&entry.ID, &requestID, &snapshot, &entry.DeletedBy.Name, &entry.DeletedBy.ID, &entry.DeletedAt,
		&entry.Restored, &entry.RestoredBy.Name, &entry.RestoredBy.ID, &restoredAt, &restoredOpID,
	)
	if err != nil {
		return nil, err
	}

	var snap operationSnapshot
	if err := json.Unmarshal(snapshot, &snap); err != nil {
		return nil, fmt.Errorf("decode trash snapshot %s: %w", entry.ID, err)
	}

	entry.Operation = snap.operation()
	entry.DeletionRequestID = requestID.Int64
	entry.DeletedAt = entry.DeletedAt.UTC()
	entry.RestoredAt = timestamptzToPtr(restoredAt)
	entry.RestoredOperationID = int8ToPtr(restoredOpID)

	return &entry, nil
}

// Create stores a trash entry with the full operation snapshot.
func (r *TrashRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.TrashEntry) error {
	snapshot, err := json.Marshal(snapshotOf(&entry.Operation))
	if err != nil {
		return err
	}

	var requestID pgtype.Int8
	if entry.DeletionRequestID > 0 {
		requestID = pgtype.Int8{Int64: entry.DeletionRequestID, Valid: true}
	}

	_, err = conn(r.pool, tx).Exec(ctx, `
		INSERT INTO operations_trash (
			id, original_operation_id, code_ops, deletion_request_id, snapshot,
			deleted_by, deleted_by_id, deleted_at, is_restored
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Operation.ID, entry.Operation.BusinessCode, requestID, snapshot,
		entry.DeletedBy.Name, entry.DeletedBy.ID, entry.DeletedAt, entry.Restored,
	)
	return err
}

// MarkRestored persists the restoration bookkeeping of entry.
func (r *TrashRepository) MarkRestored(ctx context.Context, tx usecase.Transaction, entry *domain.TrashEntry) error {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE operations_trash SET
			is_restored = TRUE, restored_by = $2, restored_by_id = $3,
			restored_at = $4, restored_operation_id = $5
		WHERE id = $1 AND NOT is_restored`,
		entry.ID, entry.RestoredBy.Name, entry.RestoredBy.ID,
		timePtrToTimestamptz(entry.RestoredAt), int64PtrToInt8(entry.RestoredOperationID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTrashEntryNotFound
	}
	return nil
}

// GetLatestUnrestoredForUpdate locks the most recent unrestored entry for code.
func (r *TrashRepository) GetLatestUnrestoredForUpdate(ctx context.Context, tx usecase.Transaction, code string) (*domain.TrashEntry, error) {
	row := conn(r.pool, tx).QueryRow(ctx, `
		SELECT `+trashColumns+`
		FROM operations_trash
		WHERE code_ops = $1 AND NOT is_restored
		ORDER BY deleted_at DESC
		LIMIT 1
		FOR UPDATE`, code)

	entry, err := scanTrashEntry(row)
	if err != nil {
		return nil, notFound(err, domain.ErrTrashEntryNotFound)
	}
	return entry, nil
}

// List returns entries newest first.
func (r *TrashRepository) List(ctx context.Context, filter usecase.TrashFilter) ([]*domain.TrashEntry, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + trashColumns + " FROM operations_trash WHERE 1=1")
	args := []any{}

	if filter.Restored != nil {
		args = append(args, *filter.Restored)
		sb.WriteString(" AND is_restored = $" + strconv.Itoa(len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		sb.WriteString(" AND deleted_at > $" + strconv.Itoa(len(args)))
	}

	sb.WriteString(" ORDER BY deleted_at DESC")

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return collectTrashEntries(rows)
}

func collectTrashEntries(rows pgx.Rows) ([]*domain.TrashEntry, error) {
	defer rows.Close()

	entries := []*domain.TrashEntry{}
	for rows.Next() {
		entry, err := scanTrashEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeletedCodes returns the codes among codes that have a trash entry and no
// live operation. A restored code is live again and is not reported.
func (r *TrashRepository) DeletedCodes(ctx context.Context, codes []string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT t.code_ops
		FROM operations_trash t
		WHERE t.code_ops = ANY($1)
		  AND NOT EXISTS (SELECT 1 FROM operations o WHERE o.code_ops = t.code_ops)
		ORDER BY t.code_ops`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gone := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		gone = append(gone, code)
	}
	return gone, rows.Err()
}
