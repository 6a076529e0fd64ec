package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// OperationRepository implements usecase.OperationRepository.
type OperationRepository struct {
	pool dbPool
}

// NewOperationRepository creates a new OperationRepository.
func NewOperationRepository(pool *pgxpool.Pool) *OperationRepository {
	return &OperationRepository{pool: pool}
}

func newOperationRepository(pool dbPool) *OperationRepository {
	return &OperationRepository{pool: pool}
}

const operationColumns = `id, COALESCE(code_ops, ''), type, montant_brut, montant_net, commission, devise,
	client_id, shop_source_id, shop_destination_id, agent_id,
	nom_destinataire, telephone_destinataire, mode_paiement, statut, reference, notes,
	validated_at, validated_by, created_at, last_modified_at, last_modified_by,
	is_synced, synced_at, version`

func scanOperation(row pgx.Row) (*domain.Operation, error) {
	var (
		op                        domain.Operation
		opType, channel, status   string
		gross, net, commission    pgtype.Numeric
		clientID, destID          pgtype.Int8
		validatedAt, syncedAt     pgtype.Timestamptz
		createdAt, lastModifiedAt time.Time
	)

	err := row.Scan(
		&op.ID, &op.BusinessCode, &opType, &gross, &net, &commission, &op.Currency,
		&clientID, &op.SourceShopID, &destID, &op.AgentID,
		&op.RecipientName, &op.RecipientPhone, &channel, &status, &op.Reference, &op.Notes,
		&validatedAt, &op.ValidatedBy, &createdAt, &lastModifiedAt, &op.LastModifiedBy,
		&op.IsSynced, &syncedAt, &op.Version,
	)
	if err != nil {
		return nil, err
	}

	op.Type = domain.OperationType(opType)
	op.PaymentChannel = domain.PaymentChannel(channel)
	op.Status = domain.OperationStatus(status)
	op.GrossAmount = numericToDecimal(gross)
	op.NetAmount = numericToDecimal(net)
	op.Commission = numericToDecimal(commission)
	op.ClientID = int8ToPtr(clientID)
	op.DestinationShopID = int8ToPtr(destID)
	op.ValidatedAt = timestamptzToPtr(validatedAt)
	op.SyncedAt = timestamptzToPtr(syncedAt)
	op.CreatedAt = createdAt.UTC()
	op.LastModifiedAt = lastModifiedAt.UTC()

	return &op, nil
}

func collectOperations(rows pgx.Rows) ([]*domain.Operation, error) {
	defer rows.Close()

	ops := []*domain.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Create inserts op and sets its server id.
func (r *OperationRepository) Create(ctx context.Context, tx usecase.Transaction, op *domain.Operation) error {
	if op.Version == 0 {
		op.Version = 1
	}

	err := conn(r.pool, tx).QueryRow(ctx, `
		INSERT INTO operations (
			code_ops, type, montant_brut, montant_net, commission, devise,
			client_id, shop_source_id, shop_destination_id, agent_id,
			nom_destinataire, telephone_destinataire, mode_paiement, statut, reference, notes,
			validated_at, validated_by, created_at, last_modified_at, last_modified_by,
			is_synced, synced_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING id`,
		op.BusinessCode, string(op.Type),
		decimalToNumeric(op.GrossAmount), decimalToNumeric(op.NetAmount), decimalToNumeric(op.Commission), op.Currency,
		int64PtrToInt8(op.ClientID), op.SourceShopID, int64PtrToInt8(op.DestinationShopID), op.AgentID,
		op.RecipientName, op.RecipientPhone, string(op.PaymentChannel), string(op.Status), op.Reference, op.Notes,
		timePtrToTimestamptz(op.ValidatedAt), op.ValidatedBy, op.CreatedAt, op.LastModifiedAt, op.LastModifiedBy,
		op.IsSynced, timePtrToTimestamptz(op.SyncedAt), op.Version,
	).Scan(&op.ID)
	if isUniqueViolation(err) {
		return domain.ErrBusinessCodeTaken
	}
	return err
}

// Update overwrites every mutable column of op and bumps its version.
func (r *OperationRepository) Update(ctx context.Context, tx usecase.Transaction, op *domain.Operation) error {
	var version int64
	err := conn(r.pool, tx).QueryRow(ctx, `
		UPDATE operations SET
			code_ops = $2, type = $3, montant_brut = $4, montant_net = $5, commission = $6, devise = $7,
			client_id = $8, shop_source_id = $9, shop_destination_id = $10, agent_id = $11,
			nom_destinataire = $12, telephone_destinataire = $13, mode_paiement = $14, statut = $15,
			reference = $16, notes = $17, validated_at = $18, validated_by = $19,
			last_modified_at = $20, last_modified_by = $21, is_synced = $22, synced_at = $23,
			version = version + 1
		WHERE id = $1
		RETURNING version`,
		op.ID, op.BusinessCode, string(op.Type),
		decimalToNumeric(op.GrossAmount), decimalToNumeric(op.NetAmount), decimalToNumeric(op.Commission), op.Currency,
		int64PtrToInt8(op.ClientID), op.SourceShopID, int64PtrToInt8(op.DestinationShopID), op.AgentID,
		op.RecipientName, op.RecipientPhone, string(op.PaymentChannel), string(op.Status),
		op.Reference, op.Notes, timePtrToTimestamptz(op.ValidatedAt), op.ValidatedBy,
		op.LastModifiedAt, op.LastModifiedBy, op.IsSynced, timePtrToTimestamptz(op.SyncedAt),
	).Scan(&version)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrBusinessCodeTaken
		}
		return notFound(err, domain.ErrOperationNotFound)
	}

	op.Version = version
	return nil
}

// Delete removes a live operation.
func (r *OperationRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	tag, err := conn(r.pool, tx).Exec(ctx, `DELETE FROM operations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOperationNotFound
	}
	return nil
}

// GetByCode reads one operation without locking it.
func (r *OperationRepository) GetByCode(ctx context.Context, code string) (*domain.Operation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE code_ops = $1`, code)

	op, err := scanOperation(row)
	if err != nil {
		return nil, notFound(err, domain.ErrOperationNotFound)
	}
	return op, nil
}

// GetByCodeOrIDForUpdate locks the row carrying code. The numeric id is only
// trusted for legacy rows without a business code, since device ids collide.
func (r *OperationRepository) GetByCodeOrIDForUpdate(ctx context.Context, tx usecase.Transaction, code string, id int64) (*domain.Operation, error) {
	row := conn(r.pool, tx).QueryRow(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE ($1 <> '' AND code_ops = $1)
		   OR ($2 > 0 AND id = $2 AND COALESCE(code_ops, '') = '')
		ORDER BY CASE WHEN code_ops = $1 THEN 0 ELSE 1 END
		LIMIT 1
		FOR UPDATE`, code, id)

	op, err := scanOperation(row)
	if err != nil {
		return nil, notFound(err, domain.ErrOperationNotFound)
	}
	return op, nil
}

// FindDuplicate returns a row with the same agent, type and gross amount
// created on the same UTC calendar day, or nil.
func (r *OperationRepository) FindDuplicate(ctx context.Context, tx usecase.Transaction, op *domain.Operation) (*domain.Operation, error) {
	dayStart := op.CreatedAt.UTC().Truncate(24 * time.Hour)

	row := conn(r.pool, tx).QueryRow(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE agent_id = $1
		  AND type = $2
		  AND montant_brut = $3
		  AND created_at >= $4 AND created_at < $5
		LIMIT 1`,
		op.AgentID, string(op.Type), decimalToNumeric(op.GrossAmount), dayStart, dayStart.Add(24*time.Hour))

	dup, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return dup, nil
}

// FindTransferForUpdate locates an operation with one matcher and locks it.
// Only the composite matcher is restricted to transfer types; for the others a
// transfer wins over any other row sharing the key. Type, status and
// destination are checked by the caller, so a located row that fails them
// yields a descriptive error instead of a silent miss.
func (r *OperationRepository) FindTransferForUpdate(ctx context.Context, tx usecase.Transaction, locator domain.TransferLocator) (*domain.Operation, error) {
	var (
		where string
		args  = []any{typeStrings(domain.TransferTypes)}
	)

	switch locator.Strategy {
	case domain.MatchByReference:
		where = "reference = $2"
		args = append(args, locator.Reference)
	case domain.MatchByBusinessCode:
		where = "code_ops = $2"
		args = append(args, locator.BusinessCode)
	case domain.MatchByID:
		where = "id = $2"
		args = append(args, locator.ID)
	case domain.MatchByComposite:
		k := locator.Composite
		where = `type = ANY($1)
		  AND shop_source_id = $2
		  AND date_trunc('second', created_at) = date_trunc('second', $3::timestamptz)
		  AND ABS(montant_net - $4) < $5
		  AND nom_destinataire = $6`
		args = append(args, k.SourceShopID, k.OperationTime, decimalToNumeric(k.NetAmount),
			decimalToNumeric(domain.AmountTolerance), k.RecipientName)
	default:
		return nil, domain.ErrMissingIdentification
	}

	row := conn(r.pool, tx).QueryRow(ctx, `
		SELECT `+operationColumns+`
		FROM operations
		WHERE `+where+`
		ORDER BY (type = ANY($1)) DESC, created_at DESC
		LIMIT 1
		FOR UPDATE`, args...)

	op, err := scanOperation(row)
	if err != nil {
		return nil, notFound(err, domain.ErrOperationNotFound)
	}
	return op, nil
}

// ListChanges runs a change feed query.
func (r *OperationRepository) ListChanges(ctx context.Context, filter domain.FeedFilter) ([]*domain.Operation, error) {
	where, args := buildFeedWhere(filter)

	var sb strings.Builder
	sb.WriteString("SELECT " + operationColumns + " FROM operations WHERE " + where)
	sb.WriteString(feedOrderBy(filter.Order))

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
	return collectOperations(rows)
}

// CountChanges counts the rows a feed query matches, ignoring pagination.
func (r *OperationRepository) CountChanges(ctx context.Context, filter domain.FeedFilter) (int, error) {
	where, args := buildFeedWhere(filter)

	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM operations WHERE "+where, args...).Scan(&total)
	return total, err
}

// ListValidatedTransfers returns validated or completed transfers a shop sent
// or received, most recently modified first.
func (r *OperationRepository) ListValidatedTransfers(ctx context.Context, query usecase.ValidatedTransfersQuery) ([]*domain.Operation, error) {
	shopColumn := "shop_destination_id"
	if query.Role == usecase.ShopRoleSource {
		shopColumn = "shop_source_id"
	}

	args := []any{
		typeStrings(domain.TransferTypes),
		statusStrings([]domain.OperationStatus{domain.OperationStatusValidated, domain.OperationStatusCompleted}),
		query.ShopID,
	}
	sql := `SELECT ` + operationColumns + `
		FROM operations
		WHERE type = ANY($1) AND statut = ANY($2) AND ` + shopColumn + ` = $3`
	if query.Since != nil {
		args = append(args, *query.Since)
		sql += " AND last_modified_at > $" + strconv.Itoa(len(args))
	}
	args = append(args, query.Limit)
	sql += " ORDER BY last_modified_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectOperations(rows)
}

// feedQuery accumulates numbered placeholders.
type feedQuery struct {
	clauses []string
	args    []any
}

func (q *feedQuery) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *feedQuery) where(clause string) {
	q.clauses = append(q.clauses, clause)
}

// buildFeedWhere renders a feed filter as a WHERE clause. Tiers are OR'd
// together and AND'd with every other predicate.
func buildFeedWhere(f domain.FeedFilter) (string, []any) {
	q := &feedQuery{}

	if !f.Scope.IsAdmin() {
		var shopID int64
		if f.Scope.ShopID != nil {
			shopID = *f.Scope.ShopID
		}
		shop := q.arg(shopID)
		types := q.arg(typeStrings(domain.DestinationVisibleTypes))
		q.where("(shop_source_id = " + shop + " OR (shop_destination_id = " + shop + " AND type = ANY(" + types + ")))")
	}
	if f.Since != nil {
		q.where("last_modified_at > " + q.arg(*f.Since))
	}
	if f.CreatedSince != nil {
		q.where("created_at > " + q.arg(*f.CreatedSince))
	}
	if len(f.IncludeStatuses) > 0 {
		q.where("statut = ANY(" + q.arg(statusStrings(f.IncludeStatuses)) + ")")
	}
	if len(f.ExcludeStatuses) > 0 {
		q.where("NOT (statut = ANY(" + q.arg(statusStrings(f.ExcludeStatuses)) + "))")
	}
	if len(f.IDsIn) > 0 {
		q.where("id = ANY(" + q.arg(f.IDsIn) + ")")
	}
	if len(f.IDsNotIn) > 0 {
		q.where("NOT (id = ANY(" + q.arg(f.IDsNotIn) + "))")
	}
	if f.OnlyModified {
		q.where("last_modified_at > created_at")
	}

	if len(f.Tiers) > 0 {
		tiers := make([]string, 0, len(f.Tiers))
		for _, t := range f.Tiers {
			var parts []string
			if len(t.Statuses) > 0 {
				parts = append(parts, "statut = ANY("+q.arg(statusStrings(t.Statuses))+")")
			}
			if t.ModifiedAfter != nil {
				parts = append(parts, "last_modified_at >= "+q.arg(*t.ModifiedAfter))
			}
			if t.CreatedAfter != nil {
				parts = append(parts, "created_at >= "+q.arg(*t.CreatedAfter))
			}
			if t.ModifiedAfterCreation {
				parts = append(parts, "last_modified_at > created_at")
			}
			if len(parts) == 0 {
				parts = append(parts, "TRUE")
			}
			tiers = append(tiers, "("+strings.Join(parts, " AND ")+")")
		}
		q.where("(" + strings.Join(tiers, " OR ") + ")")
	}

	if len(q.clauses) == 0 {
		return "TRUE", q.args
	}
	return strings.Join(q.clauses, " AND "), q.args
}

func feedOrderBy(order domain.FeedOrder) string {
	switch order {
	case domain.FeedOrderAscending:
		return " ORDER BY last_modified_at ASC, id ASC"
	case domain.FeedOrderPriority:
		return ` ORDER BY CASE
			WHEN statut = '` + string(domain.OperationStatusPending) + `' THEN 1
			WHEN last_modified_at > created_at THEN 2
			ELSE 3 END, last_modified_at DESC, id DESC`
	default:
		return " ORDER BY last_modified_at DESC, id DESC"
	}
}
