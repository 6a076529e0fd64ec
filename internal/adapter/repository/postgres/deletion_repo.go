package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// DeletionRequestRepository implements usecase.DeletionRequestRepository.
type DeletionRequestRepository struct {
	pool dbPool
}

// NewDeletionRequestRepository creates a new DeletionRequestRepository.
func NewDeletionRequestRepository(pool *pgxpool.Pool) *DeletionRequestRepository {
	return &DeletionRequestRepository{pool: pool}
}

func newDeletionRequestRepository(pool dbPool) *DeletionRequestRepository {
	return &DeletionRequestRepository{pool: pool}
}

const deletionColumns = `id, code_ops, operation_id, operation_type, montant, devise, destinataire,
	shop_source_id, reason, requested_by, requested_by_id, requested_at,
	validated_by_admin, validated_by_admin_id, validation_admin_date,
	validated_by_agent, validated_by_agent_id, validation_agent_date,
	statut, last_modified_at, is_synced`

func scanDeletionRequest(row pgx.Row) (*domain.DeletionRequest, error) {
	var (
		req                  domain.DeletionRequest
		opID                 pgtype.Int8
		opType, status       string
		amount               pgtype.Numeric
		adminDate, agentDate pgtype.Timestamptz
	)

	err := row.Scan(
		&req.ID, &req.BusinessCode, &opID, &opType, &amount, &req.Currency, &req.RecipientName,
		&req.SourceShopID, &req.Reason, &req.RequestedBy.Name, &req.RequestedBy.ID, &req.RequestedAt,
		&req.AdminValidator.Name, &req.AdminValidator.ID, &adminDate,
		&req.AgentValidator.Name, &req.AgentValidator.ID, &agentDate,
		&status, &req.LastModifiedAt, &req.IsSynced,
	)
	if err != nil {
		return nil, err
	}

	req.OperationID = int8ToPtr(opID)
	req.OperationType = domain.OperationType(opType)
	req.GrossAmount = numericToDecimal(amount)
	req.AdminValidatedAt = timestamptzToPtr(adminDate)
	req.AgentValidatedAt = timestamptzToPtr(agentDate)
	req.Status = domain.NormalizeDeletionStatus(status)
	req.RequestedAt = req.RequestedAt.UTC()
	req.LastModifiedAt = req.LastModifiedAt.UTC()

	return &req, nil
}

// Create inserts a pending request. A second open request for the same code
// trips the partial unique index.
func (r *DeletionRequestRepository) Create(ctx context.Context, tx usecase.Transaction, req *domain.DeletionRequest) error {
	err := conn(r.pool, tx).QueryRow(ctx, `
		INSERT INTO deletion_requests (
			code_ops, operation_id, operation_type, montant, devise, destinataire,
			shop_source_id, reason, requested_by, requested_by_id, requested_at,
			statut, last_modified_at, is_synced
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		req.BusinessCode, int64PtrToInt8(req.OperationID), string(req.OperationType),
		decimalToNumeric(req.GrossAmount), req.Currency, req.RecipientName,
		req.SourceShopID, req.Reason, req.RequestedBy.Name, req.RequestedBy.ID, req.RequestedAt,
		string(req.Status), req.LastModifiedAt, req.IsSynced,
	).Scan(&req.ID)
	if isUniqueViolation(err) {
		return domain.ErrOpenRequestExists
	}
	return err
}

// Update persists the workflow columns of req.
func (r *DeletionRequestRepository) Update(ctx context.Context, tx usecase.Transaction, req *domain.DeletionRequest) error {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE deletion_requests SET
			validated_by_admin = $2, validated_by_admin_id = $3, validation_admin_date = $4,
			validated_by_agent = $5, validated_by_agent_id = $6, validation_agent_date = $7,
			statut = $8, last_modified_at = $9, is_synced = $10
		WHERE id = $1`,
		req.ID,
		req.AdminValidator.Name, req.AdminValidator.ID, timePtrToTimestamptz(req.AdminValidatedAt),
		req.AgentValidator.Name, req.AgentValidator.ID, timePtrToTimestamptz(req.AgentValidatedAt),
		string(req.Status), req.LastModifiedAt, req.IsSynced,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDeletionRequestNotFound
	}
	return nil
}

// GetOpenByCodeForUpdate locks the open request for code. Rows with a corrupt
// status are read as pending and therefore count as open.
func (r *DeletionRequestRepository) GetOpenByCodeForUpdate(ctx context.Context, tx usecase.Transaction, code string) (*domain.DeletionRequest, error) {
	row := conn(r.pool, tx).QueryRow(ctx, `
		SELECT `+deletionColumns+`
		FROM deletion_requests
		WHERE code_ops = $1
		  AND (statut = ANY($2) OR NOT (statut = ANY($3)))
		ORDER BY requested_at DESC
		LIMIT 1
		FOR UPDATE`,
		code,
		deletionStatusStrings([]domain.DeletionStatus{domain.DeletionStatusPending, domain.DeletionStatusAdminApproved}),
		deletionStatusStrings(domain.KnownDeletionStatuses),
	)

	req, err := scanDeletionRequest(row)
	if err != nil {
		return nil, notFound(err, domain.ErrDeletionRequestNotFound)
	}
	return req, nil
}

// List returns requests newest first.
func (r *DeletionRequestRepository) List(ctx context.Context, filter usecase.DeletionRequestFilter) ([]*domain.DeletionRequest, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + deletionColumns + " FROM deletion_requests WHERE 1=1")
	args := []any{}

	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(filter.Statuses) > 0 {
		clause := "statut = ANY(" + next(deletionStatusStrings(filter.Statuses)) + ")"
		for _, s := range filter.Statuses {
			if s == domain.DeletionStatusPending {
				clause += " OR NOT (statut = ANY(" + next(deletionStatusStrings(domain.KnownDeletionStatuses)) + "))"
				break
			}
		}
		sb.WriteString(" AND (" + clause + ")")
	}
	if filter.SourceShopID != nil {
		sb.WriteString(" AND shop_source_id = " + next(*filter.SourceShopID))
	}
	if filter.Since != nil {
		sb.WriteString(" AND last_modified_at > " + next(*filter.Since))
	}

	sb.WriteString(" ORDER BY requested_at DESC, id DESC")

	if filter.Limit > 0 {
		sb.WriteString(" LIMIT " + next(filter.Limit))
	}
	if filter.Offset > 0 {
		sb.WriteString(" OFFSET " + next(filter.Offset))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := []*domain.DeletionRequest{}
	for rows.Next() {
		req, err := scanDeletionRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func deletionStatusStrings(statuses []domain.DeletionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
