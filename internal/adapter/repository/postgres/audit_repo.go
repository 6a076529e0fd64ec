package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/possync/internal/domain"
	"github.com/iho/possync/internal/usecase"
)

// AuditRepository implements audit log persistence
type AuditRepository struct {
	pool dbPool
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func newAuditRepository(pool dbPool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

const insertAuditLogSQL = `
	INSERT INTO audit_logs (
		id, user_id, action, resource_type, resource_id,
		ip_address, user_agent, request_id,
		before_state, after_state, status, error_message, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

// CreateTx inserts an audit log entry inside the caller's unit of work, so the
// trail commits or rolls back with the change it describes.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	before, err := marshalState(log.BeforeState)
	if err != nil {
		return err
	}
	after, err := marshalState(log.AfterState)
	if err != nil {
		return err
	}

	_, err = conn(r.pool, tx).Exec(ctx, insertAuditLogSQL,
		log.ID,
		log.UserID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		before,
		after,
		log.Status,
		log.ErrorMessage,
		log.CreatedAt,
	)

	return err
}

func marshalState(state domain.JSON) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}

// auditWhere renders the filter as a WHERE clause and its arguments.
func auditWhere(filter domain.AuditFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("WHERE 1=1")
	args := []any{}

	add := func(clause string, arg any) {
		args = append(args, arg)
		sb.WriteString(" AND " + clause + " $" + strconv.Itoa(len(args)))
	}

	if filter.UserID != "" {
		add("user_id =", filter.UserID)
	}
	if filter.Action != "" {
		add("action =", filter.Action)
	}
	if filter.ResourceType != "" {
		add("resource_type =", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id =", filter.ResourceID)
	}
	if filter.StartDate != nil {
		add("created_at >=", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("created_at <", *filter.EndDate)
	}

	return sb.String(), args
}

// Count returns how many audit logs match the filter, ignoring paging.
func (r *AuditRepository) Count(ctx context.Context, filter domain.AuditFilter) (int, error) {
	where, args := auditWhere(filter)

	var n int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs "+where, args...).Scan(&n)
	return n, err
}

// List retrieves audit logs with filtering, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	where, args := auditWhere(filter)

	var sb strings.Builder
	sb.WriteString(`
		SELECT id, user_id, action, resource_type, resource_id,
		       ip_address, user_agent, request_id,
		       before_state, after_state, status, error_message, created_at
		FROM audit_logs
		`)
	sb.WriteString(where)
	sb.WriteString(" ORDER BY created_at DESC")

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
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		var log domain.AuditLog
		var beforeStateJSON, afterStateJSON []byte

		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&log.IPAddress,
			&log.UserAgent,
			&log.RequestID,
			&beforeStateJSON,
			&afterStateJSON,
			&log.Status,
			&log.ErrorMessage,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if beforeStateJSON != nil {
			_ = json.Unmarshal(beforeStateJSON, &log.BeforeState)
		}

		if afterStateJSON != nil {
			_ = json.Unmarshal(afterStateJSON, &log.AfterState)
		}

		logs = append(logs, &log)
	}

	return logs, rows.Err()
}
