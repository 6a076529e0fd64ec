package usecase

import (
	"context"

	"github.com/iho/possync/internal/domain"
)

// Audit history paging.
const (
	DefaultAuditPageSize = 100
	MaxAuditPageSize     = 500
)

// AuditHistory is one page of the audit trail and the size of the whole match.
type AuditHistory struct {
	Logs   []*domain.AuditLog
	Total  int
	Limit  int
	Offset int
}

// AuditHistoryUseCase reads the audit trail written by the sync and deletion flows.
type AuditHistoryUseCase struct {
	auditRepo AuditRepository
}

// NewAuditHistoryUseCase creates a new AuditHistoryUseCase.
func NewAuditHistoryUseCase(auditRepo AuditRepository) *AuditHistoryUseCase {
	return &AuditHistoryUseCase{auditRepo: auditRepo}
}

// History lists matching audit rows newest first.
func (uc *AuditHistoryUseCase) History(ctx context.Context, filter domain.AuditFilter) (*AuditHistory, error) {
	limit, offset, err := domain.ClampPagination(filter.Limit, filter.Offset, DefaultAuditPageSize, MaxAuditPageSize)
	if err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, domain.NewFieldError("end_date", "end_date is before start_date")
	}
	filter.Limit, filter.Offset = limit, offset

	logs, err := uc.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, domain.WrapStorage("list audit logs", err)
	}
	total, err := uc.auditRepo.Count(ctx, filter)
	if err != nil {
		return nil, domain.WrapStorage("count audit logs", err)
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}

	return &AuditHistory{Logs: logs, Total: total, Limit: limit, Offset: offset}, nil
}
