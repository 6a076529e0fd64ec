package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iho/possync/internal/domain"
)

// ChangeFeedUseCase answers "what changed since checkpoint X" for a caller scope.
type ChangeFeedUseCase struct {
	opRepo  OperationRepository
	metrics MetricsRecorder
	now     func() time.Time
}

// NewChangeFeedUseCase creates a new ChangeFeedUseCase.
func NewChangeFeedUseCase(opRepo OperationRepository, metrics MetricsRecorder) *ChangeFeedUseCase {
	if metrics == nil {
		metrics = NopMetrics
	}
	return &ChangeFeedUseCase{
		opRepo:  opRepo,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (uc *ChangeFeedUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

// FeedInput is a plain or paginated feed request.
type FeedInput struct {
	Since  *time.Time
	Scope  domain.Scope
	Limit  int
	Offset int
}

// FeedResult is one page of a change feed.
type FeedResult struct {
	Operations []*domain.Operation
	Total      int
	Limit      int
	Offset     int
	HasMore    bool
}

// Changes returns rows modified strictly after Since, oldest first, capped at one page.
func (uc *ChangeFeedUseCase) Changes(ctx context.Context, input FeedInput) (*FeedResult, error) {
	if err := input.Scope.Validate(); err != nil {
		return nil, err
	}

	filter := domain.FeedFilter{
		Scope: input.Scope,
		Since: input.Since,
		Limit: domain.PlainFeedPageSize,
		Order: domain.FeedOrderAscending,
	}

	ops, err := uc.opRepo.ListChanges(ctx, filter)
	if err != nil {
		return nil, domain.WrapStorage("list changes", err)
	}

	uc.metrics.FeedServed("plain", len(ops))

	return &FeedResult{
		Operations: ops,
		Total:      len(ops),
		Limit:      filter.Limit,
		HasMore:    len(ops) == filter.Limit,
	}, nil
}

// Page returns one newest-first page with the total row count.
func (uc *ChangeFeedUseCase) Page(ctx context.Context, input FeedInput) (*FeedResult, error) {
	if err := input.Scope.Validate(); err != nil {
		return nil, err
	}

	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)
	filter := domain.FeedFilter{
		Scope:  input.Scope,
		Since:  input.Since,
		Limit:  limit,
		Offset: offset,
		Order:  domain.FeedOrderDescending,
	}

	return uc.paged(ctx, "page", filter)
}

func (uc *ChangeFeedUseCase) paged(ctx context.Context, kind string, filter domain.FeedFilter) (*FeedResult, error) {
	ops, err := uc.opRepo.ListChanges(ctx, filter)
	if err != nil {
		return nil, domain.WrapStorage("list changes", err)
	}

	total, err := uc.opRepo.CountChanges(ctx, filter)
	if err != nil {
		return nil, domain.WrapStorage("count changes", err)
	}

	uc.metrics.FeedServed(kind, len(ops))

	return &FeedResult{
		Operations: ops,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		HasMore:    filter.Offset+filter.Limit < total,
	}, nil
}

// SmartFeedInput tunes the prioritized feed.
type SmartFeedInput struct {
	Since           *time.Time
	ModifiedSince   *time.Time
	CreatedSince    *time.Time
	Strategy        domain.FilterStrategy
	Priority        domain.PriorityMode
	IncludeStatuses []domain.OperationStatus
	ExcludeStatuses []domain.OperationStatus
	Scope           domain.Scope
	ModifiedWindow  time.Duration
	MaxAgeDays      int
	Limit           int
	Offset          int
	OnlyModified    bool
}

// SmartFeedResult is a prioritized page plus hints for the client.
type SmartFeedResult struct {
	FeedResult
	Strategy        domain.FilterStrategy
	Stats           domain.FeedStats
	Recommendations []string
}

// Smart returns a prioritized page: pending rows first, then rows modified
// after creation, then by recency, restricted to the strategy's tiers.
func (uc *ChangeFeedUseCase) Smart(ctx context.Context, input SmartFeedInput) (*SmartFeedResult, error) {
	if err := input.Scope.Validate(); err != nil {
		return nil, err
	}

	filter, err := uc.smartFilter(input)
	if err != nil {
		return nil, err
	}

	page, err := uc.paged(ctx, "smart", filter)
	if err != nil {
		return nil, err
	}

	stats := domain.CountStatuses(page.Operations)
	return &SmartFeedResult{
		FeedResult:      *page,
		Strategy:        strategyOrDefault(input.Strategy),
		Stats:           stats,
		Recommendations: recommend(page, stats),
	}, nil
}

func strategyOrDefault(s domain.FilterStrategy) domain.FilterStrategy {
	if s == "" {
		return domain.FilterStrategySmart
	}
	return s
}

func (uc *ChangeFeedUseCase) smartFilter(input SmartFeedInput) (domain.FeedFilter, error) {
	now := uc.now()
	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)

	filter := domain.FeedFilter{
		Scope:  input.Scope,
		Since:  input.Since,
		Limit:  limit,
		Offset: offset,
		Order:  domain.FeedOrderPriority,
	}

	if filter.Since == nil {
		days := input.MaxAgeDays
		if days <= 0 {
			days = domain.DefaultFeedMaxAgeDays
		}
		floor := now.AddDate(0, 0, -days)
		filter.Since = &floor
	}

	pending := domain.FeedTier{Statuses: []domain.OperationStatus{domain.OperationStatusPending}}
	terminal := []domain.OperationStatus{domain.OperationStatusCompleted, domain.OperationStatusCancelled}

	switch strategyOrDefault(input.Strategy) {
	case domain.FilterStrategySmart:
		switch input.Priority {
		case domain.PriorityCritical:
			filter.Tiers = []domain.FeedTier{
				pending,
				{ModifiedAfter: ago(now, criticalModifiedWindow), ModifiedAfterCreation: true},
			}
		case domain.PriorityAll:
		case "", domain.PriorityBalanced:
			filter.Tiers = []domain.FeedTier{
				pending,
				{Statuses: terminal, ModifiedAfter: ago(now, balancedTerminalWindow)},
				{ModifiedAfter: ago(now, balancedModifiedWindow), ModifiedAfterCreation: true},
			}
		default:
			return filter, domain.NewFieldError("priority_mode", "unknown priority mode "+string(input.Priority))
		}

	case domain.FilterStrategyStatus:
		for _, s := range append(append([]domain.OperationStatus{}, input.IncludeStatuses...), input.ExcludeStatuses...) {
			if !s.IsValid() {
				return filter, domain.NewFieldError("statuses", "unknown status "+string(s))
			}
		}
		filter.IncludeStatuses = input.IncludeStatuses
		filter.ExcludeStatuses = input.ExcludeStatuses

	case domain.FilterStrategyTime:
		modifiedSince := input.ModifiedSince
		if modifiedSince == nil && input.CreatedSince == nil {
			modifiedSince = ago(now, balancedTerminalWindow)
		}
		filter.Tiers = []domain.FeedTier{{
			ModifiedAfter:         modifiedSince,
			CreatedAfter:          input.CreatedSince,
			ModifiedAfterCreation: input.OnlyModified,
		}}

	case domain.FilterStrategyHybrid:
		window := input.ModifiedWindow
		if window <= 0 {
			window = hybridModifiedWindow
		}
		modifiedSince := input.ModifiedSince
		if modifiedSince == nil {
			modifiedSince = ago(now, window)
		}
		filter.Tiers = []domain.FeedTier{
			pending,
			{ModifiedAfter: modifiedSince, ModifiedAfterCreation: true},
			{Statuses: terminal, ModifiedAfter: ago(now, hybridTerminalWindow)},
		}
		if input.CreatedSince != nil {
			filter.Tiers = append(filter.Tiers, domain.FeedTier{CreatedAfter: input.CreatedSince})
		}

	default:
		return filter, domain.NewFieldError("filter_strategy", "unknown strategy "+string(input.Strategy))
	}

	return filter, nil
}

func ago(now time.Time, d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func recommend(page *FeedResult, stats domain.FeedStats) []string {
	var out []string
	if len(page.Operations) == 0 {
		out = append(out, "no changes since checkpoint")
	}
	if stats.Pending > len(page.Operations)/2 && stats.Pending > 0 {
		out = append(out, "many pending operations: validate transfers before the next sync")
	}
	if page.HasMore {
		out = append(out, fmt.Sprintf("more rows available: continue with offset %d", page.Offset+page.Limit))
	}
	return out
}

// DeltaInput asks for changes classified against the ids the client holds.
type DeltaInput struct {
	Since    *time.Time
	Mode     domain.DeltaMode
	KnownIDs []int64
	Statuses []domain.OperationStatus
	Scope    domain.Scope
	Limit    int
	Offset   int
}

// DeltaResult separates rows new to the client from updates of rows it holds.
type DeltaResult struct {
	Since   *time.Time
	Mode    domain.DeltaMode
	New     []*domain.Operation
	Updated []*domain.Operation
	Hash    string
	Total   int
	HasMore bool
}

// Delta classifies changes as new (id unknown to the client) or updated
// (id known and modified after creation) and hashes the returned id set.
func (uc *ChangeFeedUseCase) Delta(ctx context.Context, input DeltaInput) (*DeltaResult, error) {
	if err := input.Scope.Validate(); err != nil {
		return nil, err
	}

	mode := input.Mode
	if mode == "" {
		mode = domain.DeltaModeDelta
	}
	if !mode.IsValid() {
		return nil, domain.NewFieldError("sync_mode", "unknown sync mode "+string(mode))
	}
	for _, s := range input.Statuses {
		if !s.IsValid() {
			return nil, domain.NewFieldError("status_filter", "unknown status "+string(s))
		}
	}

	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)
	base := domain.FeedFilter{
		Scope:           input.Scope,
		IncludeStatuses: input.Statuses,
		Limit:           limit,
		Offset:          offset,
		Order:           domain.FeedOrderDescending,
	}

	result := &DeltaResult{Since: input.Since, Mode: mode}

	if mode != domain.DeltaModeUpdatesOnly {
		newFilter := base
		newFilter.IDsNotIn = input.KnownIDs
		// A client holding nothing gets every change since the checkpoint.
		if mode == domain.DeltaModeFull || len(input.KnownIDs) == 0 {
			newFilter.Since = input.Since
		} else {
			newFilter.CreatedSince = input.Since
		}

		ops, err := uc.opRepo.ListChanges(ctx, newFilter)
		if err != nil {
			return nil, domain.WrapStorage("list new operations", err)
		}
		result.New = ops
	}

	if len(input.KnownIDs) > 0 {
		updFilter := base
		updFilter.IDsIn = input.KnownIDs
		updFilter.Since = input.Since
		updFilter.OnlyModified = mode != domain.DeltaModeFull

		ops, err := uc.opRepo.ListChanges(ctx, updFilter)
		if err != nil {
			return nil, domain.WrapStorage("list updated operations", err)
		}
		result.Updated = ops
	}

	result.Total = len(result.New) + len(result.Updated)
	result.HasMore = len(result.New) == limit || len(result.Updated) == limit
	result.Hash = DeltaHash(append(append([]*domain.Operation{}, result.New...), result.Updated...), input.Since)

	uc.metrics.FeedServed("delta", result.Total)

	return result, nil
}

// DeltaHash is the hex SHA-256 of the sorted ids joined by commas followed by the checkpoint.
func DeltaHash(ops []*domain.Operation, since *time.Time) string {
	ids := make([]int64, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, op.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	checkpoint := ""
	if since != nil {
		checkpoint = since.UTC().Format(time.RFC3339Nano)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, ",") + checkpoint))
	return hex.EncodeToString(sum[:])
}
