package domain

import "time"

// FeedOrder selects how a change feed is sorted.
type FeedOrder int

const (
	// FeedOrderAscending sorts by last modification, oldest first.
	FeedOrderAscending FeedOrder = iota
	// FeedOrderDescending sorts by last modification, newest first.
	FeedOrderDescending
	// FeedOrderPriority sorts pending first, then rows modified after creation, then by recency.
	FeedOrderPriority
)

// FeedTier is a conjunction of predicates. A row matches a filter when it
// matches any of the filter's tiers.
type FeedTier struct {
	ModifiedAfter         *time.Time
	CreatedAfter          *time.Time
	Statuses              []OperationStatus
	ModifiedAfterCreation bool
}

// FeedFilter describes one change feed query.
type FeedFilter struct {
	Since           *time.Time
	CreatedSince    *time.Time
	Tiers           []FeedTier
	IncludeStatuses []OperationStatus
	ExcludeStatuses []OperationStatus
	IDsIn           []int64
	IDsNotIn        []int64
	Scope           Scope
	Limit           int
	Offset          int
	Order           FeedOrder
	OnlyModified    bool
}

// FilterStrategy names a smart filter flavour.
type FilterStrategy string

const (
	FilterStrategySmart  FilterStrategy = "smart"
	FilterStrategyStatus FilterStrategy = "status"
	FilterStrategyTime   FilterStrategy = "time"
	FilterStrategyHybrid FilterStrategy = "hybrid"
)

// IsValid checks if the strategy is known.
func (s FilterStrategy) IsValid() bool {
	switch s {
	case FilterStrategySmart, FilterStrategyStatus, FilterStrategyTime, FilterStrategyHybrid:
		return true
	}
	return false
}

// PriorityMode tunes the smart strategy.
type PriorityMode string

const (
	PriorityCritical PriorityMode = "critical"
	PriorityBalanced PriorityMode = "balanced"
	PriorityAll      PriorityMode = "all"
)

// DeltaMode selects which subsets a delta sync returns.
type DeltaMode string

const (
	DeltaModeDelta       DeltaMode = "delta"
	DeltaModeUpdatesOnly DeltaMode = "updates_only"
	DeltaModeFull        DeltaMode = "full"
)

// IsValid checks if the mode is known.
func (m DeltaMode) IsValid() bool {
	switch m {
	case DeltaModeDelta, DeltaModeUpdatesOnly, DeltaModeFull:
		return true
	}
	return false
}

// FeedStats counts the statuses in one page.
type FeedStats struct {
	Pending   int
	Validated int
	Completed int
	Cancelled int
}

// CountStatuses tallies ops by status.
func CountStatuses(ops []*Operation) FeedStats {
	var s FeedStats
	for _, op := range ops {
		switch op.Status {
		case OperationStatusPending:
			s.Pending++
		case OperationStatusValidated:
			s.Validated++
		case OperationStatusCompleted:
			s.Completed++
		case OperationStatusCancelled:
			s.Cancelled++
		}
	}
	return s
}
