package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// UploadTransactionTimeout bounds one upload batch.
	UploadTransactionTimeout = 60 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// ReferenceCacheTTL is how long natural-key lookups stay cached
	ReferenceCacheTTL = 10 * time.Minute

	// Smart filter windows
	criticalModifiedWindow = 2 * time.Hour
	balancedModifiedWindow = 6 * time.Hour
	balancedTerminalWindow = 24 * time.Hour
	hybridModifiedWindow   = 4 * time.Hour
	hybridTerminalWindow   = 12 * time.Hour

	// consistencyScanLimit caps each consistency query.
	consistencyScanLimit = 500
)
