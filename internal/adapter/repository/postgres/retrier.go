package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// Transient PostgreSQL conditions worth another attempt. Upload batches,
// handoffs and workflow steps lock the same operation rows, so two devices
// pushing the same business code can trip any of them.
var retryableCodes = map[string]string{
	"40P01": "deadlock",
	"40001": "serialization",
	"55P03": "lock_not_available",
}

// Retrier implements usecase.Retrier with exponential backoff.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
	onRetry         func(reason string)
}

// NewRetrier creates a retrier allowing three extra attempts within ten seconds.
func NewRetrier(logger zerolog.Logger) *Retrier {
	return &Retrier{
		maxRetries:      3,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     1 * time.Second,
		maxElapsedTime:  10 * time.Second,
		logger:          logger.With().Str("component", "retrier").Logger(),
	}
}

// OnRetry registers fn to be called with the failure reason before each retry.
func (r *Retrier) OnRetry(fn func(reason string)) *Retrier {
	r.onRetry = fn
	return r
}

// Retry runs unit until it succeeds, fails permanently or the budget runs out.
// The last error is returned unchanged so callers can classify it.
func (r *Retrier) Retry(ctx context.Context, unit func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	attempt := 0

	return backoff.Retry(func() error {
		err := unit()
		if err == nil {
			return nil
		}

		reason, ok := retryReason(err)
		if !ok {
			return backoff.Permanent(err)
		}

		attempt++
		if attempt > r.maxRetries {
			r.logger.Error().Err(err).Str("reason", reason).Int("attempts", attempt).
				Msg("giving up on transient storage conflict")
			return backoff.Permanent(err)
		}

		if r.onRetry != nil {
			r.onRetry(reason)
		}
		r.logger.Warn().
			Err(err).
			Str("reason", reason).
			Int("retry", attempt).
			Msg("transient storage conflict, retrying")

		return err
	}, backoff.WithContext(b, ctx))
}

// retryReason reports whether err, possibly wrapped by a use case, carries a
// transient PostgreSQL error and names it.
func retryReason(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	reason, ok := retryableCodes[pgErr.Code]
	return reason, ok
}
