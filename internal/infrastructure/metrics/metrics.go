package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/possync/internal/domain"
)

const namespace = "possync"

// Metrics holds all Prometheus metrics. It implements usecase.MetricsRecorder.
type Metrics struct {
	// Sync protocol metrics
	FeedRequests        *prometheus.CounterVec
	FeedRows            *prometheus.HistogramVec
	UploadItems         *prometheus.CounterVec
	HandoffAttempts     *prometheus.CounterVec
	DeletionTransitions *prometheus.CounterVec
	Tombstones          prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Database metrics
	DBConnections *prometheus.GaugeVec
	TxRetries     *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		FeedRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_requests_total",
				Help:      "Change feed requests by kind",
			},
			[]string{"kind"},
		),
		FeedRows: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "feed_rows",
				Help:      "Rows returned per change feed page",
				Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000},
			},
			[]string{"kind"},
		),
		UploadItems: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_items_total",
				Help:      "Uploaded items by outcome",
			},
			[]string{"outcome"},
		),
		HandoffAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handoff_attempts_total",
				Help:      "Transfer handoff attempts by match strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		DeletionTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deletion_transitions_total",
				Help:      "Deletion workflow transitions by target status",
			},
			[]string{"status"},
		),
		Tombstones: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tombstones_reported_total",
			Help:      "Deleted business codes reported to clients",
		}),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),

		DBConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database pool connections by state",
			},
			[]string{"state"},
		),
		TxRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_retries_total",
				Help:      "Transactions retried after a transient conflict",
			},
			[]string{"reason"},
		),

		RateLimitHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}
}

// FeedServed records one feed page.
func (m *Metrics) FeedServed(kind string, rows int) {
	m.FeedRequests.WithLabelValues(kind).Inc()
	m.FeedRows.WithLabelValues(kind).Observe(float64(rows))
}

// UploadItem records the outcome of one uploaded item.
func (m *Metrics) UploadItem(outcome string) {
	m.UploadItems.WithLabelValues(outcome).Inc()
}

// HandoffAttempt records a handoff attempt.
func (m *Metrics) HandoffAttempt(strategy, outcome string) {
	m.HandoffAttempts.WithLabelValues(strategy, outcome).Inc()
}

// DeletionTransition records a workflow transition.
func (m *Metrics) DeletionTransition(to domain.DeletionStatus) {
	m.DeletionTransitions.WithLabelValues(string(to)).Inc()
}

// TombstonesFound records how many deleted codes a tombstone query reported.
func (m *Metrics) TombstonesFound(n int) {
	m.Tombstones.Add(float64(n))
}

// TxRetry counts one retried transaction.
func (m *Metrics) TxRetry(reason string) {
	m.TxRetries.WithLabelValues(reason).Inc()
}

// PoolStats is the subset of pgxpool.Stat the gauges read.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// ObservePool copies pool statistics into the connection gauges.
func (m *Metrics) ObservePool(s PoolStats) {
	m.DBConnections.WithLabelValues("acquired").Set(float64(s.AcquiredConns()))
	m.DBConnections.WithLabelValues("idle").Set(float64(s.IdleConns()))
	m.DBConnections.WithLabelValues("total").Set(float64(s.TotalConns()))
}
