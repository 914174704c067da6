package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync runs
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portpro_sync_runs_total",
			Help: "Total number of PortPro sync runs",
		},
		[]string{"trigger", "result"}, // trigger: manual, cron, poller; result: ok, failed, conflict
	)

	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portpro_sync_run_duration_seconds",
			Help:    "Duration of PortPro sync runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"trigger"},
	)

	SyncRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portpro_sync_records_total",
			Help: "Loads processed by the sync, by outcome",
		},
		[]string{"outcome"}, // synced, updated, unchanged, skipped, error
	)

	// Upstream
	PortProRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portpro_request_duration_seconds",
			Help:    "Duration of PortPro API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	PortProRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portpro_rate_limited_total",
			Help: "PortPro requests refused by the local or upstream rate limit",
		},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected, canceled
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Broker
	BrokerPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_publish_errors_total",
			Help: "Messages that could not be published",
		},
		[]string{"topic"},
	)

	BrokerMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_consumed_total",
			Help: "Messages handled by consumers, by result",
		},
		[]string{"topic", "result"}, // result: ok, error, malformed
	)

	BrokerMessageAge = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_message_age_seconds",
			Help:    "Time between publish and successful handling of a message",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300},
		},
		[]string{"topic"},
	)

	BrokerCommitErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_commit_errors_total",
			Help: "Offsets that could not be committed",
		},
		[]string{"topic"},
	)

	// Tracking cache
	TrackingCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_cache_requests_total",
			Help: "Tracking cache lookups, by result",
		},
		[]string{"kind", "result"}, // kind: load, events; result: hit, miss
	)
)
