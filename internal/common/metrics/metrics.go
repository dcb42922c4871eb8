// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntakeBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_batches_total",
			Help: "Total number of intake batches by outcome",
		},
		[]string{"outcome"},
	)

	IntakeItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_items_total",
			Help: "Total number of intake items by result",
		},
		[]string{"result"},
	)

	IntakeItemErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_item_errors_total",
			Help: "Skipped intake items by error code",
		},
		[]string{"code"},
	)

	IntakeBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_batch_duration_seconds",
			Help:    "Duration of batch processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	IntakeChunksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_chunks_active",
			Help: "Number of chunks currently being processed",
		},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_rate_limit_decisions_total",
			Help: "Rate limiter decisions by result",
		},
		[]string{"result"},
	)

	RelayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_relay_requests_total",
			Help: "Search relay calls by method and result code",
		},
		[]string{"method", "code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
