// Package metrics provides Prometheus instrumentation for the dataset
// engine: rows read through views, callback executions and latencies, and
// storage materializations. All collectors are registered once via promauto
// and are safe for concurrent use.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsRead counts rows resolved through a logical view, labeled by the
	// access path (row, batch, map, filter, export).
	RowsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasets_rows_read_total",
			Help: "Total rows read through logical dataset views",
		},
		[]string{"path"},
	)

	// CallbacksExecuted counts user callback invocations by operation and
	// outcome.
	CallbacksExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasets_callbacks_total",
			Help: "Total user callback invocations",
		},
		[]string{"operation", "status"},
	)

	// CallbackLatency tracks user callback wall time by operation.
	CallbackLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datasets_callback_duration_seconds",
			Help:    "User callback latency distribution",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		},
		[]string{"operation"},
	)

	// Materializations counts new storages written by transformations.
	Materializations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasets_materializations_total",
			Help: "Total storages materialized by transformations",
		},
		[]string{"operation"},
	)

	// ActiveWorkers gauges currently running map/filter workers.
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datasets_active_workers",
			Help: "Currently running transformation workers",
		},
	)
)

// Timer measures one callback execution.
type Timer struct {
	operation string
	start     time.Time
}

// NewTimer starts a timer for the given operation.
func NewTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	CallbackLatency.WithLabelValues(t.operation).Observe(elapsed.Seconds())
	return elapsed
}
