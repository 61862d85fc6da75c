package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolstats",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Count of data store read operations.",
	}, []string{"backend", "operation", "status"})
	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poolstats",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of data store read operations.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"backend", "operation", "status"})
)

// Store tracks metrics for one data store backend.
type Store struct {
	backend string
}

// NewStore creates a Store metrics collector labelled with backend.
func NewStore(backend string) *Store {
	if backend == "" {
		backend = "unknown"
	}
	return &Store{backend: backend}
}

// Observe records duration and status of a store operation.
func (m *Store) Observe(operation string, err error, started time.Time) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}

	storeOperationsTotal.WithLabelValues(m.backend, operation, status).Inc()
	storeOperationDuration.WithLabelValues(m.backend, operation, status).Observe(time.Since(started).Seconds())
}
