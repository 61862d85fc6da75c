package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pooledbismuth/poolstats/internal/stats"
)

var (
	reportRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poolstats",
		Subsystem: "reporter",
		Name:      "reports_total",
		Help:      "Count of reports built, by kind and outcome.",
	}, []string{"kind", "outcome", "cache"})
	reportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "poolstats",
		Subsystem: "reporter",
		Name:      "report_duration_seconds",
		Help:      "Duration of report generation.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"kind", "outcome"})
)

// Reporter tracks metrics for report generation.
type Reporter struct{}

// NewReporter creates a Reporter metrics collector.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Observe records the outcome of a report. cached is true when the result
// came from the cache.
func (m *Reporter) Observe(kind string, err error, cached bool, started time.Time) {
	if m == nil {
		return
	}
	outcome := Outcome(err)
	cache := "miss"
	if cached {
		cache = "hit"
	}

	reportRequestsTotal.WithLabelValues(kind, outcome, cache).Inc()
	reportDuration.WithLabelValues(kind, outcome).Observe(time.Since(started).Seconds())
}

// Outcome maps a report error to a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, stats.ErrNotFound):
		return "not_found"
	case errors.Is(err, stats.ErrNoData):
		return "no_data"
	case errors.Is(err, stats.ErrInsufficientData):
		return "insufficient_data"
	default:
		return "error"
	}
}
