package postgres

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueryMetrics records query durations on a Prometheus histogram.
type QueryMetrics struct {
	Duration *prometheus.HistogramVec
}

// NewQueryMetrics registers and returns query metrics on the given registerer.
func NewQueryMetrics(reg prometheus.Registerer) *QueryMetrics {
	m := &QueryMetrics{
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_db_query_duration_seconds",
			Help:    "Duration of individual database queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "outcome"}),
	}
	reg.MustRegister(m.Duration)
	return m
}

// ObserveQuery implements QueryObserver.
func (m *QueryMetrics) ObserveQuery(_ context.Context, method, route, outcome string, dur time.Duration) {
	m.Duration.WithLabelValues(method, route, outcome).Observe(dur.Seconds())
}
