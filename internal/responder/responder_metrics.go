package responder

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the responder.
type Metrics struct {
	PostsTotal     *prometheus.CounterVec
	ThrottledTotal *prometheus.CounterVec
	RepliesTotal   *prometheus.CounterVec
	PollsTotal     *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
}

// NewMetrics registers and returns responder metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PostsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_responder_posts_total",
			Help: "Posts handled by the responder, by outcome.",
		}, []string{"outcome"}),
		ThrottledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_responder_throttled_total",
			Help: "Replies refused by the throttle, by reason.",
		}, []string{"reason"}),
		RepliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_responder_replies_total",
			Help: "Reply delivery attempts by status.",
		}, []string{"status"}),
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_responder_polls_total",
			Help: "Source polls by source and status.",
		}, []string{"source", "status"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "helpdesk_responder_poll_cycle_duration_seconds",
			Help:    "Duration of one poll cycle over all sources.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	reg.MustRegister(
		m.PostsTotal,
		m.ThrottledTotal,
		m.RepliesTotal,
		m.PollsTotal,
		m.CycleDuration,
	)

	return m
}

// Hooks returns Hooks that increment the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnOutcome: func(o Outcome) {
			m.PostsTotal.WithLabelValues(string(o)).Inc()
		},
		OnThrottle: func(r Rejection) {
			m.ThrottledTotal.WithLabelValues(string(r)).Inc()
		},
		OnReply: func(err error) {
			m.RepliesTotal.WithLabelValues(status(err)).Inc()
		},
		OnPoll: func(source string, err error) {
			m.PollsTotal.WithLabelValues(source, status(err)).Inc()
		},
		OnCycle: func(d time.Duration) {
			m.CycleDuration.Observe(d.Seconds())
		},
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
