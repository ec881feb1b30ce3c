package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal       *prometheus.CounterVec
	ComplaintScore     prometheus.Histogram
	ComplaintsTotal    *prometheus.CounterVec
	LinksIssuedTotal   prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_post_triages_total",
			Help: "Total post triages by outcome.",
		}, []string{"outcome"}),
		ComplaintScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "helpdesk_post_complaint_score",
			Help:    "Complaint score of triaged posts.",
			Buckets: prometheus.LinearBuckets(0, 1, 13), // 0 .. 12
		}),
		ComplaintsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_complaints_total",
			Help: "Detected complaints by type and urgency.",
		}, []string{"type", "urgency"}),
		LinksIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_contact_links_issued_total",
			Help: "Total contact links issued for complaints.",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_complaint_notifications_total",
			Help: "Urgent complaint notifications by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.ComplaintScore,
		m.ComplaintsTotal,
		m.LinksIssuedTotal,
		m.NotificationsTotal,
	)

	return m
}

// Hooks returns Hooks that increment the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnTriage: func(outcome string, r *Result) {
			m.TriagesTotal.WithLabelValues(outcome).Inc()
			if r == nil || outcome == OutcomeDuplicate {
				return
			}
			m.ComplaintScore.Observe(r.Score)
			if r.IsComplaint {
				m.ComplaintsTotal.WithLabelValues(r.Type, r.Urgency).Inc()
			}
		},
		OnLinkIssued: func() {
			m.LinksIssuedTotal.Inc()
		},
		OnNotify: func(err error) {
			status := "success"
			if err != nil {
				status = "error"
			}
			m.NotificationsTotal.WithLabelValues(status).Inc()
		},
	}
}
