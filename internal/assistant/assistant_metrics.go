package assistant

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for message classification.
type Metrics struct {
	ClassificationsTotal *prometheus.CounterVec
	EscalationsTotal     *prometheus.CounterVec
	ContextUsedTotal     prometheus.Counter
	FallbacksTotal       prometheus.Counter
	ClassifyDuration     prometheus.Histogram
	CompletionsTotal     *prometheus.CounterVec
	TokensUsed           *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
}

// NewMetrics registers and returns assistant metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClassificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_message_classifications_total",
			Help: "Classified chat messages by intent and sentiment.",
		}, []string{"intent", "sentiment"}),
		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_message_escalations_total",
			Help: "Messages handed to a human agent by reason.",
		}, []string{"reason"}),
		ContextUsedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_message_context_used_total",
			Help: "Messages answered with retrieved knowledge.",
		}),
		FallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_message_fallback_responses_total",
			Help: "Messages answered with a template response.",
		}),
		ClassifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "helpdesk_message_classify_duration_seconds",
			Help:    "Time to classify and answer a message.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_llm_completions_total",
			Help: "LLM completion calls by status.",
		}, []string{"status"}),
		TokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_llm_tokens_total",
			Help: "LLM tokens consumed by direction.",
		}, []string{"direction"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_escalation_notifications_total",
			Help: "Escalation notifications by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.ClassificationsTotal,
		m.EscalationsTotal,
		m.ContextUsedTotal,
		m.FallbacksTotal,
		m.ClassifyDuration,
		m.CompletionsTotal,
		m.TokensUsed,
		m.NotificationsTotal,
	)

	return m
}

// Hooks returns Hooks that increment the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnClassify: func(c *Classification, d time.Duration) {
			m.ClassificationsTotal.WithLabelValues(c.Intent.Category, c.Sentiment.Label).Inc()
			m.ClassifyDuration.Observe(d.Seconds())
			if c.Escalate {
				m.EscalationsTotal.WithLabelValues(reasonLabel(c.EscalationReason)).Inc()
			}
			if c.ContextUsed {
				m.ContextUsedTotal.Inc()
			}
			if !c.Generated {
				m.FallbacksTotal.Inc()
			}
		},
		OnCompletion: func(c *Completion, err error) {
			if err != nil {
				m.CompletionsTotal.WithLabelValues("error").Inc()
				return
			}
			m.CompletionsTotal.WithLabelValues("success").Inc()
			m.TokensUsed.WithLabelValues("input").Add(float64(c.InputTokens))
			m.TokensUsed.WithLabelValues("output").Add(float64(c.OutputTokens))
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

// reasonLabel drops the matched term from keyword reasons to bound label
// cardinality.
func reasonLabel(reason string) string {
	kind, _, _ := strings.Cut(reason, ":")
	return kind
}
