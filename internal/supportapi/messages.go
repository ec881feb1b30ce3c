package supportapi

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type classifyRequest struct {
	Text string `json:"text"`
}

func (a *API) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	c := a.deps.Classifier.Classify(r.Context(), req.Text)

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("helpdesk.intent", c.Intent.Category),
		attribute.String("helpdesk.sentiment", c.Sentiment.Label),
		attribute.Bool("helpdesk.escalate", c.Escalate),
	)
	writeJSON(w, http.StatusOK, c)
}
