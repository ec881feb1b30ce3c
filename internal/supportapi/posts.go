package supportapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/helpdesk/internal/triage"
)

func (a *API) handleTriagePost(w http.ResponseWriter, r *http.Request) {
	var post triage.Post
	if !decode(w, r, &post) {
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("helpdesk.post.id", post.ID))

	result, err := a.deps.Triage.TriagePost(r.Context(), post)
	if errors.Is(err, triage.ErrInvalidPost) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to triage post", "post_id", post.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span.SetAttributes(
		attribute.Bool("helpdesk.complaint", result.IsComplaint),
		attribute.String("helpdesk.urgency", result.Urgency),
	)
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("helpdesk.post.id", id))

	result, ok, err := a.deps.Triage.GetByPostID(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get triage result", "post_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
