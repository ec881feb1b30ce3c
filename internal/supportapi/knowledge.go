package supportapi

import (
	"errors"
	"net/http"

	"github.com/linnemanlabs/helpdesk/internal/retrieval"
)

type addDocumentsRequest struct {
	Documents []retrieval.Document `json:"documents"`
}

func (a *API) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	var req addDocumentsRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents are required")
		return
	}

	n, err := a.deps.Ingester.Ingest(r.Context(), req.Documents)
	if errors.Is(err, retrieval.ErrInvalidDocument) || errors.Is(err, retrieval.ErrDimensionMismatch) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to ingest documents", "documents", len(req.Documents))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": n})
}

func (a *API) handleResetKnowledge(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Index.Reset(r.Context()); err != nil {
		a.logger.Error(r.Context(), err, "failed to reset knowledge index")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.logger.Info(r.Context(), "knowledge index reset")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleKnowledgeStats(w http.ResponseWriter, r *http.Request) {
	n, err := a.deps.Index.Len(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to count knowledge documents")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"documents": n})
}
