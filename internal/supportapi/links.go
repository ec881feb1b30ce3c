package supportapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/helpdesk/internal/contactlink"
)

type redeemResponse struct {
	Valid bool              `json:"valid"`
	Link  *contactlink.Link `json:"link,omitempty"`
}

func (a *API) handleRedeemLink(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	link, ok, err := a.deps.Links.Validate(r.Context(), token)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to redeem contact link")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ok {
		a.logger.Info(r.Context(), "contact link redeemed", "post_id", link.PostID, "author", link.Author)
	}
	writeJSON(w, http.StatusOK, redeemResponse{Valid: ok, Link: link})
}

func (a *API) handleGetLink(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	link, err := a.deps.Links.Lookup(r.Context(), token)
	if errors.Is(err, contactlink.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get contact link")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, link)
}
