package supportapi

import (
	"errors"
	"net/http"

	"github.com/linnemanlabs/helpdesk/internal/responder"
)

func (a *API) handleResponderStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Responder.Stats())
}

type followUpRequest struct {
	PostID string `json:"post_id"`
	Author string `json:"author"`
	Days   int    `json:"days"`
}

func (a *API) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	var req followUpRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PostID == "" || req.Author == "" {
		writeError(w, http.StatusBadRequest, "post_id and author are required")
		return
	}

	id, err := a.deps.Responder.FollowUp(r.Context(), req.PostID, req.Author, req.Days)
	if errors.Is(err, responder.ErrThrottled) {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to send follow-up", "post_id", req.PostID)
		writeError(w, http.StatusBadGateway, "reply delivery failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply_id": id})
}
