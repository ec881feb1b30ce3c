// Package supportapi exposes the support triage operations over HTTP.
package supportapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/helpdesk/internal/assistant"
	"github.com/linnemanlabs/helpdesk/internal/contactlink"
	"github.com/linnemanlabs/helpdesk/internal/responder"
	"github.com/linnemanlabs/helpdesk/internal/retrieval"
	"github.com/linnemanlabs/helpdesk/internal/triage"
)

// Classifier classifies chat messages.
type Classifier interface {
	Classify(ctx context.Context, text string) *assistant.Classification
}

// PostTriager triages social posts and serves stored results.
type PostTriager interface {
	TriagePost(ctx context.Context, post triage.Post) (*triage.Result, error)
	GetByPostID(ctx context.Context, postID string) (*triage.Result, bool, error)
}

// LinkRedeemer redeems and looks up contact links.
type LinkRedeemer interface {
	Validate(ctx context.Context, token string) (*contactlink.Link, bool, error)
	Lookup(ctx context.Context, token string) (*contactlink.Link, error)
}

// Ingester embeds and indexes knowledge documents.
type Ingester interface {
	Ingest(ctx context.Context, docs []retrieval.Document) (int, error)
}

// Responder is the social auto-responder.
type Responder interface {
	Stats() responder.Stats
	FollowUp(ctx context.Context, postID, author string, days int) (string, error)
}

// Deps are the services behind the API. Ingester, Index and Responder are
// optional; their routes are not registered when nil.
type Deps struct {
	Classifier Classifier
	Triage     PostTriager
	Links      LinkRedeemer
	Ingester   Ingester
	Index      retrieval.Index
	Responder  Responder
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	deps   Deps
}

// New creates a new API handler.
func New(logger log.Logger, deps Deps) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if deps.Classifier == nil {
		panic(xerrors.New("classifier is required"))
	}
	if deps.Triage == nil {
		panic(xerrors.New("triage service is required"))
	}
	if deps.Links == nil {
		panic(xerrors.New("contact link issuer is required"))
	}
	return &API{logger: logger, deps: deps}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages/classify", a.handleClassify)

		r.Post("/posts/triage", a.handleTriagePost)
		r.Get("/posts/{id}", a.handleGetPost)

		r.Get("/contact-links/{token}", a.handleGetLink)
		r.Post("/contact-links/{token}/redeem", a.handleRedeemLink)

		if a.deps.Ingester != nil && a.deps.Index != nil {
			r.Post("/knowledge/documents", a.handleAddDocuments)
			r.Delete("/knowledge/documents", a.handleResetKnowledge)
			r.Get("/knowledge/stats", a.handleKnowledgeStats)
		}

		if a.deps.Responder != nil {
			r.Get("/responder/stats", a.handleResponderStats)
			r.Post("/responder/follow-ups", a.handleFollowUp)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}
