package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/helpdesk/internal/complaint"
	"github.com/linnemanlabs/helpdesk/internal/contactlink"
)

// ErrInvalidPost is returned for posts without an ID.
var ErrInvalidPost = errors.New("invalid post")

// Outcomes reported through Hooks.
const (
	OutcomeComplaint    = "complaint"
	OutcomeNotComplaint = "not_complaint"
	OutcomeDuplicate    = "duplicate"
	OutcomeError        = "error"
)

// Detector grades post content.
type Detector interface {
	Detect(text string) complaint.Verdict
}

// LinkIssuer issues contact links for complaints.
type LinkIssuer interface {
	Issue(ctx context.Context, author, postID string, c contactlink.Context) (*contactlink.Link, error)
}

// Notifier is told about urgent complaints.
type Notifier interface {
	Send(ctx context.Context, result *Result) error
}

// Hooks lets callers observe the service. Nil fields are skipped.
type Hooks struct {
	OnTriage     func(outcome string, r *Result)
	OnLinkIssued func()
	OnNotify     func(err error)
}

// Service is the business boundary for post triage.
type Service struct {
	store    Store
	detector Detector
	links    LinkIssuer
	notifier Notifier
	logger   log.Logger
	hooks    Hooks
	flight   singleflight.Group
	now      func() time.Time
}

// NewService creates a triage service. notifier may be nil.
func NewService(store Store, detector Detector, links LinkIssuer, notifier Notifier, logger log.Logger, hooks Hooks) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		detector: detector,
		links:    links,
		notifier: notifier,
		logger:   logger,
		hooks:    hooks,
		now:      time.Now,
	}
}

// TriagePost detects whether post is a complaint and, if so, issues a
// contact link. A post that was already triaged returns the stored result
// unchanged. Concurrent calls for the same post share one evaluation.
//
// When link issuance or persistence fails the error is returned and nothing
// is stored, so the post can be retried.
func (s *Service) TriagePost(ctx context.Context, post Post) (*Result, error) {
	if post.ID == "" {
		return nil, fmt.Errorf("%w: missing post id", ErrInvalidPost)
	}

	v, err, _ := s.flight.Do(post.ID, func() (any, error) {
		return s.triage(ctx, post)
	})
	if err != nil {
		s.report(OutcomeError, nil)
		return nil, err
	}
	return v.(*Result).clone(), nil
}

// Get retrieves a triage result by ID.
func (s *Service) Get(ctx context.Context, id string) (*Result, bool, error) {
	return s.store.Get(ctx, id)
}

// GetByPostID retrieves the triage result of a post.
func (s *Service) GetByPostID(ctx context.Context, postID string) (*Result, bool, error) {
	return s.store.GetByPostID(ctx, postID)
}

func (s *Service) triage(ctx context.Context, post Post) (*Result, error) {
	if existing, ok, err := s.store.GetByPostID(ctx, post.ID); err != nil {
		return nil, fmt.Errorf("lookup post %s: %w", post.ID, err)
	} else if ok {
		s.report(OutcomeDuplicate, existing)
		return existing, nil
	}

	v := s.detector.Detect(post.Content)
	r := &Result{
		ID:          ulid.Make().String(),
		PostID:      post.ID,
		Author:      post.Author,
		Content:     post.Content,
		URL:         post.URL,
		PostedAt:    post.CreatedAt,
		IsComplaint: v.IsComplaint,
		Score:       v.Score,
		Confidence:  v.Confidence,
		Urgency:     v.Urgency,
		Type:        v.Type,
		Tone:        v.Tone,
		Keywords:    v.Keywords,
		Patterns:    v.Patterns,
		CreatedAt:   s.now().UTC(),
	}

	L := s.logger.With("post_id", post.ID, "author", post.Author)

	if r.IsComplaint {
		link, err := s.links.Issue(ctx, post.Author, post.ID, contactlink.Context{
			Content:       post.Content,
			ComplaintType: v.Type,
			Urgency:       v.Urgency,
		})
		if err != nil {
			return nil, fmt.Errorf("issue contact link for post %s: %w", post.ID, err)
		}
		r.ContactLink = &LinkRef{Token: link.Token, URL: link.URL, ExpiresAt: link.ExpiresAt}
		if s.hooks.OnLinkIssued != nil {
			s.hooks.OnLinkIssued()
		}
	}

	if err := s.store.Put(ctx, r); err != nil {
		return nil, fmt.Errorf("store triage of post %s: %w", post.ID, err)
	}

	outcome := OutcomeNotComplaint
	if r.IsComplaint {
		outcome = OutcomeComplaint
		L.Info(ctx, "complaint detected",
			"triage_id", r.ID,
			"score", r.Score,
			"urgency", r.Urgency,
			"type", r.Type,
		)
	}
	s.report(outcome, r)

	if r.Urgent() && s.notifier != nil {
		go s.notify(context.WithoutCancel(ctx), r.clone())
	}
	return r, nil
}

func (s *Service) notify(ctx context.Context, r *Result) {
	err := s.notifier.Send(ctx, r)
	if err != nil {
		s.logger.Error(ctx, err, "urgent complaint notification failed", "triage_id", r.ID, "post_id", r.PostID)
	}
	if s.hooks.OnNotify != nil {
		s.hooks.OnNotify(err)
	}
}

func (s *Service) report(outcome string, r *Result) {
	if s.hooks.OnTriage != nil {
		s.hooks.OnTriage(outcome, r)
	}
}
