// Package responder answers social-media complaints. It polls the sources
// for new posts, triages them, and posts a templated reply carrying a
// contact link. Replies are throttled per channel and every post is
// handled at most once.
package responder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/helpdesk/internal/triage"
)

// Outcome is the result of handling one post.
type Outcome string

const (
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeStale            Outcome = "stale"
	OutcomeIrrelevant       Outcome = "irrelevant"
	OutcomeNotComplaint     Outcome = "not_complaint"
	OutcomeTriaged          Outcome = "triaged"
	OutcomeThrottled        Outcome = "throttled"
	OutcomeReplied          Outcome = "replied"
	OutcomeFailed           Outcome = "failed"
	OutcomeAbandoned        Outcome = "abandoned"
)

// ErrThrottled is returned by FollowUp when the channel has no free slot.
var ErrThrottled = errors.New("reply throttled")

// Triager classifies a post and issues its contact link.
type Triager interface {
	TriagePost(ctx context.Context, post triage.Post) (*triage.Result, error)
}

// ReplyPoster publishes a reply to a post and returns the reply ID.
type ReplyPoster interface {
	PostReply(ctx context.Context, inReplyToID, text string) (string, error)
}

// Source lists candidate posts.
type Source interface {
	HashtagTimeline(ctx context.Context, tag string, limit int) ([]triage.Post, error)
	Mentions(ctx context.Context, limit int) ([]triage.Post, error)
}

// Config holds responder settings.
type Config struct {
	Channel      string
	Hashtags     []string
	Keywords     []string
	Mentions     bool
	BatchLimit   int
	PollInterval time.Duration
	MaxAge       time.Duration
	ReplyTimeout time.Duration
	MaxRetries   int
	// ContactURL is used when a complaint carries no contact link.
	ContactURL string
	// TriageOnly disables replies; complaints are triaged and marked.
	TriageOnly bool
}

// DefaultConfig returns the settings used for Free Mobile monitoring.
func DefaultConfig() Config {
	return Config{
		Channel:  "mastodon",
		Hashtags: []string{"Free", "FreeMobile", "SAVFree"},
		Keywords: []string{
			"free mobile", "freemobile", "free-mobile",
			"sav free", "support free", "aide free", "problème free",
			"facture free", "forfait free", "résiliation free",
		},
		Mentions:     true,
		BatchLimit:   20,
		PollInterval: 5 * time.Second,
		MaxAge:       24 * time.Hour,
		ReplyTimeout: 30 * time.Second,
		MaxRetries:   3,
		ContactURL:   "https://mobile.free.fr/assistance/contact.html",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Channel == "" {
		c.Channel = d.Channel
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = d.BatchLimit
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = d.ReplyTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.ContactURL == "" {
		c.ContactURL = d.ContactURL
	}
	return c
}

// Hooks lets callers observe the responder. Nil fields are skipped.
type Hooks struct {
	OnOutcome  func(o Outcome)
	OnThrottle func(r Rejection)
	OnReply    func(err error)
	OnPoll     func(source string, err error)
	OnCycle    func(d time.Duration)
}

// Deps are the collaborators of a Responder. Source is only needed by Run.
type Deps struct {
	Triager   Triager
	Poster    ReplyPoster
	Source    Source
	Throttle  *Throttle
	Processed ProcessedSet
	Logger    log.Logger
	Hooks     Hooks
}

const (
	maxHistory  = 1000
	trimHistory = 500
)

// HistoryEntry records one sent reply.
type HistoryEntry struct {
	ID            string    `json:"id"`
	PostID        string    `json:"post_id"`
	Author        string    `json:"author"`
	Excerpt       string    `json:"excerpt"`
	PostURL       string    `json:"post_url,omitempty"`
	ReplyID       string    `json:"reply_id"`
	LinkToken     string    `json:"link_token,omitempty"`
	ComplaintType string    `json:"complaint_type"`
	Urgency       string    `json:"urgency"`
	FollowUp      bool      `json:"follow_up,omitempty"`
	SentAt        time.Time `json:"sent_at"`
}

// Responder handles posts and runs the poll loop.
type Responder struct {
	cfg       Config
	triager   Triager
	poster    ReplyPoster
	source    Source
	throttle  *Throttle
	processed ProcessedSet
	logger    log.Logger
	hooks     Hooks
	now       func() time.Time

	mu      sync.Mutex
	retries map[string]int
	history []HistoryEntry

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	running  atomic.Bool
}

// New creates a Responder. Nil Throttle and Processed get in-memory
// defaults.
func New(deps Deps, cfg Config) *Responder {
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	if deps.Throttle == nil {
		deps.Throttle = NewThrottle(0, 0, DefaultMinDelay)
	}
	if deps.Processed == nil {
		deps.Processed = NewMemorySet(0)
	}
	return &Responder{
		cfg:       cfg.withDefaults(),
		triager:   deps.Triager,
		poster:    deps.Poster,
		source:    deps.Source,
		throttle:  deps.Throttle,
		processed: deps.Processed,
		logger:    deps.Logger,
		hooks:     deps.Hooks,
		now:       time.Now,
		retries:   make(map[string]int),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Handle runs one post through dedup, filtering, triage, throttling and
// reply delivery. It never returns an error; failures are logged and
// counted against the post's retry budget.
func (r *Responder) Handle(ctx context.Context, post triage.Post) Outcome {
	o := r.handle(ctx, post)
	if r.hooks.OnOutcome != nil {
		r.hooks.OnOutcome(o)
	}
	return o
}

func (r *Responder) handle(ctx context.Context, post triage.Post) Outcome {
	L := r.logger.With("post_id", post.ID, "author", post.Author)

	seen, err := r.processed.Contains(ctx, post.ID)
	if err != nil {
		return r.fail(ctx, L, post.ID, fmt.Errorf("check processed: %w", err))
	}
	if seen {
		return OutcomeAlreadyProcessed
	}

	now := r.now()
	if post.CreatedAt.IsZero() || now.Sub(post.CreatedAt) >= r.cfg.MaxAge {
		return r.finish(ctx, L, post.ID, OutcomeStale)
	}
	if !r.Relevant(post.Content) {
		return r.finish(ctx, L, post.ID, OutcomeIrrelevant)
	}

	res, err := r.triager.TriagePost(ctx, post)
	if err != nil {
		return r.fail(ctx, L, post.ID, fmt.Errorf("triage: %w", err))
	}
	if !res.IsComplaint {
		return r.finish(ctx, L, post.ID, OutcomeNotComplaint)
	}
	if r.cfg.TriageOnly {
		return r.finish(ctx, L, post.ID, OutcomeTriaged)
	}

	resv, rej := r.throttle.Acquire(r.cfg.Channel, now)
	if rej != RejectNone {
		if r.hooks.OnThrottle != nil {
			r.hooks.OnThrottle(rej)
		}
		L.Info(ctx, "reply throttled", "reason", string(rej))
		return OutcomeThrottled
	}

	contactURL, token := r.cfg.ContactURL, ""
	if res.ContactLink != nil {
		contactURL, token = res.ContactLink.URL, res.ContactLink.Token
	}
	text := Reply(post.Author, res.Type, res.Urgency, contactURL)

	replyID, err := r.post(ctx, post.ID, text)
	if err != nil {
		resv.Cancel()
		return r.fail(ctx, L, post.ID, fmt.Errorf("post reply: %w", err))
	}

	r.record(HistoryEntry{
		PostID:        post.ID,
		Author:        post.Author,
		Excerpt:       excerpt(post.Content),
		PostURL:       post.URL,
		ReplyID:       replyID,
		LinkToken:     token,
		ComplaintType: res.Type,
		Urgency:       res.Urgency,
		SentAt:        now,
	})
	L.Info(ctx, "reply sent", "reply_id", replyID, "type", res.Type, "urgency", res.Urgency)
	return r.finish(ctx, L, post.ID, OutcomeReplied)
}

// FollowUp sends a follow-up reply to a post answered earlier. It shares
// the channel throttle with first replies.
func (r *Responder) FollowUp(ctx context.Context, postID, author string, days int) (string, error) {
	resv, rej := r.throttle.Acquire(r.cfg.Channel, r.now())
	if rej != RejectNone {
		if r.hooks.OnThrottle != nil {
			r.hooks.OnThrottle(rej)
		}
		return "", fmt.Errorf("%w: %s", ErrThrottled, rej)
	}
	replyID, err := r.post(ctx, postID, FollowUp(author, days))
	if err != nil {
		resv.Cancel()
		return "", err
	}
	r.record(HistoryEntry{
		PostID:   postID,
		Author:   author,
		ReplyID:  replyID,
		FollowUp: true,
		SentAt:   r.now(),
	})
	return replyID, nil
}

func (r *Responder) post(ctx context.Context, postID, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReplyTimeout)
	defer cancel()
	id, err := r.poster.PostReply(ctx, postID, text)
	if r.hooks.OnReply != nil {
		r.hooks.OnReply(err)
	}
	return id, err
}

// Relevant reports whether content mentions the operator by keyword or by
// one of the monitored hashtags.
func (r *Responder) Relevant(content string) bool {
	c := strings.ToLower(content)
	for _, k := range r.cfg.Keywords {
		if k != "" && strings.Contains(c, strings.ToLower(k)) {
			return true
		}
	}
	for _, h := range r.cfg.Hashtags {
		h = strings.TrimPrefix(strings.TrimSpace(h), "#")
		if h != "" && strings.Contains(c, "#"+strings.ToLower(h)) {
			return true
		}
	}
	return false
}

// finish marks the post processed and clears its retry count.
func (r *Responder) finish(ctx context.Context, L log.Logger, postID string, o Outcome) Outcome {
	if err := r.processed.Add(ctx, postID); err != nil {
		L.Error(ctx, err, "mark post processed failed")
	}
	r.mu.Lock()
	delete(r.retries, postID)
	r.mu.Unlock()
	return o
}

// fail counts a retry, abandoning the post once the budget is spent.
func (r *Responder) fail(ctx context.Context, L log.Logger, postID string, err error) Outcome {
	r.mu.Lock()
	r.retries[postID]++
	n := r.retries[postID]
	r.mu.Unlock()

	if n >= r.cfg.MaxRetries {
		L.Error(ctx, err, "post abandoned", "attempts", n)
		return r.finish(ctx, L, postID, OutcomeAbandoned)
	}
	L.Warn(ctx, "post handling failed, will retry", "attempt", n, "error", err)
	return OutcomeFailed
}

func (r *Responder) record(e HistoryEntry) {
	e.ID = ulid.Make().String()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, e)
	if len(r.history) > maxHistory {
		r.history = slices.Clone(r.history[len(r.history)-trimHistory:])
	}
}

func excerpt(s string) string {
	const n = 100
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// Run polls the sources every PollInterval until ctx is done or Stop is
// called. Hashtags are polled before mentions.
func (r *Responder) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("responder: no source configured")
	}
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("responder: already running")
	}
	defer close(r.done)

	r.logger.Info(ctx, "responder started",
		"hashtags", r.cfg.Hashtags,
		"mentions", r.cfg.Mentions,
		"interval", r.cfg.PollInterval.String(),
	)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		r.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			r.logger.Info(ctx, "responder stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends the poll loop and waits for the current work unit to finish.
func (r *Responder) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	if r.running.Load() {
		<-r.done
	}
}

func (r *Responder) stopped(ctx context.Context) bool {
	select {
	case <-r.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (r *Responder) poll(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r.hooks.OnCycle != nil {
			r.hooks.OnCycle(time.Since(start))
		}
	}()

	for _, tag := range r.cfg.Hashtags {
		if r.stopped(ctx) {
			return
		}
		posts, err := r.source.HashtagTimeline(ctx, tag, r.cfg.BatchLimit)
		r.polled(ctx, "hashtag", err, "tag", tag)
		if err != nil {
			continue
		}
		if !r.handleAll(ctx, posts) {
			return
		}
	}

	if !r.cfg.Mentions || r.stopped(ctx) {
		return
	}
	posts, err := r.source.Mentions(ctx, r.cfg.BatchLimit)
	r.polled(ctx, "mentions", err)
	if err == nil {
		r.handleAll(ctx, posts)
	}
}

// handleAll reports false when the loop was stopped midway.
func (r *Responder) handleAll(ctx context.Context, posts []triage.Post) bool {
	for _, p := range posts {
		if r.stopped(ctx) {
			return false
		}
		r.Handle(ctx, p)
	}
	return true
}

func (r *Responder) polled(ctx context.Context, source string, err error, kv ...any) {
	if r.hooks.OnPoll != nil {
		r.hooks.OnPoll(source, err)
	}
	if err != nil && ctx.Err() == nil {
		r.logger.Warn(ctx, "poll failed", append([]any{"source", source, "error", err}, kv...)...)
	}
}

// Stats is a snapshot of responder activity.
type Stats struct {
	TotalReplies    int            `json:"total_replies"`
	RepliesInWindow int            `json:"replies_in_window"`
	LastReplyAt     *time.Time     `json:"last_reply_at,omitempty"`
	CanRespond      bool           `json:"can_respond"`
	MaxPerWindow    int            `json:"max_per_window"`
	WindowSeconds   float64        `json:"window_seconds"`
	MinDelaySeconds float64        `json:"min_delay_seconds"`
	PendingRetries  int            `json:"pending_retries"`
	ByType          map[string]int `json:"by_type"`
	ByUrgency       map[string]int `json:"by_urgency"`
	Recent          []HistoryEntry `json:"recent"`
}

const recentHistory = 50

// Stats returns a snapshot of activity.
func (r *Responder) Stats() Stats {
	now := r.now()
	sent, last := r.throttle.Usage(r.cfg.Channel, now)

	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		TotalReplies:    len(r.history),
		RepliesInWindow: sent,
		CanRespond:      r.throttle.Check(r.cfg.Channel, now) == RejectNone,
		MaxPerWindow:    r.throttle.maxPerWindow,
		WindowSeconds:   r.throttle.window.Seconds(),
		MinDelaySeconds: r.throttle.minDelay.Seconds(),
		PendingRetries:  len(r.retries),
		ByType:          make(map[string]int),
		ByUrgency:       make(map[string]int),
	}
	if !last.IsZero() {
		s.LastReplyAt = &last
	}
	for _, e := range r.history {
		if e.FollowUp {
			continue
		}
		s.ByType[e.ComplaintType]++
		s.ByUrgency[e.Urgency]++
	}
	s.Recent = slices.Clone(r.history[max(0, len(r.history)-recentHistory):])
	return s
}
