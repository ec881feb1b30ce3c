package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/helpdesk/internal/escalation"
	"github.com/linnemanlabs/helpdesk/internal/intent"
	"github.com/linnemanlabs/helpdesk/internal/sentiment"
)

// Config tunes response generation.
type Config struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxResponse int
	Links       LinkConfig
}

// DefaultConfig returns the generation defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   200,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
		MaxResponse: MaxResponse,
		Links:       DefaultLinks(),
	}
}

// Hooks lets callers observe the service. Nil fields are skipped.
type Hooks struct {
	OnClassify   func(c *Classification, d time.Duration)
	OnCompletion func(c *Completion, err error)
	OnNotify     func(err error)
}

// Deps are the collaborators of a Service. Retriever, Completer and
// Notifier are optional; Intent and Sentiment default to the built-in
// lexicons.
type Deps struct {
	Intent    *intent.Classifier
	Sentiment *sentiment.Analyzer
	Retriever ContextRetriever
	Completer Completer
	Notifier  Notifier
	Logger    log.Logger
	Hooks     Hooks
}

// Service classifies inbound chat messages.
type Service struct {
	intent    *intent.Classifier
	sentiment *sentiment.Analyzer
	retriever ContextRetriever
	completer Completer
	notifier  Notifier
	logger    log.Logger
	hooks     Hooks
	cfg       Config
}

// NewService creates a Service. Zero Config fields take DefaultConfig values,
// except Temperature, which is sent as given so 0 stays deterministic.
func NewService(d Deps, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxResponse <= 0 {
		cfg.MaxResponse = def.MaxResponse
	}
	if cfg.Links == (LinkConfig{}) {
		cfg.Links = def.Links
	}
	if d.Intent == nil {
		d.Intent = intent.New(nil)
	}
	if d.Sentiment == nil {
		d.Sentiment = sentiment.New(nil)
	}
	if d.Logger == nil {
		d.Logger = log.Nop()
	}
	return &Service{
		intent:    d.Intent,
		sentiment: d.Sentiment,
		retriever: d.Retriever,
		completer: d.Completer,
		notifier:  d.Notifier,
		logger:    d.Logger,
		hooks:     d.Hooks,
		cfg:       cfg,
	}
}

// Classify runs the full pipeline for one message. It never fails: an
// unavailable retriever yields no context and an unavailable completer
// yields the category's template response.
func (s *Service) Classify(ctx context.Context, text string) *Classification {
	start := time.Now()

	c := &Classification{
		Intent:    s.intent.Classify(text),
		Sentiment: s.sentiment.Analyze(text),
	}
	c.Confidence = (c.Intent.Confidence + c.Sentiment.Confidence) / 2

	blank := strings.TrimSpace(text) == ""
	if !blank && s.retriever != nil {
		c.Context, c.ContextUsed = s.retriever.Context(ctx, text, c.Intent.Category)
	}

	if !blank {
		c.Response, c.Generated = s.generate(ctx, text, c)
	}
	if !c.Generated {
		c.Response = Fallback(c.Intent.Category, c.Sentiment.Label)
	}

	d := escalation.Decide(text, c.Intent, c.Sentiment)
	c.Escalate, c.EscalationReason = d.Escalate, d.Reason
	c.SuggestedLinks = s.cfg.Links.SuggestedLinks(c.Intent.Category)

	if c.Escalate {
		s.logger.Info(ctx, "message escalated",
			"reason", c.EscalationReason,
			"intent", c.Intent.Category,
			"sentiment_score", c.Sentiment.Score,
		)
		if s.notifier != nil {
			go s.notify(context.WithoutCancel(ctx), text, c.clone())
		}
	}

	if s.hooks.OnClassify != nil {
		s.hooks.OnClassify(c, time.Since(start))
	}
	return c
}

// generate asks the completer for a response. The boolean is false when no
// usable text was produced.
func (s *Service) generate(ctx context.Context, text string, c *Classification) (string, bool) {
	if s.completer == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	out, err := s.completer.Complete(ctx, &CompletionRequest{
		System:      systemPrompt,
		Prompt:      BuildPrompt(text, c.Context, c.Intent.Category, c.Sentiment.Label),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err == nil && out == nil {
		err = errors.New("completer returned no completion")
	}
	if s.hooks.OnCompletion != nil {
		s.hooks.OnCompletion(out, err)
	}
	if err != nil {
		s.logger.Warn(ctx, "completion failed, using template response",
			"intent", c.Intent.Category,
			"error", err,
		)
		return "", false
	}

	resp := Clean(out.Text, s.cfg.MaxResponse)
	if resp == "" {
		s.logger.Warn(ctx, "completion was empty, using template response", "model", out.Model)
		return "", false
	}
	return resp, true
}

func (s *Service) notify(ctx context.Context, text string, c *Classification) {
	err := s.notifier.SendEscalation(ctx, text, c)
	if err != nil {
		s.logger.Error(ctx, err, "escalation notification failed", "reason", c.EscalationReason)
	}
	if s.hooks.OnNotify != nil {
		s.hooks.OnNotify(err)
	}
}

func (c *Classification) clone() *Classification {
	cp := *c
	cp.SuggestedLinks = append([]Link(nil), c.SuggestedLinks...)
	return &cp
}
