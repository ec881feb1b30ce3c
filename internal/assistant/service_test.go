package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/helpdesk/internal/escalation"
	"github.com/linnemanlabs/helpdesk/internal/lexicon"
	"github.com/linnemanlabs/helpdesk/internal/sentiment"
)

type stubCompleter struct {
	mu    sync.Mutex
	reqs  []CompletionRequest
	text  string
	err   error
	block bool
}

func (c *stubCompleter) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	c.mu.Lock()
	c.reqs = append(c.reqs, *req)
	c.mu.Unlock()
	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	return &Completion{Text: c.text, Model: "stub", InputTokens: 12, OutputTokens: 7}, nil
}

func (c *stubCompleter) calls() []CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CompletionRequest(nil), c.reqs...)
}

type stubRetriever struct {
	mu         sync.Mutex
	text       string
	ok         bool
	categories []string
}

func (r *stubRetriever) Context(_ context.Context, _, category string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories = append(r.categories, category)
	return r.text, r.ok
}

type stubNotifier struct {
	mu   sync.Mutex
	got  []string
	done chan struct{}
}

func (n *stubNotifier) SendEscalation(_ context.Context, message string, _ *Classification) error {
	n.mu.Lock()
	n.got = append(n.got, message)
	n.mu.Unlock()
	close(n.done)
	return nil
}

func TestClassify_TemplateWithoutCompleter(t *testing.T) {
	t.Parallel()

	s := NewService(Deps{}, Config{})
	c := s.Classify(context.Background(), "Bonjour")

	if c.Intent.Category != lexicon.General {
		t.Errorf("intent = %q, want general", c.Intent.Category)
	}
	if c.Sentiment.Label != sentiment.Positive {
		t.Errorf("sentiment = %q, want positive", c.Sentiment.Label)
	}
	if c.Generated {
		t.Error("Generated = true without a completer")
	}
	if want := Fallback(lexicon.General, sentiment.Positive); c.Response != want {
		t.Errorf("Response = %q, want %q", c.Response, want)
	}
	if c.Escalate {
		t.Errorf("unexpected escalation: %s", c.EscalationReason)
	}
	if c.ContextUsed {
		t.Error("ContextUsed = true without a retriever")
	}
	if c.Confidence != 0.75 {
		t.Errorf("Confidence = %v, want 0.75", c.Confidence)
	}
	if len(c.SuggestedLinks) != 2 || c.SuggestedLinks[0].Title != "FAQ Générale" {
		t.Errorf("SuggestedLinks = %+v", c.SuggestedLinks)
	}
}

func TestClassify_GeneratedWithContext(t *testing.T) {
	t.Parallel()

	comp := &stubCompleter{text: "Bonjour !\n\nBonjour !\n  Voici la procédure.  "}
	ret := &stubRetriever{text: "**Résiliation**\nDepuis l'espace client.", ok: true}
	s := NewService(Deps{Completer: comp, Retriever: ret}, DefaultConfig())

	c := s.Classify(context.Background(), "Je veux résilier mon contrat")

	if !c.Generated {
		t.Fatal("Generated = false, want true")
	}
	if c.Response != "Bonjour !\nVoici la procédure." {
		t.Errorf("Response = %q", c.Response)
	}
	if !c.ContextUsed || c.Context != ret.text {
		t.Errorf("context = %q used=%v", c.Context, c.ContextUsed)
	}
	if len(ret.categories) != 1 || ret.categories[0] != lexicon.Cancellation {
		t.Errorf("retriever categories = %v, want [cancellation]", ret.categories)
	}

	reqs := comp.calls()
	if len(reqs) != 1 {
		t.Fatalf("completions = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.System != systemPrompt {
		t.Error("system prompt not sent")
	}
	if req.MaxTokens != 200 || req.Temperature != 0.7 {
		t.Errorf("MaxTokens/Temperature = %d/%v", req.MaxTokens, req.Temperature)
	}
	for _, want := range []string{
		"Message du client: Je veux résilier mon contrat",
		"Contexte pertinent:\n**Résiliation**",
		intentInstructions[lexicon.Cancellation],
		sentimentInstructions[sentiment.Neutral],
	} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, req.Prompt)
		}
	}

	// cancellation at 0.384 confidence is handed to a human
	if !c.Escalate || c.EscalationReason != escalation.ReasonLowConfidence {
		t.Errorf("escalation = %v %q, want low_confidence", c.Escalate, c.EscalationReason)
	}
	if c.SuggestedLinks[0].Title != "Procédure de Résiliation" {
		t.Errorf("SuggestedLinks = %+v", c.SuggestedLinks)
	}
}

func TestClassify_CompletionFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		comp *stubCompleter
	}{
		{"error", &stubCompleter{err: errors.New("overloaded")}},
		{"blank text", &stubCompleter{text: " \n\n  "}},
		{"timeout", &stubCompleter{block: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hookErr error
			var mu sync.Mutex
			s := NewService(Deps{
				Completer: tt.comp,
				Hooks: Hooks{OnCompletion: func(_ *Completion, err error) {
					mu.Lock()
					hookErr = err
					mu.Unlock()
				}},
			}, Config{Timeout: 20 * time.Millisecond})

			c := s.Classify(context.Background(), "C'est nul, ça ne marche pas du tout")

			if c.Generated {
				t.Error("Generated = true, want template fallback")
			}
			if !strings.HasPrefix(c.Response, FrustrationPrefix) {
				t.Errorf("Response = %q, want frustration prefix", c.Response)
			}
			mu.Lock()
			defer mu.Unlock()
			if tt.name != "blank text" && hookErr == nil {
				t.Error("OnCompletion did not see the error")
			}
		})
	}
}

func TestClassify_RetrieverMiss(t *testing.T) {
	t.Parallel()

	comp := &stubCompleter{text: "ok"}
	s := NewService(Deps{Completer: comp, Retriever: &stubRetriever{}}, Config{})

	c := s.Classify(context.Background(), "Je veux changer de forfait")
	if c.ContextUsed || c.Context != "" {
		t.Errorf("context = %q used=%v", c.Context, c.ContextUsed)
	}
	if strings.Contains(comp.calls()[0].Prompt, "Contexte pertinent") {
		t.Error("prompt carries an empty context section")
	}
}

func TestClassify_EscalationNotifies(t *testing.T) {
	t.Parallel()

	n := &stubNotifier{done: make(chan struct{})}
	s := NewService(Deps{Notifier: n}, Config{})

	c := s.Classify(context.Background(), "C'est nul, ça ne marche pas du tout")
	if !c.Escalate || c.EscalationReason != escalation.ReasonSentiment {
		t.Fatalf("escalation = %v %q, want sentiment", c.Escalate, c.EscalationReason)
	}

	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier not called")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.got) != 1 || n.got[0] != "C'est nul, ça ne marche pas du tout" {
		t.Errorf("notified = %v", n.got)
	}
}

func TestClassify_Empty(t *testing.T) {
	t.Parallel()

	comp := &stubCompleter{text: "ok"}
	ret := &stubRetriever{text: "x", ok: true}
	s := NewService(Deps{Completer: comp, Retriever: ret}, Config{})

	c := s.Classify(context.Background(), "   ")

	if len(comp.calls()) != 0 || len(ret.categories) != 0 {
		t.Error("blank message reached the completer or retriever")
	}
	if c.Intent.Category != lexicon.General || c.Confidence != 0 {
		t.Errorf("intent = %+v confidence = %v", c.Intent, c.Confidence)
	}
	if c.Response != Fallback(lexicon.General, sentiment.Neutral) {
		t.Errorf("Response = %q", c.Response)
	}
	if c.Escalate {
		t.Errorf("unexpected escalation: %s", c.EscalationReason)
	}
}

func TestClassify_Concurrent(t *testing.T) {
	t.Parallel()

	s := NewService(Deps{Completer: &stubCompleter{text: "ok"}}, Config{})
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c := s.Classify(context.Background(), "Problème de connexion réseau, wifi ne marche pas"); c.Intent.Category != lexicon.Technical {
				t.Errorf("intent = %q, want technical", c.Intent.Category)
			}
		}()
	}
	wg.Wait()
}

func TestClassify_ZeroTemperatureKept(t *testing.T) {
	t.Parallel()

	comp := &stubCompleter{text: "Voici la procédure."}
	cfg := DefaultConfig()
	cfg.Temperature = 0
	s := NewService(Deps{Completer: comp, Retriever: &stubRetriever{}}, cfg)

	s.Classify(context.Background(), "Je veux résilier mon contrat")

	reqs := comp.calls()
	if len(reqs) != 1 {
		t.Fatalf("completions = %d, want 1", len(reqs))
	}
	if reqs[0].Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", reqs[0].Temperature)
	}
}
