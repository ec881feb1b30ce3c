// Package assistant implements the chat classification entry point: intent
// and sentiment, knowledge retrieval, response generation with a template
// fallback, and the escalation decision for one inbound message.
package assistant

import (
	"context"

	"github.com/linnemanlabs/helpdesk/internal/intent"
	"github.com/linnemanlabs/helpdesk/internal/sentiment"
)

// CompletionRequest is a single-turn text completion.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completion is the text produced for a CompletionRequest.
type Completion struct {
	Text         string
	Model        string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Completer generates text. Implemented by the LLM provider clients.
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// ContextRetriever returns knowledge relevant to a query, and whether any
// was found.
type ContextRetriever interface {
	Context(ctx context.Context, query, category string) (string, bool)
}

// Notifier is told about messages that need a human agent.
type Notifier interface {
	SendEscalation(ctx context.Context, message string, c *Classification) error
}

// Link is a help page suggested alongside a response.
type Link struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Classification is the outcome of Service.Classify.
type Classification struct {
	Intent           intent.Result    `json:"intent"`
	Sentiment        sentiment.Result `json:"sentiment"`
	Escalate         bool             `json:"needs_escalation"`
	EscalationReason string           `json:"escalation_reason,omitempty"`
	Context          string           `json:"retrieved_context,omitempty"`
	ContextUsed      bool             `json:"context_used"`
	Response         string           `json:"response"`
	Generated        bool             `json:"generated"`
	SuggestedLinks   []Link           `json:"suggested_links"`
	Confidence       float64          `json:"confidence"`
}
