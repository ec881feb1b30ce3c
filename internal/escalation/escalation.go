// Package escalation decides when a conversation must be handed to a human
// agent.
package escalation

import (
	"slices"
	"strings"

	"github.com/linnemanlabs/helpdesk/internal/intent"
	"github.com/linnemanlabs/helpdesk/internal/lexicon"
	"github.com/linnemanlabs/helpdesk/internal/sentiment"
)

const (
	// NegativeScore is the sentiment score below which a message escalates.
	NegativeScore = -0.7
	// MinIntentConfidence is the confidence below which a cancellation or
	// technical intent escalates.
	MinIntentConfidence = 0.5
)

// uncertainIntents escalate when classified with low confidence.
var uncertainIntents = []string{lexicon.Cancellation, lexicon.Technical}

// Reasons.
const (
	ReasonKeyword       = "keyword"
	ReasonSentiment     = "sentiment"
	ReasonLowConfidence = "low_confidence"
)

// Keywords force escalation when present, matched case-insensitively as
// substrings.
var Keywords = []string{
	"rémunération", "plainte", "réclamation", "juridique", "avocat",
	"médiateur", "arcep", "résiliation immédiate", "dédommagement",
}

// Decision is the outcome of the policy. Reason is empty when Escalate is
// false; keyword escalations read "keyword:<term>".
type Decision struct {
	Escalate bool   `json:"escalate"`
	Reason   string `json:"reason,omitempty"`
}

// Decide checks escalation keywords first, then strongly negative sentiment,
// then a cancellation or technical intent classified with low confidence.
func Decide(message string, in intent.Result, s sentiment.Result) Decision {
	msg := lexicon.Normalize(message)
	for _, k := range Keywords {
		if strings.Contains(msg, k) {
			return Decision{Escalate: true, Reason: ReasonKeyword + ":" + k}
		}
	}
	if s.Score < NegativeScore {
		return Decision{Escalate: true, Reason: ReasonSentiment}
	}
	if slices.Contains(uncertainIntents, in.Category) && in.Confidence < MinIntentConfidence {
		return Decision{Escalate: true, Reason: ReasonLowConfidence}
	}
	return Decision{}
}

// ShouldEscalate reports Decide(...).Escalate.
func ShouldEscalate(message string, in intent.Result, s sentiment.Result) bool {
	return Decide(message, in, s).Escalate
}
