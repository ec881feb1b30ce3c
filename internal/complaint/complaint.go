// Package complaint decides whether a public post is a complaint about the
// operator and grades how urgent and what kind of complaint it is.
package complaint

import (
	"strings"

	"github.com/linnemanlabs/helpdesk/internal/lexicon"
)

// Threshold is the score at or above which a post is a complaint.
const Threshold = 3.0

// Urgency levels.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
	UrgencyUrgent = "urgent"
)

// Types. TypeGeneral is used when no type keyword matches.
const (
	TypeBilling         = "billing"
	TypeTechnical       = "technical"
	TypeCustomerService = "customer_service"
	TypeCancellation    = "cancellation"
	TypeGeneral         = "general"
)

// Tones.
const (
	ToneVeryNegative     = "very_negative"
	ToneNegative         = "negative"
	ToneSlightlyNegative = "slightly_negative"
	ToneNeutral          = "neutral"
)

const (
	repeatWeight      = 0.3
	capsThreshold     = 0.3
	capsBonus         = 1.0
	exclamationWeight = 0.2
)

// Verdict is the result of complaint detection for one post.
type Verdict struct {
	IsComplaint    bool     `json:"is_complaint"`
	Score          float64  `json:"complaint_score"`
	Confidence     float64  `json:"confidence"`
	Urgency        string   `json:"urgency"`
	Type           string   `json:"type"`
	Keywords       []string `json:"keywords_found"`
	Patterns       []string `json:"patterns_found"`
	NegativeEmojis int      `json:"negative_emoji_count"`
	HasNegation    bool     `json:"has_negation"`
	Tone           string   `json:"tone"`
}

// Detector is stateless and safe for concurrent use.
type Detector struct {
	t lexicon.ComplaintTables
}

// New returns a detector over the complaint tables of store. A nil store
// uses lexicon.Default().
func New(store *lexicon.Store) *Detector {
	if store == nil {
		store = lexicon.Default()
	}
	return &Detector{t: store.Complaint}
}

// Detect never fails; internal faults yield a non-complaint verdict.
func (d *Detector) Detect(text string) (v Verdict) {
	defer func() {
		if recover() != nil {
			v = Verdict{Urgency: UrgencyLow, Type: TypeGeneral, Tone: ToneNeutral}
		}
	}()

	msg := lexicon.Normalize(text)
	m := lexicon.Evaluate(msg, d.t.Lexicon)

	score := m.Score
	for _, kw := range m.Keywords {
		if n := strings.Count(msg, kw); n > 1 {
			score += float64(n-1) * repeatWeight
		}
	}
	if lexicon.CapsRatio(text) > capsThreshold {
		score += capsBonus
	}
	score += exclamationWeight * float64(lexicon.Exclamations(msg))

	urgencyScore := score +
		0.5*float64(m.Emojis) +
		0.3*float64(len(m.Keywords)) +
		0.5*float64(len(m.Patterns))

	return Verdict{
		IsComplaint:    score >= Threshold,
		Score:          score,
		Confidence:     min(score/10, 1),
		Urgency:        urgency(urgencyScore),
		Type:           d.classify(msg),
		Keywords:       m.Keywords,
		Patterns:       m.Patterns,
		NegativeEmojis: m.Emojis,
		HasNegation:    lexicon.HasMarker(lexicon.Words(msg), d.t.Negations),
		Tone:           tone(score),
	}
}

func urgency(score float64) string {
	switch {
	case score >= 8:
		return UrgencyUrgent
	case score >= 5:
		return UrgencyHigh
	case score >= 3:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func tone(score float64) string {
	switch {
	case score >= 5:
		return ToneVeryNegative
	case score >= 3:
		return ToneNegative
	case score >= 1:
		return ToneSlightlyNegative
	default:
		return ToneNeutral
	}
}

func (d *Detector) classify(msg string) string {
	for _, t := range d.t.Types {
		if t.Contains(msg) {
			return t.Name
		}
	}
	return TypeGeneral
}
