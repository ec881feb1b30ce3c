// Package sentiment labels a message positive, negative or neutral and
// estimates how urgently it needs an answer.
//
// Each polarity is first amplified by its own intensifiers and by word
// repetition. Negation handling then runs globally: a single negation marker
// anywhere in the message swaps the amplified positive and negative keyword
// evidence for the whole text. Polarity patterns are left alone since
// several of them already encode a negation ("ça marche pas").
package sentiment

import (
	"math"
	"strings"

	"github.com/linnemanlabs/helpdesk/internal/lexicon"
)

// Labels.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// Urgency levels.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

const (
	intensifierBoost = 1.5
	repeatBoost      = 0.3

	strongNegative    = 0.7
	strongNegBonus    = 3.0
	highUrgency       = 5.0
	mediumUrgency     = 2.0
	urgencyKeywordW   = 2.0
	capsWeight        = 10.0
	exclamationWeight = 0.5
)

// Result is the sentiment of one message.
type Result struct {
	Label string `json:"label"`
	// Score is in [-1, 1]; negative labels carry a negated value, neutral is 0.
	Score        float64  `json:"score"`
	Confidence   float64  `json:"confidence"`
	Urgency      string   `json:"urgency"`
	UrgencyScore float64  `json:"urgency_score"`
	Emotions     []string `json:"emotions"`
	Keywords     []string `json:"keywords_found"`
}

// Analyzer is stateless and safe for concurrent use.
type Analyzer struct {
	t lexicon.SentimentTables
}

// New returns an analyzer over the sentiment tables of store. A nil store
// uses lexicon.Default().
func New(store *lexicon.Store) *Analyzer {
	if store == nil {
		store = lexicon.Default()
	}
	return &Analyzer{t: store.Sentiment}
}

// Analyze never fails; internal faults yield a neutral, low-urgency result.
func (a *Analyzer) Analyze(text string) (res Result) {
	defer func() {
		if recover() != nil {
			res = Result{Label: Neutral, Urgency: UrgencyLow}
		}
	}()

	msg := lexicon.Normalize(text)
	words := lexicon.Words(msg)

	pos := lexicon.Evaluate(msg, a.t.Positive)
	neg := lexicon.Evaluate(msg, a.t.Negative)
	neu := lexicon.Evaluate(msg, a.t.Neutral)

	posMod := modifier(words, a.t.PositiveIntensifiers)
	negMod := modifier(words, a.t.NegativeIntensifiers)

	rep := 1 + repeatBoost*float64(lexicon.AdjacentRepeats(words))
	posW, negW := posMod*rep, negMod*rep

	posLex, posPat := (pos.TermScore+pos.EmojiScore)*posW, pos.PatternScore*posW
	negLex, negPat := (neg.TermScore+neg.EmojiScore)*negW, neg.PatternScore*negW
	if lexicon.HasMarker(words, a.t.Negations) {
		posLex, negLex = negLex, posLex
	}

	p := posLex + posPat
	n := negLex + negPat
	z := neu.Score

	if sum := p + n + z; sum > 0 {
		p, n, z = p/sum, n/sum, z/sum
	}

	res = Result{
		Label:      Neutral,
		Confidence: math.Max(p, math.Max(n, z)),
		Emotions:   a.emotions(msg),
		Keywords:   keywords(pos, neg, neu),
	}
	switch {
	case p > n && p > z:
		res.Label, res.Score = Positive, p
	case n > p && n > z:
		res.Label, res.Score = Negative, -n
	}

	res.UrgencyScore = a.urgencyScore(text, msg, res)
	res.Urgency = urgencyLevel(res.UrgencyScore)
	return res
}

func modifier(words, intensifiers []string) float64 {
	if lexicon.HasMarker(words, intensifiers) {
		return intensifierBoost
	}
	return 1
}

func (a *Analyzer) urgencyScore(original, msg string, r Result) float64 {
	kw := 0
	for _, k := range a.t.UrgencyKeywords {
		if strings.Contains(msg, k) {
			kw++
		}
	}
	score := urgencyKeywordW*float64(kw) +
		capsWeight*lexicon.CapsRatio(original) +
		exclamationWeight*float64(lexicon.Exclamations(msg))
	if r.Label == Negative && math.Abs(r.Score) > strongNegative {
		score += strongNegBonus
	}
	return score
}

func urgencyLevel(score float64) string {
	switch {
	case score >= highUrgency:
		return UrgencyHigh
	case score >= mediumUrgency:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func (a *Analyzer) emotions(msg string) []string {
	var out []string
	for _, e := range a.t.Emotions {
		if e.Contains(msg) {
			out = append(out, e.Name)
		}
	}
	return out
}

func keywords(ms ...lexicon.Match) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Keywords...)
	}
	return out
}
