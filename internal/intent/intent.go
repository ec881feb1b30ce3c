// Package intent maps a customer message to one support category.
package intent

import (
	"strings"

	"github.com/linnemanlabs/helpdesk/internal/lexicon"
)

const (
	// MinConfidence is the normalized score below which a message falls back
	// to the general category.
	MinConfidence = 0.3

	// GeneralConfidence is reported for the general fallback.
	GeneralConfidence = 0.5

	shortMessageWords = 10
	shortMessageBoost = 1.2
	keywordShare      = 0.7
	patternShare      = 0.3
)

// Result is the outcome of a classification.
type Result struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Confidence  float64  `json:"confidence"`
	Keywords    []string `json:"keywords_found"`
}

// Classifier scores messages against the intent tables. It holds no mutable
// state and is safe for concurrent use.
type Classifier struct {
	tables []lexicon.IntentTable
}

// New returns a classifier over the intent tables of store. A nil store uses
// lexicon.Default().
func New(store *lexicon.Store) *Classifier {
	if store == nil {
		store = lexicon.Default()
	}
	return &Classifier{tables: store.Intents}
}

// Categories lists the supported categories in declaration order, followed
// by the general fallback.
func (c *Classifier) Categories() []string {
	out := make([]string, 0, len(c.tables)+1)
	for _, t := range c.tables {
		out = append(out, t.Category)
	}
	return append(out, lexicon.General)
}

// Classify never fails: empty input and internal faults both yield the
// general category with zero confidence.
func (c *Classifier) Classify(text string) (res Result) {
	defer func() {
		if recover() != nil {
			res = Result{Category: lexicon.General}
		}
	}()

	if strings.TrimSpace(text) == "" {
		return Result{Category: lexicon.General}
	}

	msg := lexicon.Normalize(text)
	short := lexicon.WordCount(msg) < shortMessageWords

	best := -1
	bestScore := 0.0
	var bestMatch lexicon.Match
	for i := range c.tables {
		m := lexicon.Evaluate(msg, c.tables[i].Lexicon)
		score := normalized(m, c.tables[i].Lexicon, short)
		if best < 0 || score > bestScore {
			best, bestScore, bestMatch = i, score, m
		}
	}

	if best < 0 || bestScore < MinConfidence {
		return Result{Category: lexicon.General, Confidence: GeneralConfidence}
	}

	t := c.tables[best]
	return Result{
		Category:    t.Category,
		Subcategory: subcategory(msg, t.Subcategories),
		Confidence:  bestScore,
		Keywords:    bestMatch.Keywords,
	}
}

// normalized weights the raw lexicon score by how much of the category's
// vocabulary the message covers.
func normalized(m lexicon.Match, lx *lexicon.Lexicon, short bool) float64 {
	var coverage float64
	if n := len(lx.Terms); n > 0 {
		coverage += float64(len(m.Keywords)) / float64(n) * keywordShare
	}
	if n := len(lx.Patterns); n > 0 {
		coverage += float64(len(m.Patterns)) / float64(n) * patternShare
	}

	score := m.Score * coverage
	if short && len(m.Keywords) > 0 {
		score *= shortMessageBoost
	}
	return min(score, 1.0)
}

func subcategory(msg string, sets []lexicon.KeywordSet) string {
	best, bestCount := "", 0
	for _, s := range sets {
		if n := s.Count(msg); n > bestCount {
			best, bestCount = s.Name, n
		}
	}
	return best
}
