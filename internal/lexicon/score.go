package lexicon

import "strings"

// Match is the evidence a lexicon found in a message.
type Match struct {
	// Score is the total: TermScore + PatternScore + EmojiScore.
	Score        float64
	TermScore    float64
	PatternScore float64
	EmojiScore   float64

	Keywords []string
	Patterns []string
	Emojis   int
}

// Score lower-cases text once and returns the weighted relevance of the
// lexicon for it. The result is always finite and non-negative.
func Score(text string, lx *Lexicon) float64 {
	return Evaluate(Normalize(text), lx).Score
}

// Evaluate scores text that has already been passed through Normalize:
// every keyword present as a substring adds its weight, every matching
// pattern adds its weight, and every emoji occurrence adds the lexicon's
// emoji weight.
func Evaluate(text string, lx *Lexicon) Match {
	var m Match
	if text == "" || lx == nil {
		return m
	}

	for _, t := range lx.Terms {
		if t.Text == "" || !strings.Contains(text, t.Text) {
			continue
		}
		m.TermScore += t.Weight
		m.Keywords = append(m.Keywords, t.Text)
	}

	for _, p := range lx.Patterns {
		if !p.MatchString(text) {
			continue
		}
		m.PatternScore += p.Weight
		m.Patterns = append(m.Patterns, p.Source)
	}

	for _, e := range lx.Emojis {
		n := strings.Count(text, e)
		if n == 0 {
			continue
		}
		m.Emojis += n
		m.EmojiScore += float64(n) * lx.EmojiWeight
	}

	m.Score = m.TermScore + m.PatternScore + m.EmojiScore
	return m
}
