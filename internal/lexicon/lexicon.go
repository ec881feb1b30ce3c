// Package lexicon holds the static weighted keyword and pattern tables used to
// score customer messages, and the scorer shared by the intent, sentiment and
// complaint classifiers.
//
// Tables are built once and shared read-only; nothing in this package mutates
// a Lexicon after construction.
package lexicon

import (
	"regexp"
	"strings"
)

// Term is a keyword matched as a substring of the normalized message.
type Term struct {
	Text   string
	Weight float64
}

// Pattern is a regular expression with a fixed weight.
type Pattern struct {
	Source string
	Weight float64
	re     *regexp.Regexp
}

// MatchString reports whether the pattern matches normalized text.
func (p Pattern) MatchString(s string) bool {
	return p.re != nil && p.re.MatchString(s)
}

// Lexicon is a named set of weighted terms, patterns and emojis.
type Lexicon struct {
	Name        string
	Terms       []Term
	Patterns    []Pattern
	Emojis      []string
	EmojiWeight float64
}

// KeywordSet is a named list of plain keywords, used for sub-categories,
// emotions and complaint types.
type KeywordSet struct {
	Name     string
	Keywords []string
}

// Phrases builds terms weighted 1/(number of words), so multi-word keywords
// contribute less per occurrence than single tokens.
func Phrases(words ...string) []Term {
	out := make([]Term, 0, len(words))
	for _, w := range words {
		n := len(strings.Fields(w))
		if n == 0 {
			continue
		}
		out = append(out, Term{Text: w, Weight: 1 / float64(n)})
	}
	return out
}

// Weighted builds terms that all carry the same weight.
func Weighted(weight float64, words ...string) []Term {
	out := make([]Term, 0, len(words))
	for _, w := range words {
		out = append(out, Term{Text: w, Weight: weight})
	}
	return out
}

// Patterns compiles expressions into case-insensitive patterns of the given
// weight. It panics on an invalid expression; tables are static.
func Patterns(weight float64, exprs ...string) []Pattern {
	out := make([]Pattern, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, Pattern{
			Source: e,
			Weight: weight,
			re:     regexp.MustCompile("(?i)" + e),
		})
	}
	return out
}

// Contains reports whether any keyword of the set is a substring of text.
func (k KeywordSet) Contains(text string) bool {
	return k.Count(text) > 0
}

// Count returns how many keywords of the set appear in text.
func (k KeywordSet) Count(text string) int {
	n := 0
	for _, kw := range k.Keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}
