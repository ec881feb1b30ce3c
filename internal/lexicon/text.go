package lexicon

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize composes the text to NFC, folds typographic apostrophes and
// lower-cases it. Every table in this package is written in that form.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'").Replace(s)
	return strings.ToLower(s)
}

// Words splits text into word tokens. Apostrophes stay inside tokens so that
// elided forms such as "n'est" remain one token.
func Words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// CapsRatio returns the share of upper-case letters among all letters of s.
// Text without letters has a ratio of zero.
func CapsRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// Exclamations counts exclamation marks.
func Exclamations(s string) int {
	return strings.Count(s, "!")
}

// AdjacentRepeats counts non-overlapping pairs of identical neighbouring
// words, so "très très bien" counts one and "non non non" counts one.
func AdjacentRepeats(words []string) int {
	n := 0
	for i := 1; i < len(words); i++ {
		if words[i] == words[i-1] {
			n++
			i++
		}
	}
	return n
}

// HasMarker reports whether any marker occurs as a word. A marker ending in an
// apostrophe matches as a word prefix ("n'" matches "n'est").
func HasMarker(words []string, markers []string) bool {
	for _, w := range words {
		for _, m := range markers {
			if strings.HasSuffix(m, "'") {
				if strings.HasPrefix(w, m) {
					return true
				}
				continue
			}
			if w == m {
				return true
			}
		}
	}
	return false
}
