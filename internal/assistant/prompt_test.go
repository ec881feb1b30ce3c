package assistant

import (
	"strings"
	"testing"

	"github.com/linnemanlabs/helpdesk/internal/lexicon"
	"github.com/linnemanlabs/helpdesk/internal/sentiment"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"trims and drops blanks", "  a  \n\n\t b \n", 500, "a\nb"},
		{"consecutive duplicates", "a\na\nb\na", 500, "a\nb\na"},
		{"empty", "", 500, ""},
		{"cut at rune budget", "éééééé", 3, "ééé..."},
		{"exact budget kept", "abc", 3, "abc"},
		{"no budget", strings.Repeat("x", 600), 0, strings.Repeat("x", 600)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Clean(tt.in, tt.max); got != tt.want {
				t.Errorf("Clean(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	t.Parallel()

	if got := Fallback(lexicon.Billing, sentiment.Neutral); !strings.HasPrefix(got, "Pour toute question de facturation") {
		t.Errorf("billing fallback = %q", got)
	}
	if got := Fallback(lexicon.Technical, sentiment.Negative); !strings.HasPrefix(got, FrustrationPrefix+"Pour résoudre") {
		t.Errorf("negative technical fallback = %q", got)
	}
	if got, want := Fallback(lexicon.Delivery, sentiment.Positive), fallbackResponses[lexicon.General]; got != want {
		t.Errorf("delivery fallback = %q, want general template", got)
	}
	if got, want := Fallback("unknown", ""), fallbackResponses[lexicon.General]; got != want {
		t.Errorf("unknown fallback = %q, want general template", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p := BuildPrompt("ma facture est fausse", "", lexicon.Billing, sentiment.Negative)
	for _, want := range []string{
		intentInstructions[lexicon.Billing],
		sentimentInstructions[sentiment.Negative],
		"Message du client: ma facture est fausse",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "Contexte pertinent") {
		t.Error("empty knowledge produced a context section")
	}
	if !strings.HasSuffix(p, "Réponse:") {
		t.Errorf("prompt should end with the answer cue: %q", p)
	}

	p = BuildPrompt("x", "doc", "unknown", "unknown")
	if !strings.Contains(p, intentInstructions[lexicon.General]) || !strings.Contains(p, sentimentInstructions[sentiment.Neutral]) {
		t.Error("unknown labels should use the general and neutral instructions")
	}
	if !strings.Contains(p, "Contexte pertinent:\ndoc") {
		t.Error("knowledge missing from prompt")
	}
}

func TestSuggestedLinks(t *testing.T) {
	t.Parallel()

	lc := DefaultLinks()
	tests := []struct {
		category string
		first    string
		url      string
	}{
		{lexicon.Billing, "Espace Client", lc.AccountURL},
		{lexicon.Technical, "Guide de Dépannage", lc.FAQURL + "#technique"},
		{lexicon.Plan, "Nos Forfaits", lc.OffersURL},
		{lexicon.Cancellation, "Procédure de Résiliation", lc.FAQURL + "#resiliation"},
		{lexicon.Order, "FAQ Générale", lc.FAQURL},
		{lexicon.General, "FAQ Générale", lc.FAQURL},
	}
	for _, tt := range tests {
		links := lc.SuggestedLinks(tt.category)
		if len(links) != 2 {
			t.Errorf("%s: %d links, want 2", tt.category, len(links))
			continue
		}
		if links[0].Title != tt.first || links[0].URL != tt.url {
			t.Errorf("%s: first link = %+v, want %q %q", tt.category, links[0], tt.first, tt.url)
		}
	}
}
