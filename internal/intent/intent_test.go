package intent

import (
	"math"
	"slices"
	"testing"

	"github.com/linnemanlabs/helpdesk/internal/lexicon"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	c := New(nil)
	tests := []struct {
		name        string
		text        string
		category    string
		subcategory string
		confidence  float64
	}{
		{"cancellation", "Je veux résilier mon contrat", lexicon.Cancellation, "", 0.384},
		{"technical with subcategory", "Problème de connexion réseau, wifi ne marche pas", lexicon.Technical, "connection", 1.0},
		{"no vocabulary", "Bonjour", lexicon.General, "", GeneralConfidence},
		{"empty", "", lexicon.General, "", 0},
		{"whitespace", "   \n\t", lexicon.General, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := c.Classify(tt.text)
			if got.Category != tt.category {
				t.Errorf("Category = %q, want %q", got.Category, tt.category)
			}
			if got.Subcategory != tt.subcategory {
				t.Errorf("Subcategory = %q, want %q", got.Subcategory, tt.subcategory)
			}
			if math.Abs(got.Confidence-tt.confidence) > 1e-9 {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.confidence)
			}
		})
	}
}

func TestClassify_KeywordsFromWinningCategory(t *testing.T) {
	t.Parallel()

	got := New(nil).Classify("Je veux résilier mon contrat")
	if !slices.Equal(got.Keywords, []string{"résilier"}) {
		t.Errorf("Keywords = %v, want [résilier]", got.Keywords)
	}
}

func TestClassify_ConfidenceBounds(t *testing.T) {
	t.Parallel()

	c := New(nil)
	inputs := []string{
		"facture facture prix forfait data go mo sms appel minute internet 4g 5g combien coûte",
		"colis perdu, suivi colis en retard, livraison de ma commande",
		"x",
	}
	for _, in := range inputs {
		got := c.Classify(in)
		if got.Confidence < 0 || got.Confidence > 1 {
			t.Errorf("Classify(%q).Confidence = %v, out of [0,1]", in, got.Confidence)
		}
	}
}

func TestClassify_TieKeepsFirstCategory(t *testing.T) {
	t.Parallel()

	lx := func(name string) *lexicon.Lexicon {
		return &lexicon.Lexicon{Name: name, Terms: lexicon.Phrases("facture")}
	}
	store := &lexicon.Store{Intents: []lexicon.IntentTable{
		{Category: "first", Lexicon: lx("first")},
		{Category: "second", Lexicon: lx("second")},
	}}

	for range 10 {
		got := New(store).Classify("ma facture")
		if got.Category != "first" {
			t.Fatalf("Category = %q, want first", got.Category)
		}
		// 1 keyword of 1, no patterns, short message boost
		if math.Abs(got.Confidence-0.84) > 1e-9 {
			t.Fatalf("Confidence = %v, want 0.84", got.Confidence)
		}
	}
}

func TestClassify_RecoversInternalFault(t *testing.T) {
	t.Parallel()

	c := &Classifier{tables: []lexicon.IntentTable{{Category: "broken"}}}
	got := c.Classify("facture")
	if got.Category != lexicon.General || got.Confidence != 0 {
		t.Errorf("got %+v, want general with zero confidence", got)
	}
}

func TestClassify_SubcategoryNoneWhenNoHits(t *testing.T) {
	t.Parallel()

	got := New(nil).Classify("Je veux changer de forfait")
	if got.Category != lexicon.Plan {
		t.Fatalf("Category = %q, want plan", got.Category)
	}
	if got.Subcategory != "" {
		t.Errorf("Subcategory = %q, want none", got.Subcategory)
	}
}

func TestCategories(t *testing.T) {
	t.Parallel()

	want := []string{"billing", "technical", "plan", "cancellation", "delivery", "order", "general"}
	if got := New(nil).Categories(); !slices.Equal(got, want) {
		t.Errorf("Categories = %v, want %v", got, want)
	}
}
