package assistant

import (
	"strings"
	"unicode/utf8"

	"github.com/linnemanlabs/helpdesk/internal/lexicon"
	"github.com/linnemanlabs/helpdesk/internal/sentiment"
)

// MaxResponse is the default rune budget of a generated response.
const MaxResponse = 500

const systemPrompt = `Vous êtes un assistant virtuel spécialisé dans le support client Free Mobile.
Votre rôle est d'aider les clients avec leurs questions sur les forfaits, la facturation, les problèmes techniques, etc.

Instructions importantes:
- Répondez toujours en français
- Soyez professionnel, courtois et empathique
- Utilisez les informations de contexte fournies
- Si vous ne savez pas, proposez des liens utiles
- Pour les problèmes complexes, proposez l'escalade vers un agent humain
- Restez concis mais informatif`

var intentInstructions = map[string]string{
	lexicon.Billing:      "Le client a une question sur la facturation. Vérifiez les informations de facturation et proposez des solutions.",
	lexicon.Technical:    "Le client a un problème technique. Proposez des solutions de dépannage étape par étape.",
	lexicon.Plan:         "Le client s'interroge sur les forfaits. Présentez les options disponibles et leurs avantages.",
	lexicon.Cancellation: "Le client souhaite résilier. Expliquez la procédure et proposez des alternatives.",
	lexicon.Delivery:     "Le client attend une livraison. Expliquez comment suivre l'envoi et les délais habituels.",
	lexicon.Order:        "Le client a une question sur sa commande. Indiquez comment suivre ou modifier la commande.",
	lexicon.General:      "Répondez de manière générale en proposant de l'aide.",
}

var sentimentInstructions = map[string]string{
	sentiment.Negative: "Le client semble mécontent. Soyez particulièrement empathique et proposez des solutions concrètes.",
	sentiment.Positive: "Le client semble satisfait. Maintenez cette satisfaction et proposez une aide supplémentaire.",
	sentiment.Neutral:  "Répondez de manière neutre et professionnelle.",
}

var fallbackResponses = map[string]string{
	lexicon.Billing:      "Pour toute question de facturation, je vous invite à consulter votre espace client Free Mobile ou à contacter notre service client.",
	lexicon.Technical:    "Pour résoudre votre problème technique, je vous recommande de redémarrer votre appareil et de vérifier les paramètres réseau.",
	lexicon.Plan:         "Je peux vous aider à choisir le forfait qui vous convient le mieux. Consultez notre site web pour voir toutes les options disponibles.",
	lexicon.Cancellation: "Si vous souhaitez résilier votre contrat, vous pouvez le faire depuis votre espace client ou en contactant notre service client.",
	lexicon.General:      "Je suis là pour vous aider. Pouvez-vous me donner plus de détails sur votre demande ?",
}

// FrustrationPrefix opens fallback responses to negative messages.
const FrustrationPrefix = "Je comprends votre frustration. "

func lookup(m map[string]string, key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return m[def]
}

// BuildPrompt returns the user prompt for a message. The system prompt is
// carried separately in CompletionRequest.System.
func BuildPrompt(message, knowledge, category, label string) string {
	var b strings.Builder
	b.WriteString(lookup(intentInstructions, category, lexicon.General))
	b.WriteByte('\n')
	b.WriteString(lookup(sentimentInstructions, label, sentiment.Neutral))
	b.WriteString("\n\nMessage du client: ")
	b.WriteString(message)
	b.WriteByte('\n')
	if knowledge != "" {
		b.WriteString("\n\nContexte pertinent:\n")
		b.WriteString(knowledge)
	}
	b.WriteString("\n\nRéponse:")
	return b.String()
}

// Fallback returns the template response for a category, prefixed with
// FrustrationPrefix when the message is negative.
func Fallback(category, label string) string {
	r := lookup(fallbackResponses, category, lexicon.General)
	if label == sentiment.Negative {
		r = FrustrationPrefix + r
	}
	return r
}

// Clean trims each line, drops blank lines and lines repeating the one
// before them, then cuts the result to maxRunes runes followed by "...".
// maxRunes <= 0 disables the cut.
func Clean(text string, maxRunes int) string {
	var out []string
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1] == line {
			continue
		}
		out = append(out, line)
	}
	s := strings.Join(out, "\n")
	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		s = string([]rune(s)[:maxRunes]) + "..."
	}
	return s
}

// LinkConfig holds the help pages used for suggested links.
type LinkConfig struct {
	FAQURL        string
	AccountURL    string
	ContactURL    string
	OffersURL     string
	ComparatorURL string
}

// DefaultLinks returns the public Free Mobile help pages.
func DefaultLinks() LinkConfig {
	return LinkConfig{
		FAQURL:        "https://mobile.free.fr/assistance/",
		AccountURL:    "https://mobile.free.fr/moncompte/",
		ContactURL:    "https://mobile.free.fr/assistance/contact.html",
		OffersURL:     "https://mobile.free.fr/offres/",
		ComparatorURL: "https://mobile.free.fr/offres/comparateur",
	}
}

// SuggestedLinks returns the help pages for a category.
func (lc LinkConfig) SuggestedLinks(category string) []Link {
	switch category {
	case lexicon.Billing:
		return []Link{
			{Title: "Espace Client", URL: lc.AccountURL, Description: "Consultez vos factures et votre consommation"},
			{Title: "FAQ Facturation", URL: lc.FAQURL + "#facturation", Description: "Questions fréquentes sur la facturation"},
		}
	case lexicon.Technical:
		return []Link{
			{Title: "Guide de Dépannage", URL: lc.FAQURL + "#technique", Description: "Solutions aux problèmes techniques courants"},
			{Title: "Contact Support", URL: lc.ContactURL, Description: "Contacter notre équipe technique"},
		}
	case lexicon.Plan:
		return []Link{
			{Title: "Nos Forfaits", URL: lc.OffersURL, Description: "Découvrez tous nos forfaits mobiles"},
			{Title: "Comparateur", URL: lc.ComparatorURL, Description: "Comparez nos offres"},
		}
	case lexicon.Cancellation:
		return []Link{
			{Title: "Procédure de Résiliation", URL: lc.FAQURL + "#resiliation", Description: "Comment résilier votre contrat"},
			{Title: "Espace Client", URL: lc.AccountURL, Description: "Résiliez en ligne"},
		}
	default:
		return []Link{
			{Title: "FAQ Générale", URL: lc.FAQURL, Description: "Trouvez des réponses à vos questions"},
			{Title: "Contact", URL: lc.ContactURL, Description: "Contacter notre service client"},
		}
	}
}
