package lexicon

import "sync"

// Intent categories, in declaration order. Earlier categories win ties.
const (
	Billing      = "billing"
	Technical    = "technical"
	Plan         = "plan"
	Cancellation = "cancellation"
	Delivery     = "delivery"
	Order        = "order"
	General      = "general"
)

// IntentTable is the lexicon of one intent category plus its optional
// sub-category keyword sets.
type IntentTable struct {
	Category      string
	Lexicon       *Lexicon
	Subcategories []KeywordSet
}

// SentimentTables groups the polarity lexicons and modifier lists.
type SentimentTables struct {
	Positive *Lexicon
	Negative *Lexicon
	Neutral  *Lexicon

	PositiveIntensifiers []string
	NegativeIntensifiers []string
	Negations            []string
	UrgencyKeywords      []string
	Emotions             []KeywordSet
}

// ComplaintTables groups the complaint lexicon and type cascade.
type ComplaintTables struct {
	Lexicon   *Lexicon
	Negations []string
	// Types is evaluated in order; the first set with a hit names the type.
	Types []KeywordSet
}

// Store is the full, immutable set of tables.
type Store struct {
	Intents   []IntentTable
	Sentiment SentimentTables
	Complaint ComplaintTables
}

// Intent returns the table for category, or nil.
func (s *Store) Intent(category string) *IntentTable {
	for i := range s.Intents {
		if s.Intents[i].Category == category {
			return &s.Intents[i]
		}
	}
	return nil
}

// Default returns the shared built-in tables. They are built on first use.
var Default = sync.OnceValue(build)

func build() *Store {
	return &Store{
		Intents: []IntentTable{
			{
				Category: Billing,
				Lexicon: &Lexicon{
					Name: Billing,
					Terms: Phrases(
						"facture", "facturation", "paiement", "prélèvement", "débit",
						"coût", "prix", "tarif", "montant", "euros", "€", "billing",
						"consommation", "dépassement", "forfait", "data", "go", "mo",
						"sms", "appel", "minute", "internet", "4g", "5g",
					),
					Patterns: Patterns(2.0,
						`combien.*coût`,
						`prix.*forfait`,
						`facture.*montant`,
						`dépassement.*data`,
						`consommation.*internet`,
					),
				},
				Subcategories: []KeywordSet{
					{Name: "data", Keywords: []string{"data", "internet", "4g", "5g", "go", "mo", "dépassement"}},
					{Name: "calls", Keywords: []string{"appel", "minute", "sms", "mms", "communication"}},
					{Name: "invoice", Keywords: []string{"facture", "prélèvement", "paiement", "montant"}},
				},
			},
			{
				Category: Technical,
				Lexicon: &Lexicon{
					Name: Technical,
					Terms: Phrases(
						"problème", "bug", "erreur", "ne marche pas", "fonctionne pas",
						"connexion", "réseau", "signal", "4g", "5g", "wifi", "bluetooth",
						"appareil", "téléphone", "smartphone", "sim", "carte sim",
						"dépannage", "redémarrage", "reset", "paramètres", "configuration",
					),
					Patterns: Patterns(2.0,
						`ne.*fonctionne.*pas`,
						`problème.*connexion`,
						`erreur.*réseau`,
						`signal.*faible`,
						`wifi.*marche.*pas`,
					),
				},
				Subcategories: []KeywordSet{
					{Name: "connection", Keywords: []string{"connexion", "réseau", "signal", "4g", "5g"}},
					{Name: "device", Keywords: []string{"téléphone", "smartphone", "appareil", "sim"}},
					{Name: "wifi", Keywords: []string{"wifi", "bluetooth", "paramètres"}},
				},
			},
			{
				Category: Plan,
				Lexicon: &Lexicon{
					Name: Plan,
					Terms: Phrases(
						"forfait", "offre", "tarif", "abonnement", "souscription",
						"changer", "modifier", "upgrade", "downgrade", "migration",
						"nouveau", "nouvelle", "promo", "réduction",
						"illimité", "data", "sms", "appels", "internet",
					),
					Patterns: Patterns(2.0,
						`changer.*forfait`,
						`nouveau.*forfait`,
						`offre.*disponible`,
						`migration.*forfait`,
						`tarif.*forfait`,
					),
				},
				Subcategories: []KeywordSet{
					{Name: "data", Keywords: []string{"data", "internet", "illimité", "limité"}},
					{Name: "communication", Keywords: []string{"appels", "sms", "illimité", "limité"}},
					{Name: "price", Keywords: []string{"prix", "tarif", "coût", "euros", "€"}},
				},
			},
			{
				Category: Cancellation,
				Lexicon: &Lexicon{
					Name: Cancellation,
					Terms: Phrases(
						"résilier", "résiliation", "annuler", "arrêter", "stopper",
						"quitter", "partir", "changer", "opérateur", "concurrent",
						"départ", "fin", "terminer", "clôturer", "fermer",
					),
					Patterns: Patterns(2.0,
						`résilier.*contrat`,
						`arrêter.*forfait`,
						`changer.*opérateur`,
						`partir.*free`,
						`annuler.*abonnement`,
					),
				},
			},
			{
				Category: Delivery,
				Lexicon: &Lexicon{
					Name: Delivery,
					Terms: Phrases(
						"livraison", "livrer", "expédition", "colis", "commande",
						"suivi", "tracking", "réception", "reçu", "arrivé",
						"retard", "en retard", "perdu", "volé", "vol",
					),
					Patterns: Patterns(2.0,
						`livraison.*commande`,
						`suivi.*colis`,
						`retard.*livraison`,
						`colis.*perdu`,
					),
				},
			},
			{
				Category: Order,
				Lexicon: &Lexicon{
					Name: Order,
					Terms: Phrases(
						"commander", "commande", "achat", "acheter", "souscrire",
						"souscription", "nouveau", "nouvelle", "sim", "carte",
						"téléphone", "smartphone", "appareil", "équipement",
					),
					Patterns: Patterns(2.0,
						`commander.*forfait`,
						`nouveau.*abonnement`,
						`souscrire.*offre`,
						`acheter.*sim`,
					),
				},
			},
		},

		Sentiment: SentimentTables{
			Positive: &Lexicon{
				Name: "positive",
				Terms: Phrases(
					"merci", "parfait", "excellent", "super", "génial", "fantastique",
					"bien", "bon", "satisfait", "content", "heureux", "ravi",
					"apprécier", "aimer", "adorer", "recommandé", "conseiller",
					"bravo", "félicitations", "chapeau", "top", "cool", "sympa",
				),
				Patterns: Patterns(3.0,
					`très.*bien`,
					`parfait.*service`,
					`excellent.*travail`,
					`je.*suis.*satisfait`,
					`merci.*beaucoup`,
				),
				Emojis:      []string{"😊", "😄", "😃", "😁", "😍", "🥰", "😘", "👍", "👏", "🎉", "✅"},
				EmojiWeight: 2.0,
			},
			Negative: &Lexicon{
				Name: "negative",
				Terms: Phrases(
					"nul", "nulle", "horrible", "terrible", "catastrophe", "désastre",
					"mauvais", "mal", "malheureux", "déçu", "décevant", "frustrant",
					"énervant", "agacé", "fâché", "en colère", "furieux", "exaspéré",
					"dégoûté", "révolté", "scandalisé", "indigné", "outré",
					"problème", "bug", "erreur", "dysfonctionnement", "panne",
				),
				Patterns: Patterns(3.0,
					`je.*suis.*déçu`,
					`c'est.*nul`,
					`ça.*marche.*pas`,
					`problème.*grave`,
					`service.*client.*nul`,
				),
				Emojis:      []string{"😠", "😡", "🤬", "😤", "😞", "😢", "😭", "👎", "❌", "💔", "😒"},
				EmojiWeight: 2.0,
			},
			Neutral: &Lexicon{
				Name: "neutral",
				Terms: Phrases(
					"question", "demande", "information", "renseignement",
					"comment", "pourquoi", "quand", "où", "combien",
					"besoin", "vouloir", "souhaiter", "désirer",
				),
				Patterns: Patterns(3.0,
					`j'ai.*une.*question`,
					`je.*voudrais.*savoir`,
					`pouvez.*vous.*m'aider`,
					`j'aimerais.*connaître`,
				),
			},
			PositiveIntensifiers: []string{"très", "vraiment", "extrêmement", "totalement", "complètement"},
			NegativeIntensifiers: []string{"très", "vraiment", "extrêmement", "totalement", "complètement", "absolument"},
			Negations:            []string{"pas", "ne", "n'", "jamais", "rien", "aucun", "nul"},
			UrgencyKeywords: []string{
				"urgent", "urgence", "immédiat", "tout de suite", "rapidement",
				"vite", "dépêche", "pressé", "critique", "grave", "important",
			},
			Emotions: []KeywordSet{
				{Name: "frustration", Keywords: []string{"frustré", "énervé", "agacé", "exaspéré", "irrité"}},
				{Name: "anger", Keywords: []string{"fâché", "en colère", "furieux", "rage", "indigné"}},
				{Name: "sadness", Keywords: []string{"triste", "déprimé", "déçu", "désolé", "malheureux"}},
				{Name: "joy", Keywords: []string{"heureux", "content", "joyeux", "gai", "enthousiaste"}},
				{Name: "surprise", Keywords: []string{"surpris", "étonné", "choqué", "stupéfait", "incroyable"}},
				{Name: "fear", Keywords: []string{"inquiet", "anxieux", "stressé", "paniqué", "terrifié"}},
				{Name: "confusion", Keywords: []string{"confus", "perdu", "perplexe", "désorienté", "embrouillé"}},
			},
		},

		Complaint: ComplaintTables{
			Lexicon: &Lexicon{
				Name: "complaint",
				Terms: append(
					Weighted(1.5, "nul", "horrible", "terrible", "catastrophe"),
					Weighted(1.0,
						"nulle", "désastre",
						"mauvais", "mal", "malheureux", "déçu", "décevant", "frustrant",
						"énervant", "agacé", "fâché", "en colère", "furieux", "exaspéré",
						"dégoûté", "révolté", "scandalisé", "indigné", "outré",
						"problème", "bug", "erreur", "dysfonctionnement", "panne",
						"plainte", "réclamation", "rémunération", "dédommagement",
					)...,
				),
				Patterns: Patterns(2.0,
					`je.*suis.*déçu`,
					`c'est.*nul`,
					`ça.*marche.*pas`,
					`service.*client.*nul`,
					`free.*mobile.*nul`,
					`jamais.*plus.*free`,
					`je.*vais.*changer`,
					`résilier.*contrat`,
					`plainte.*contre`,
					`réclamation.*free`,
				),
				Emojis:      []string{"😠", "😡", "🤬", "😤", "😞", "😢", "😭", "👎", "❌", "💔", "😒", "🤮", "🤢"},
				EmojiWeight: 0.5,
			},
			Negations: []string{"pas", "ne", "n'", "jamais", "rien", "aucun", "nul", "nulle"},
			Types: []KeywordSet{
				{Name: "billing", Keywords: []string{"facture", "facturation", "paiement", "prélèvement", "coût", "prix"}},
				{Name: "technical", Keywords: []string{"problème", "bug", "erreur", "connexion", "réseau", "signal", "wifi", "marche", "fonctionne"}},
				{Name: "customer_service", Keywords: []string{"service", "client", "support", "aide", "réponse", "attente"}},
				{Name: "cancellation", Keywords: []string{"résilier", "annuler", "arrêter", "changer", "opérateur"}},
			},
		},
	}
}
