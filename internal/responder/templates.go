package responder

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/helpdesk/internal/complaint"
)

const signature = "Cordialement,\nL'équipe Free Mobile 🆓"

var typeMessages = map[string]string{
	complaint.TypeBilling:         "Nous comprenons votre préoccupation concernant la facturation.",
	complaint.TypeTechnical:       "Nous sommes désolés pour les difficultés techniques que vous rencontrez.",
	complaint.TypeCustomerService: "Nous nous excusons pour la qualité de notre service client.",
	complaint.TypeCancellation:    "Nous comprenons votre souhait de résilier votre contrat.",
	complaint.TypeGeneral:         "Nous sommes désolés de constater votre mécontentement.",
}

var urgencyMessages = map[string]string{
	complaint.UrgencyUrgent: "Votre demande est prioritaire et sera traitée en urgence.",
	complaint.UrgencyHigh:   "Votre demande sera traitée rapidement par notre équipe.",
	complaint.UrgencyMedium: "Nous allons examiner votre demande attentivement.",
	complaint.UrgencyLow:    "Nous allons nous pencher sur votre demande.",
}

// Reply composes the public answer to a complaint. Urgent complaints get
// the escalation message.
func Reply(author, complaintType, urgency, contactURL string) string {
	if urgency == complaint.UrgencyUrgent {
		return Escalation(author, contactURL)
	}
	base, ok := typeMessages[complaintType]
	if !ok {
		base = typeMessages[complaint.TypeGeneral]
	}
	u, ok := urgencyMessages[urgency]
	if !ok {
		u = urgencyMessages[complaint.UrgencyMedium]
	}
	return compose(author,
		base+" "+u,
		"Pour vous aider au mieux, nous vous invitons à nous contacter directement via notre support client : "+contactURL,
		"Notre équipe se fera un plaisir de vous accompagner dans la résolution de votre problème.",
	)
}

// Escalation is the reply for complaints handed to a supervisor.
func Escalation(author, contactURL string) string {
	return compose(author,
		"Nous avons pris connaissance de votre message et nous comprenons votre frustration.",
		"Votre demande a été immédiatement transmise à notre équipe de supervision qui va vous contacter dans les plus brefs délais.",
		"En attendant, vous pouvez également nous contacter directement : "+contactURL,
		"Nous nous excusons sincèrement pour les désagréments causés.",
	)
}

// FollowUp is the message sent days after a first reply.
func FollowUp(author string, days int) string {
	switch days {
	case 1:
		return compose(author,
			"Nous espérons que notre équipe a pu vous aider hier.",
			"Si vous avez encore des questions ou si votre problème n'est pas résolu, n'hésitez pas à nous le faire savoir.",
		)
	case 3:
		return compose(author,
			"Nous souhaitons nous assurer que votre problème a été résolu.",
			"Si ce n'est pas le cas, notre équipe reste à votre disposition pour vous accompagner.",
		)
	default:
		return compose(author,
			"Nous espérons que tout va bien de votre côté.",
			"N'hésitez pas à nous contacter si vous avez besoin d'aide.",
		)
	}
}

func compose(author string, paragraphs ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour @%s,\n\n", strings.TrimPrefix(author, "@"))
	for _, p := range paragraphs {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	b.WriteString(signature)
	return b.String()
}
