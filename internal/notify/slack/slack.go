// Package slack sends support notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/helpdesk/internal/assistant"
	"github.com/linnemanlabs/helpdesk/internal/complaint"
	"github.com/linnemanlabs/helpdesk/internal/triage"
)

const (
	maxQuoteLen = 2000
	httpTimeout = 10 * time.Second
)

// Notifier sends urgent complaints and escalated messages to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, sends are no-ops.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Send posts an urgent complaint to the configured webhook.
func (n *Notifier) Send(ctx context.Context, r *triage.Result) error {
	return n.post(ctx, complaintMessage(r))
}

// SendEscalation posts a chat message that needs a human agent.
func (n *Notifier) SendEscalation(ctx context.Context, message string, c *assistant.Classification) error {
	return n.post(ctx, escalationMessage(message, c))
}

func (n *Notifier) post(ctx context.Context, msg map[string]any) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func complaintMessage(r *triage.Result) map[string]any {
	fields := []map[string]any{
		mrkdwn("*Auteur:* @" + r.Author),
		mrkdwn("*Type:* " + r.Type),
		mrkdwn("*Urgence:* " + r.Urgency),
		mrkdwn(fmt.Sprintf("*Score:* %.1f", r.Score)),
	}
	if r.ContactLink != nil {
		fields = append(fields, mrkdwn(fmt.Sprintf("*Lien de contact:* <%s|ouvrir>", r.ContactLink.URL)))
	}
	if r.URL != "" {
		fields = append(fields, mrkdwn(fmt.Sprintf("*Post:* <%s|voir>", r.URL)))
	}

	return map[string]any{
		"blocks": []map[string]any{
			header(fmt.Sprintf("%s Réclamation %s", urgencyEmoji(r.Urgency), r.Urgency)),
			{"type": "divider"},
			{"type": "section", "fields": fields},
			quote(r.Content),
			footer(fmt.Sprintf("helpdesk • post %s • %s", r.PostID, stamp(r.CreatedAt))),
		},
	}
}

func escalationMessage(message string, c *assistant.Classification) map[string]any {
	reason := c.EscalationReason
	if reason == "" {
		reason = "non précisée"
	}
	fields := []map[string]any{
		mrkdwn("*Raison:* " + reason),
		mrkdwn(fmt.Sprintf("*Intention:* %s (%.0f%%)", c.Intent.Category, c.Intent.Confidence*100)),
		mrkdwn(fmt.Sprintf("*Sentiment:* %s, urgence %s", c.Sentiment.Label, c.Sentiment.Urgency)),
		mrkdwn(fmt.Sprintf("*Confiance:* %.0f%%", c.Confidence*100)),
	}

	return map[string]any{
		"blocks": []map[string]any{
			header(urgencyEmoji(c.Sentiment.Urgency) + " Escalade vers un conseiller"),
			{"type": "divider"},
			{"type": "section", "fields": fields},
			quote(message),
			footer("helpdesk • " + stamp(time.Now())),
		},
	}
}

func header(text string) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{"type": "plain_text", "text": truncate(text, 150)},
	}
}

func mrkdwn(text string) map[string]any {
	return map[string]any{"type": "mrkdwn", "text": text}
}

func quote(text string) map[string]any {
	text = truncate(strings.TrimSpace(text), maxQuoteLen)
	if text == "" {
		text = "_Message vide._"
	} else {
		text = "> " + strings.ReplaceAll(text, "\n", "\n> ")
	}
	return map[string]any{"type": "section", "text": mrkdwn(text)}
}

func footer(text string) map[string]any {
	return map[string]any{
		"type":     "context",
		"elements": []map[string]any{mrkdwn(text)},
	}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func urgencyEmoji(urgency string) string {
	switch urgency {
	case complaint.UrgencyUrgent, complaint.UrgencyHigh:
		return "\U0001f534" // red circle
	case complaint.UrgencyMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

// truncate cuts s to at most limit runes, ending with "...".
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-3]) + "..."
}
