package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/helpdesk/internal/assistant"
	"github.com/linnemanlabs/helpdesk/internal/intent"
	"github.com/linnemanlabs/helpdesk/internal/sentiment"
	"github.com/linnemanlabs/helpdesk/internal/triage"
)

func captureServer(t *testing.T) (*httptest.Server, func() map[string]any) {
	t.Helper()
	var (
		mu  sync.Mutex
		got map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		mu.Lock()
		defer mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return got
	}
}

func blockText(t *testing.T, payload map[string]any, i int) string {
	t.Helper()
	blocks, ok := payload["blocks"].([]any)
	if !ok || i >= len(blocks) {
		t.Fatalf("payload has no block %d: %v", i, payload)
	}
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(blocks[i]); err != nil {
		t.Fatalf("encode block %d: %v", i, err)
	}
	return b.String()
}

func TestSend_PostsComplaint(t *testing.T) {
	t.Parallel()

	srv, payload := captureServer(t)
	n := New(srv.URL)
	r := &triage.Result{
		ID:          "01JN123",
		PostID:      "111",
		Author:      "alice@m.social",
		Content:     "Free Mobile en panne depuis 3 jours !!!",
		IsComplaint: true,
		Score:       8.2,
		Urgency:     "urgent",
		Type:        "technical",
		ContactLink: &triage.LinkRef{URL: "https://support/?token=abc&source=mastodon"},
		CreatedAt:   time.Date(2026, 3, 1, 14, 23, 0, 0, time.UTC),
	}

	if err := n.Send(context.Background(), r); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := payload()
	if blocks := got["blocks"].([]any); len(blocks) != 5 {
		t.Fatalf("blocks = %d, want 5", len(blocks))
	}
	if h := blockText(t, got, 0); !strings.Contains(h, "\U0001f534") || !strings.Contains(h, "urgent") {
		t.Errorf("header = %s", h)
	}
	fields := blockText(t, got, 2)
	for _, want := range []string{"@alice@m.social", "technical", "8.2", "token=abc"} {
		if !strings.Contains(fields, want) {
			t.Errorf("fields missing %q: %s", want, fields)
		}
	}
	if q := blockText(t, got, 3); !strings.Contains(q, "> Free Mobile en panne") {
		t.Errorf("quote = %s", q)
	}
	if f := blockText(t, got, 4); !strings.Contains(f, "2026-03-01 14:23 UTC") {
		t.Errorf("footer = %s", f)
	}
}

func TestSendEscalation(t *testing.T) {
	t.Parallel()

	srv, payload := captureServer(t)
	n := New(srv.URL)
	c := &assistant.Classification{
		Intent:           intent.Result{Category: "cancellation", Confidence: 0.384},
		Sentiment:        sentiment.Result{Label: "negative", Urgency: "high"},
		Escalate:         true,
		EscalationReason: "keyword:avocat",
		Confidence:       0.6,
	}

	if err := n.SendEscalation(context.Background(), "Je vais contacter mon avocat", c); err != nil {
		t.Fatalf("SendEscalation: %v", err)
	}

	got := payload()
	fields := blockText(t, got, 2)
	for _, want := range []string{"keyword:avocat", "cancellation (38%)", "negative, urgence high", "60%"} {
		if !strings.Contains(fields, want) {
			t.Errorf("fields missing %q: %s", want, fields)
		}
	}
	if q := blockText(t, got, 3); !strings.Contains(q, "mon avocat") {
		t.Errorf("quote = %s", q)
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.Send(context.Background(), &triage.Result{}); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
	if err := n.SendEscalation(context.Background(), "x", &assistant.Classification{}); err != nil {
		t.Fatalf("SendEscalation with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	err := New(srv.URL).Send(context.Background(), &triage.Result{ID: "01JN789"})
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}

func TestQuote_Truncates(t *testing.T) {
	t.Parallel()

	q := quote(strings.Repeat("é", 3000))
	text := q["text"].(map[string]any)["text"].(string)
	if n := utf8.RuneCountInString(text); n != maxQuoteLen+2 {
		t.Errorf("quote runes = %d, want %d", n, maxQuoteLen+2)
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated quote to end with ...")
	}
	if !utf8.ValidString(text) {
		t.Error("truncation split a rune")
	}
}

func TestUrgencyEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		urgency, want string
	}{
		{"urgent", "\U0001f534"},
		{"high", "\U0001f534"},
		{"medium", "\U0001f7e1"},
		{"low", "\U0001f7e2"},
		{"", "\U0001f7e2"},
	}
	for _, tt := range tests {
		if got := urgencyEmoji(tt.urgency); got != tt.want {
			t.Errorf("urgencyEmoji(%q) = %q, want %q", tt.urgency, got, tt.want)
		}
	}
}

func FuzzComplaintMessage(f *testing.F) {
	f.Add("alice", "Free Mobile c'est nul", "urgent", "technical")
	f.Add("", "", "", "")
	f.Add("<@U123>", "*bold* _italic_ ~strike~\n> quote", "high", "billing")
	f.Add("a\x00b", strings.Repeat("x", 10000), "low", "general")

	f.Fuzz(func(t *testing.T, author, content, urgency, typ string) {
		msg := complaintMessage(&triage.Result{Author: author, Content: content, Urgency: urgency, Type: typ})
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("complaintMessage produced non-marshalable output: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("payload does not round-trip: %v", err)
		}
		if blocks, ok := decoded["blocks"].([]any); !ok || len(blocks) != 5 {
			t.Fatalf("blocks = %v", decoded["blocks"])
		}
	})
}
