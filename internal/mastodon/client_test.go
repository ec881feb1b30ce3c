package mastodon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"The access token is invalid"}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(Config{InstanceURL: srv.URL + "/", AccessToken: "tok", RequestsPerSecond: 1000, Burst: 10})
}

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<p>Free Mobile c&#39;est nul !</p>", "Free Mobile c'est nul !"},
		{"<p>ligne 1<br>ligne 2</p><p>suite</p>", "ligne 1\nligne 2\n\nsuite"},
		{`<p><span class="h-card"><a href="https://m.social/@free">@<span>free</span></a></span> panne</p>`, "@free panne"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Text(tt.in); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHashtagTimeline(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/timelines/tag/FreeMobile" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("limit") != "20" {
			t.Errorf("limit = %q", r.URL.Query().Get("limit"))
		}
		_, _ = w.Write([]byte(`[{
			"id": "111",
			"url": "https://m.social/@alice/111",
			"content": "<p>Réseau en panne</p>",
			"created_at": "2026-03-01T10:00:00.000Z",
			"account": {"id": "1", "username": "alice", "acct": "alice@m.social"}
		}]`))
	})

	posts, err := c.HashtagTimeline(context.Background(), "#FreeMobile", 20)
	if err != nil {
		t.Fatalf("HashtagTimeline: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	p := posts[0]
	if p.ID != "111" || p.Author != "alice@m.social" || p.Content != "Réseau en panne" {
		t.Errorf("post = %+v", p)
	}
	if !p.CreatedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", p.CreatedAt)
	}
}

func TestMentions(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/notifications" || r.URL.Query().Get("types[]") != "mention" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[
			{"type": "mention", "status": {"id": "1", "content": "<p>@free aide</p>", "account": {"acct": "bob"}}},
			{"type": "favourite", "status": {"id": "2", "content": "x", "account": {"acct": "eve"}}},
			{"type": "mention"}
		]`))
	})

	posts, err := c.Mentions(context.Background(), 20)
	if err != nil {
		t.Fatalf("Mentions: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "1" || posts[0].Author != "bob" {
		t.Errorf("posts = %+v", posts)
	}
}

func TestPostReply(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		body map[string]string
		key  string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/statuses" {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		key = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"id": "999", "content": "ok", "account": {"acct": "free"}}`))
	})

	id, err := c.PostReply(context.Background(), "111", "Bonjour @alice")
	if err != nil {
		t.Fatalf("PostReply: %v", err)
	}
	if id != "999" {
		t.Errorf("id = %q, want 999", id)
	}

	mu.Lock()
	defer mu.Unlock()
	if body["in_reply_to_id"] != "111" || body["status"] != "Bonjour @alice" || body["visibility"] != "public" {
		t.Errorf("body = %v", body)
	}
	if key != "reply-111" {
		t.Errorf("Idempotency-Key = %q", key)
	}
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
	})

	_, err := c.VerifyCredentials(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "Too many requests" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestVerifyCredentials(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/verify_credentials" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"id": "7", "username": "freebot", "acct": "freebot"}`))
	})

	a, err := c.VerifyCredentials(context.Background())
	if err != nil {
		t.Fatalf("VerifyCredentials: %v", err)
	}
	if a.Username != "freebot" {
		t.Errorf("username = %q", a.Username)
	}
}

func TestRateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	c := New(Config{InstanceURL: "http://127.0.0.1:1", AccessToken: "tok", RequestsPerSecond: 0.001, Burst: 1})
	c.limiter.Allow() // drain the only token

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Mentions(ctx, 1); err == nil {
		t.Fatal("expected rate limit wait to fail on context deadline")
	}
}
