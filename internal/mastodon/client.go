// Package mastodon is a small client for the Mastodon REST API covering
// what social listening needs: hashtag timelines, mentions and replies.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/linnemanlabs/helpdesk/internal/triage"
)

// Config configures a Client.
type Config struct {
	InstanceURL string
	AccessToken string
	// RequestsPerSecond paces outbound calls. Zero means 1.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	// Transport is wrapped with OpenTelemetry instrumentation. Nil uses
	// http.DefaultTransport.
	Transport http.RoundTripper
}

// Client talks to one Mastodon instance.
type Client struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	return &Client{
		base:  strings.TrimRight(cfg.InstanceURL, "/"),
		token: cfg.AccessToken,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(cfg.Transport),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mastodon api error %d: %s", e.StatusCode, e.Message)
}

// Account is a Mastodon account.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
	URL      string `json:"url"`
}

type status struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Account   Account   `json:"account"`
}

func (s status) post() triage.Post {
	return triage.Post{
		ID:        s.ID,
		Author:    s.Account.Acct,
		Content:   Text(s.Content),
		URL:       s.URL,
		CreatedAt: s.CreatedAt,
	}
}

type notification struct {
	Type   string  `json:"type"`
	Status *status `json:"status"`
}

// VerifyCredentials returns the account the token belongs to.
func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	var a Account
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts/verify_credentials", nil, nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// HashtagTimeline returns the most recent public posts tagged with tag.
// A leading '#' is ignored.
func (c *Client) HashtagTimeline(ctx context.Context, tag string, limit int) ([]triage.Post, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var statuses []status
	if err := c.do(ctx, http.MethodGet, "/api/v1/timelines/tag/"+url.PathEscape(tag), q, nil, nil, &statuses); err != nil {
		return nil, err
	}
	posts := make([]triage.Post, 0, len(statuses))
	for _, s := range statuses {
		posts = append(posts, s.post())
	}
	return posts, nil
}

// Mentions returns the posts of recent mention notifications.
func (c *Client) Mentions(ctx context.Context, limit int) ([]triage.Post, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Add("types[]", "mention")

	var notes []notification
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications", q, nil, nil, &notes); err != nil {
		return nil, err
	}
	var posts []triage.Post
	for _, n := range notes {
		if n.Type == "mention" && n.Status != nil {
			posts = append(posts, n.Status.post())
		}
	}
	return posts, nil
}

// PostReply publishes a public reply and returns the new status ID. The
// replied-to ID doubles as idempotency key, so a retried reply is not
// published twice.
func (c *Client) PostReply(ctx context.Context, inReplyToID, text string) (string, error) {
	body := map[string]string{
		"status":         text,
		"in_reply_to_id": inReplyToID,
		"visibility":     "public",
	}
	var s status
	hdr := http.Header{"Idempotency-Key": []string{"reply-" + inReplyToID}}
	if err := c.do(ctx, http.MethodPost, "/api/v1/statuses", nil, hdr, body, &s); err != nil {
		return "", err
	}
	return s.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, header http.Header, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mastodon rate limit: %w", err)
	}

	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func errorMessage(b []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(b))
}
