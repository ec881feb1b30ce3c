// Package contactlink issues single-use, expiring links that let a
// complaining social-media user continue privately on the support form.
package contactlink

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned by Store.Get for unknown tokens.
var ErrNotFound = errors.New("contact link not found")

// tokenBytes gives 256-bit tokens.
const tokenBytes = 32

// Link is an issued contact link.
type Link struct {
	Token           string     `json:"token"`
	URL             string     `json:"url"`
	Author          string     `json:"author"`
	PostID          string     `json:"post_id"`
	OriginalContent string     `json:"original_content"`
	ComplaintType   string     `json:"complaint_type"`
	Urgency         string     `json:"urgency"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	Used            bool       `json:"used"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
}

// ValidAt reports whether the link can still be redeemed at now.
func (l *Link) ValidAt(now time.Time) bool {
	return !l.Used && now.Before(l.ExpiresAt)
}

// Context is the complaint a link is issued for.
type Context struct {
	Content       string
	ComplaintType string
	Urgency       string
}

// Store persists links. Consume must atomically mark a valid link used and
// return it; it returns (nil, false, nil) when the token is unknown, expired
// or already used.
type Store interface {
	Put(ctx context.Context, l *Link) error
	Get(ctx context.Context, token string) (*Link, error)
	Consume(ctx context.Context, token string, now time.Time) (*Link, bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// IssuerConfig configures an Issuer.
type IssuerConfig struct {
	BaseURL string
	TTL     time.Duration
	// Source is appended to the link as the source query parameter.
	Source string
}

// Issuer creates and redeems links.
type Issuer struct {
	store Store
	cfg   IssuerConfig
	now   func() time.Time
}

// NewIssuer returns an Issuer backed by store. TTL defaults to 24h and
// Source to "mastodon".
func NewIssuer(store Store, cfg IssuerConfig) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Source == "" {
		cfg.Source = "mastodon"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Issuer{store: store, cfg: cfg, now: time.Now}
}

// Issue creates and stores a new link for author's post.
func (i *Issuer) Issue(ctx context.Context, author, postID string, c Context) (*Link, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := i.now().UTC()
	l := &Link{
		Token:           token,
		URL:             i.url(token),
		Author:          author,
		PostID:          postID,
		OriginalContent: c.Content,
		ComplaintType:   c.ComplaintType,
		Urgency:         c.Urgency,
		CreatedAt:       now,
		ExpiresAt:       now.Add(i.cfg.TTL),
	}
	if err := i.store.Put(ctx, l); err != nil {
		return nil, fmt.Errorf("store contact link: %w", err)
	}
	return l, nil
}

// Validate redeems token. The first call on a valid link returns it with
// true and marks it used; every later call, and any call on an expired or
// unknown token, returns false.
func (i *Issuer) Validate(ctx context.Context, token string) (*Link, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	l, ok, err := i.store.Consume(ctx, token, i.now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("consume contact link: %w", err)
	}
	return l, ok, nil
}

// Lookup returns a link without redeeming it.
func (i *Issuer) Lookup(ctx context.Context, token string) (*Link, error) {
	return i.store.Get(ctx, token)
}

// PurgeExpired deletes links whose expiry has passed.
func (i *Issuer) PurgeExpired(ctx context.Context) (int, error) {
	return i.store.DeleteExpired(ctx, i.now().UTC())
}

func (i *Issuer) url(token string) string {
	return i.cfg.BaseURL + "/?token=" + url.QueryEscape(token) + "&source=" + url.QueryEscape(i.cfg.Source)
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
