package pgstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/helpdesk/internal/contactlink"
	"github.com/linnemanlabs/helpdesk/internal/contactlink/pgstore"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("HELPDESK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("HELPDESK_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func link(token string, now time.Time, ttl time.Duration) *contactlink.Link {
	return &contactlink.Link{
		Token:           token,
		URL:             "https://x/?token=" + token + "&source=mastodon",
		Author:          "alice",
		PostID:          "post-" + token,
		OriginalContent: "c'est nul",
		ComplaintType:   "technical",
		Urgency:         "high",
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
}

func TestPutGetConsume(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond).UTC()
	token := "pg-consume-" + now.Format("150405.000000")

	if err := s.Put(ctx, link(token, now, time.Hour)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Author != "alice" || !got.ExpiresAt.Equal(now.Add(time.Hour)) || got.Used {
		t.Errorf("Get = %+v", got)
	}

	l, ok, err := s.Consume(ctx, token, now.Add(time.Minute))
	if err != nil || !ok {
		t.Fatalf("Consume = %v, %v", ok, err)
	}
	if !l.Used || l.UsedAt == nil {
		t.Errorf("consumed link = %+v", l)
	}

	if _, ok, err := s.Consume(ctx, token, now.Add(2*time.Minute)); ok || err != nil {
		t.Errorf("second Consume = %v, %v", ok, err)
	}
}

func TestConsumeExpired(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond).UTC()
	token := "pg-expired-" + now.Format("150405.000000")

	if err := s.Put(ctx, link(token, now, time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Consume(ctx, token, now.Add(time.Hour)); ok || err != nil {
		t.Errorf("Consume at expiry = %v, %v", ok, err)
	}

	n, err := s.DeleteExpired(ctx, now.Add(time.Hour))
	if err != nil || n < 1 {
		t.Fatalf("DeleteExpired = %d, %v", n, err)
	}
	if _, err := s.Get(ctx, token); !errors.Is(err, contactlink.ErrNotFound) {
		t.Errorf("Get after purge err = %v", err)
	}
}
