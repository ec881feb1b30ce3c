// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/helpdesk/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/helpdesk/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists triage results in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const resultColumns = `id, post_id, author, content, url, posted_at, is_complaint, score, confidence,
	urgency, complaint_type, tone, keywords, patterns, link_token, link_url, link_expires_at, created_at`

// Get retrieves a triage result by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Result, bool, error) {
	return s.getOne(ctx, "pgstore.Get", `SELECT `+resultColumns+` FROM triaged_posts WHERE id = $1`, id)
}

// GetByPostID retrieves the triage result recorded for a post.
func (s *Store) GetByPostID(ctx context.Context, postID string) (*triage.Result, bool, error) {
	return s.getOne(ctx, "pgstore.GetByPostID", `SELECT `+resultColumns+` FROM triaged_posts WHERE post_id = $1`, postID)
}

func (s *Store) getOne(ctx context.Context, name, query string, arg string) (*triage.Result, bool, error) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	r, err := scanResult(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// Put inserts or updates a triage result. A post keeps a single row; a
// second Put for the same post replaces the earlier result.
func (s *Store) Put(ctx context.Context, r *triage.Result) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	if err := s.upsert(ctx, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, r *triage.Result) error {
	keywords, err := marshalList(r.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}
	patterns, err := marshalList(r.Patterns)
	if err != nil {
		return fmt.Errorf("marshal patterns: %w", err)
	}

	var postedAt *time.Time
	if !r.PostedAt.IsZero() {
		postedAt = &r.PostedAt
	}

	var (
		linkToken, linkURL *string
		linkExpires        *time.Time
	)
	if l := r.ContactLink; l != nil {
		linkToken, linkURL, linkExpires = &l.Token, &l.URL, &l.ExpiresAt
	}

	query := `INSERT INTO triaged_posts (` + resultColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	ON CONFLICT (post_id) DO UPDATE SET
		id              = EXCLUDED.id,
		author          = EXCLUDED.author,
		content         = EXCLUDED.content,
		url             = EXCLUDED.url,
		posted_at       = EXCLUDED.posted_at,
		is_complaint    = EXCLUDED.is_complaint,
		score           = EXCLUDED.score,
		confidence      = EXCLUDED.confidence,
		urgency         = EXCLUDED.urgency,
		complaint_type  = EXCLUDED.complaint_type,
		tone            = EXCLUDED.tone,
		keywords        = EXCLUDED.keywords,
		patterns        = EXCLUDED.patterns,
		link_token      = EXCLUDED.link_token,
		link_url        = EXCLUDED.link_url,
		link_expires_at = EXCLUDED.link_expires_at,
		created_at      = EXCLUDED.created_at`

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.PostID, r.Author, r.Content, r.URL, postedAt, r.IsComplaint, r.Score, r.Confidence,
		r.Urgency, r.Type, r.Tone, keywords, patterns, linkToken, linkURL, linkExpires, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert triaged post: %w", err)
	}
	return nil
}

func marshalList(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}

// scanResult scans a single row into a triage.Result.
// Returns (nil, nil) when no row is found.
func scanResult(row pgx.Row) (*triage.Result, error) {
	var (
		r                  triage.Result
		postedAt           *time.Time
		keywords, patterns []byte
		linkToken, linkURL *string
		linkExpires        *time.Time
	)

	err := row.Scan(
		&r.ID, &r.PostID, &r.Author, &r.Content, &r.URL, &postedAt, &r.IsComplaint, &r.Score, &r.Confidence,
		&r.Urgency, &r.Type, &r.Tone, &keywords, &patterns, &linkToken, &linkURL, &linkExpires, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	if postedAt != nil {
		r.PostedAt = *postedAt
	}
	if err := unmarshalList(keywords, &r.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords: %w", err)
	}
	if err := unmarshalList(patterns, &r.Patterns); err != nil {
		return nil, fmt.Errorf("unmarshal patterns: %w", err)
	}
	if linkToken != nil {
		r.ContactLink = &triage.LinkRef{Token: *linkToken}
		if linkURL != nil {
			r.ContactLink.URL = *linkURL
		}
		if linkExpires != nil {
			r.ContactLink.ExpiresAt = *linkExpires
		}
	}
	return &r, nil
}

func unmarshalList(b []byte, dst *[]string) error {
	if err := json.Unmarshal(b, dst); err != nil {
		return err
	}
	if len(*dst) == 0 {
		*dst = nil
	}
	return nil
}
