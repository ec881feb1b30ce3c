// Package pgstore provides a PostgreSQL implementation of contactlink.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/helpdesk/internal/contactlink"
)

var tracer = otel.Tracer("github.com/linnemanlabs/helpdesk/internal/contactlink/pgstore")

//go:embed schema.sql
var schema string

// Store persists contact links in PostgreSQL.
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

const linkColumns = `token, url, author, post_id, original_content, complaint_type, urgency,
	created_at, expires_at, used, used_at`

// Put inserts a link.
func (s *Store) Put(ctx context.Context, l *contactlink.Link) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO contact_links (`+linkColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.Token, l.URL, l.Author, l.PostID, l.OriginalContent, l.ComplaintType, l.Urgency,
		l.CreatedAt, l.ExpiresAt, l.Used, l.UsedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert contact link: %w", err)
	}
	return nil
}

// Get returns the link for token or contactlink.ErrNotFound.
func (s *Store) Get(ctx context.Context, token string) (*contactlink.Link, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	l, err := scanLink(s.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM contact_links WHERE token = $1`, token))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if l == nil {
		return nil, contactlink.ErrNotFound
	}
	return l, nil
}

// Consume marks the link used in a single conditional UPDATE, so concurrent
// redemptions of the same token succeed at most once.
func (s *Store) Consume(ctx context.Context, token string, now time.Time) (*contactlink.Link, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Consume", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	l, err := scanLink(s.pool.QueryRow(ctx,
		`UPDATE contact_links SET used = true, used_at = $2
		 WHERE token = $1 AND NOT used AND expires_at > $2
		 RETURNING `+linkColumns,
		token, now,
	))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if l == nil {
		return nil, false, nil
	}
	return l, true, nil
}

// DeleteExpired removes links that expired at or before now.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "pgstore.DeleteExpired", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DELETE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx, `DELETE FROM contact_links WHERE expires_at <= $1`, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("delete expired contact links: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanLink returns (nil, nil) when no row is found.
func scanLink(row pgx.Row) (*contactlink.Link, error) {
	var l contactlink.Link
	err := row.Scan(
		&l.Token, &l.URL, &l.Author, &l.PostID, &l.OriginalContent, &l.ComplaintType, &l.Urgency,
		&l.CreatedAt, &l.ExpiresAt, &l.Used, &l.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan contact link: %w", err)
	}
	return &l, nil
}
