// Package pgindex provides a PostgreSQL + pgvector implementation of
// retrieval.Index.
package pgindex

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/linnemanlabs/helpdesk/internal/retrieval"
)

var tracer = otel.Tracer("github.com/linnemanlabs/helpdesk/internal/retrieval/pgindex")

//go:embed schema.sql
var schema string

// Index stores documents in the knowledge_documents table.
type Index struct {
	pool *pgxpool.Pool
}

var _ retrieval.Index = (*Index)(nil)

// New applies the schema on pool and returns a ready Index. The pool stays
// owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Index, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Index{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Add upserts docs in one transaction after validating them against the
// dimension already stored.
func (x *Index) Add(ctx context.Context, docs []retrieval.Document) error {
	ctx, span := startSpan(ctx, "pgindex.Add", "UPSERT")
	defer span.End()
	span.SetAttributes(attribute.Int("documents", len(docs)))

	if len(docs) == 0 {
		return nil
	}

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	dim, err := dimension(ctx, tx)
	if err != nil {
		return fail(span, err)
	}
	if _, err := retrieval.ValidateDocuments(docs, dim); err != nil {
		return fail(span, fmt.Errorf("add documents: %w", err))
	}

	for _, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fail(span, fmt.Errorf("marshal metadata %s: %w", d.ID, err))
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO knowledge_documents (id, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET
				content   = EXCLUDED.content,
				metadata  = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding`,
			d.ID, d.Content, meta, pgvector.NewVector(d.Embedding),
		)
		if err != nil {
			return fail(span, fmt.Errorf("upsert document %s: %w", d.ID, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(span, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Search ranks documents by cosine similarity (1 - cosine distance).
func (x *Index) Search(ctx context.Context, query []float32, opts retrieval.SearchOptions) ([]retrieval.Hit, error) {
	ctx, span := startSpan(ctx, "pgindex.Search", "SELECT")
	defer span.End()

	if len(query) == 0 || retrieval.Norm(query) == 0 || opts.TopK <= 0 {
		return nil, nil
	}

	dim, err := dimension(ctx, x.pool)
	if err != nil {
		return nil, fail(span, err)
	}
	if dim == 0 {
		return nil, nil
	}
	if dim != len(query) {
		return nil, fail(span, fmt.Errorf("search: %w: got %d, want %d", retrieval.ErrDimensionMismatch, len(query), dim))
	}

	filter := opts.Filter
	if filter == nil {
		filter = map[string]string{}
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fail(span, fmt.Errorf("marshal filter: %w", err))
	}

	rows, err := x.pool.Query(ctx,
		`SELECT id, content, metadata, embedding, 1 - (embedding <=> $1) AS similarity
		 FROM knowledge_documents
		 WHERE metadata @> $2::jsonb
		   AND 1 - (embedding <=> $1) >= $3
		 ORDER BY similarity DESC, seq
		 LIMIT $4`,
		pgvector.NewVector(query), filterJSON, opts.Threshold, opts.TopK,
	)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query documents: %w", err))
	}
	defer rows.Close()

	var hits []retrieval.Hit
	for rows.Next() {
		var (
			h    retrieval.Hit
			meta []byte
			vec  pgvector.Vector
		)
		if err := rows.Scan(&h.Document.ID, &h.Document.Content, &meta, &vec, &h.Similarity); err != nil {
			return nil, fail(span, fmt.Errorf("scan document: %w", err))
		}
		if err := json.Unmarshal(meta, &h.Document.Metadata); err != nil {
			return nil, fail(span, fmt.Errorf("unmarshal metadata %s: %w", h.Document.ID, err))
		}
		h.Document.Embedding = vec.Slice()
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate documents: %w", err))
	}

	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

// Reset removes every document.
func (x *Index) Reset(ctx context.Context) error {
	ctx, span := startSpan(ctx, "pgindex.Reset", "TRUNCATE")
	defer span.End()

	if _, err := x.pool.Exec(ctx, `TRUNCATE knowledge_documents`); err != nil {
		return fail(span, fmt.Errorf("truncate: %w", err))
	}
	return nil
}

// Len counts indexed documents.
func (x *Index) Len(ctx context.Context) (int, error) {
	ctx, span := startSpan(ctx, "pgindex.Len", "SELECT")
	defer span.End()

	var n int
	if err := x.pool.QueryRow(ctx, `SELECT count(*) FROM knowledge_documents`).Scan(&n); err != nil {
		return 0, fail(span, fmt.Errorf("count: %w", err))
	}
	return n, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// dimension returns the dimension of stored embeddings, or 0 when the table
// is empty.
func dimension(ctx context.Context, q querier) (int, error) {
	var dim int
	err := q.QueryRow(ctx, `SELECT vector_dims(embedding) FROM knowledge_documents LIMIT 1`).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dimension: %w", err)
	}
	return dim, nil
}
