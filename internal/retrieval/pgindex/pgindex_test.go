package pgindex_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/helpdesk/internal/retrieval"
	"github.com/linnemanlabs/helpdesk/internal/retrieval/pgindex"
)

func openIndex(t *testing.T) *pgindex.Index {
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

	idx, err := pgindex.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgindex.New: %v", err)
	}
	if err := idx.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	return idx
}

func doc(id, typ string, emb ...float32) retrieval.Document {
	return retrieval.Document{
		ID:        id,
		Content:   "content " + id,
		Embedding: emb,
		Metadata:  map[string]string{retrieval.MetaType: typ, retrieval.MetaTitle: "title " + id},
	}
}

// The integration tests share one table, so they run sequentially.
func TestIndex(t *testing.T) {
	idx := openIndex(t)
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		hits, err := idx.Search(ctx, []float32{1, 0, 0}, retrieval.SearchOptions{TopK: 3})
		if err != nil || len(hits) != 0 {
			t.Fatalf("hits=%v err=%v", hits, err)
		}
	})

	err := idx.Add(ctx, []retrieval.Document{
		doc("a", "billing", 1, 0, 0),
		doc("b", "billing", 1, 0.1, 0),
		doc("c", "technical", 0, 1, 0),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	t.Run("ranked", func(t *testing.T) {
		hits, err := idx.Search(ctx, []float32{1, 0, 0}, retrieval.SearchOptions{TopK: 5, Threshold: 0.5})
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 2 || hits[0].Document.ID != "a" || hits[1].Document.ID != "b" {
			t.Fatalf("hits = %+v", hits)
		}
		if hits[0].Document.Metadata[retrieval.MetaTitle] != "title a" {
			t.Errorf("metadata = %v", hits[0].Document.Metadata)
		}
		if len(hits[0].Document.Embedding) != 3 {
			t.Errorf("embedding = %v", hits[0].Document.Embedding)
		}
	})

	t.Run("filter", func(t *testing.T) {
		hits, err := idx.Search(ctx, []float32{1, 1, 0}, retrieval.SearchOptions{
			TopK:   5,
			Filter: map[string]string{retrieval.MetaType: "technical"},
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 1 || hits[0].Document.ID != "c" {
			t.Fatalf("hits = %+v", hits)
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := idx.Search(ctx, []float32{1, 0}, retrieval.SearchOptions{TopK: 1})
		if !errors.Is(err, retrieval.ErrDimensionMismatch) {
			t.Fatalf("err = %v", err)
		}
		err = idx.Add(ctx, []retrieval.Document{doc("d", "x", 1, 0)})
		if !errors.Is(err, retrieval.ErrDimensionMismatch) {
			t.Fatalf("Add err = %v", err)
		}
	})

	t.Run("upsert and len", func(t *testing.T) {
		if err := idx.Add(ctx, []retrieval.Document{doc("a", "plan", 0, 0, 1)}); err != nil {
			t.Fatal(err)
		}
		n, err := idx.Len(ctx)
		if err != nil || n != 3 {
			t.Fatalf("Len = %d, %v; want 3", n, err)
		}
	})

	t.Run("reset", func(t *testing.T) {
		if err := idx.Reset(ctx); err != nil {
			t.Fatal(err)
		}
		n, err := idx.Len(ctx)
		if err != nil || n != 0 {
			t.Fatalf("Len = %d, %v; want 0", n, err)
		}
	})
}
