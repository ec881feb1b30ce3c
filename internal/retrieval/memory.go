package retrieval

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemoryIndex is an in-process Index. Writers are serialized; searches run
// concurrently against a consistent snapshot.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs []Document
	pos  map[string]int
	dim  int
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{pos: make(map[string]int)}
}

// Add validates and stores docs. A document whose ID is already indexed is
// replaced in place. Nothing is stored if any document is invalid.
func (m *MemoryIndex) Add(_ context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dim, err := ValidateDocuments(docs, m.dim)
	if err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	m.dim = dim

	for _, d := range docs {
		d = clone(d)
		if i, ok := m.pos[d.ID]; ok {
			m.docs[i] = d
			continue
		}
		m.pos[d.ID] = len(m.docs)
		m.docs = append(m.docs, d)
	}
	return nil
}

// Search ranks documents by cosine similarity to query. Filtering happens
// before the threshold and top-k cut. Ties keep insertion order.
func (m *MemoryIndex) Search(_ context.Context, query []float32, opts SearchOptions) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.docs) == 0 || len(query) == 0 || Norm(query) == 0 || opts.TopK <= 0 {
		return nil, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("search: %w: got %d, want %d", ErrDimensionMismatch, len(query), m.dim)
	}

	var hits []Hit
	for _, d := range m.docs {
		if !Matches(d.Metadata, opts.Filter) {
			continue
		}
		sim := Cosine(query, d.Embedding)
		// NaN compares false both ways; only a real score at or above the
		// threshold passes.
		if !(sim >= opts.Threshold) {
			continue
		}
		hits = append(hits, Hit{Document: clone(d), Similarity: sim})
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})
	if len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

// Reset drops every document.
func (m *MemoryIndex) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = nil
	m.pos = make(map[string]int)
	m.dim = 0
	return nil
}

// Len returns the number of indexed documents.
func (m *MemoryIndex) Len(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func clone(d Document) Document {
	d.Embedding = slices.Clone(d.Embedding)
	d.Metadata = maps.Clone(d.Metadata)
	return d
}
