// Package retrieval stores embedded knowledge documents and answers
// similarity queries over them, then assembles the hits into a bounded
// context string for response generation.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when an embedding's length differs
	// from the vectors already held by the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidDocument is returned by Add for documents that cannot be
	// indexed.
	ErrInvalidDocument = errors.New("invalid document")
)

// Metadata keys every document must carry.
const (
	MetaType  = "type"
	MetaTitle = "title"
)

// Document is an indexed unit of knowledge.
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata"`
}

// Title returns the document title, or "Document" when it has none.
func (d Document) Title() string {
	if t := d.Metadata[MetaTitle]; t != "" {
		return t
	}
	return "Document"
}

// Hit is a search result.
type Hit struct {
	Document   Document `json:"document"`
	Similarity float64  `json:"similarity"`
}

// SearchOptions bounds a query. Filter entries must all equal the
// document's metadata values.
type SearchOptions struct {
	TopK      int
	Threshold float64
	Filter    map[string]string
}

// Index is a similarity index. Implementations are safe for concurrent use.
type Index interface {
	Add(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]Hit, error)
	Reset(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ValidateDocuments checks docs against the index dimension dim (0 when the
// index is empty) and returns the dimension the batch uses.
func ValidateDocuments(docs []Document, dim int) (int, error) {
	var errs []error
	for i, d := range docs {
		switch {
		case d.ID == "":
			errs = append(errs, fmt.Errorf("%w: document %d: missing id", ErrInvalidDocument, i))
			continue
		case len(d.Embedding) == 0:
			errs = append(errs, fmt.Errorf("%w: %s: missing embedding", ErrInvalidDocument, d.ID))
			continue
		case !finite(d.Embedding):
			errs = append(errs, fmt.Errorf("%w: %s: non-finite embedding", ErrInvalidDocument, d.ID))
			continue
		case Norm(d.Embedding) == 0:
			errs = append(errs, fmt.Errorf("%w: %s: zero embedding", ErrInvalidDocument, d.ID))
			continue
		}
		if d.Metadata[MetaType] == "" {
			errs = append(errs, fmt.Errorf("%w: %s: missing %q metadata", ErrInvalidDocument, d.ID, MetaType))
		}
		if d.Metadata[MetaTitle] == "" {
			errs = append(errs, fmt.Errorf("%w: %s: missing %q metadata", ErrInvalidDocument, d.ID, MetaTitle))
		}
		if dim == 0 {
			dim = len(d.Embedding)
		}
		if len(d.Embedding) != dim {
			errs = append(errs, fmt.Errorf("%w: %s: got %d, want %d", ErrDimensionMismatch, d.ID, len(d.Embedding), dim))
		}
	}
	return dim, errors.Join(errs...)
}

func finite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero norm have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Matches reports whether meta carries every filter entry.
func Matches(meta, filter map[string]string) bool {
	for k, v := range filter {
		if got, ok := meta[k]; !ok || got != v {
			return false
		}
	}
	return true
}
