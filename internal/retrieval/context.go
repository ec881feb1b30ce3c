package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/helpdesk/internal/lexicon"
)

// Ellipsis marks a truncated context.
const Ellipsis = "..."

// Assemble renders hits in rank order as "**title**\ncontent" blocks joined
// by a blank line. Output longer than maxChars runes is cut at maxChars runes
// and suffixed with Ellipsis. maxChars <= 0 disables the cut.
func Assemble(hits []Hit, maxChars int) string {
	if len(hits) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		blocks = append(blocks, "**"+h.Document.Title()+"**\n"+h.Document.Content)
	}
	out := strings.Join(blocks, "\n\n")

	if maxChars <= 0 {
		return out
	}
	r := []rune(out)
	if len(r) <= maxChars {
		return out
	}
	return string(r[:maxChars]) + Ellipsis
}

// Options tunes a Retriever.
type Options struct {
	TopK       int
	Threshold  float64
	MaxContext int
	// Timeout bounds embedding plus search. Zero means no extra bound.
	Timeout time.Duration
}

// DefaultOptions returns TopK 5, Threshold 0.7, MaxContext 2048.
func DefaultOptions() Options {
	return Options{TopK: 5, Threshold: 0.7, MaxContext: 2048, Timeout: 10 * time.Second}
}

// Retriever embeds a query and assembles the best matching documents.
type Retriever struct {
	embedder Embedder
	index    Index
	opts     Options
	logger   log.Logger
}

// NewRetriever returns a Retriever. Zero TopK and MaxContext take their
// defaults. Threshold is used as given, so 0 is a valid cut; start from
// DefaultOptions for the usual 0.7.
func NewRetriever(embedder Embedder, index Index, opts Options, logger log.Logger) *Retriever {
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.MaxContext <= 0 {
		opts.MaxContext = def.MaxContext
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Retriever{embedder: embedder, index: index, opts: opts, logger: logger}
}

// Search embeds query and returns ranked hits restricted to filter.
func (r *Retriever) Search(ctx context.Context, query string, filter map[string]string) ([]Hit, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.index.Search(ctx, vec, SearchOptions{
		TopK:      r.opts.TopK,
		Threshold: r.opts.Threshold,
		Filter:    filter,
	})
}

// Context returns the assembled knowledge for query, restricted to documents
// of the given category unless it is general. It reports false when nothing
// relevant was found or retrieval failed; failures are logged, never returned.
func (r *Retriever) Context(ctx context.Context, query, category string) (string, bool) {
	if r == nil || r.embedder == nil || r.index == nil || strings.TrimSpace(query) == "" {
		return "", false
	}

	var filter map[string]string
	if category != "" && category != lexicon.General {
		filter = map[string]string{MetaType: category}
	}

	hits, err := r.Search(ctx, query, filter)
	if err != nil {
		r.logger.Warn(ctx, "knowledge retrieval failed", "category", category, "error", err)
		return "", false
	}
	if len(hits) == 0 {
		return "", false
	}
	return Assemble(hits, r.opts.MaxContext), true
}
