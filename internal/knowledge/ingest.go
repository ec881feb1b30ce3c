package knowledge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/helpdesk/internal/retrieval"
)

// DefaultConcurrency bounds parallel embedding requests.
const DefaultConcurrency = 4

// Ingester embeds documents and adds them to an index.
type Ingester struct {
	embedder    retrieval.Embedder
	index       retrieval.Index
	concurrency int
	logger      log.Logger
}

// NewIngester creates an Ingester. concurrency <= 0 uses DefaultConcurrency.
func NewIngester(embedder retrieval.Embedder, index retrieval.Index, concurrency int, logger log.Logger) *Ingester {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Ingester{embedder: embedder, index: index, concurrency: concurrency, logger: logger}
}

// Ingest embeds the documents that have no embedding yet and adds the
// whole batch in one Add call. Nothing is added if any embedding fails.
func (in *Ingester) Ingest(ctx context.Context, docs []retrieval.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	out := make([]retrieval.Document, len(docs))
	copy(out, docs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for i := range out {
		if len(out[i].Embedding) > 0 {
			continue
		}
		g.Go(func() error {
			emb, err := in.embedder.Embed(gctx, out[i].Content)
			if err != nil {
				return fmt.Errorf("embed document %s: %w", out[i].ID, err)
			}
			out[i].Embedding = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := in.index.Add(ctx, out); err != nil {
		return 0, fmt.Errorf("add documents: %w", err)
	}
	in.logger.Info(ctx, "knowledge ingested", "documents", len(out))
	return len(out), nil
}
