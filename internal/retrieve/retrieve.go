// Package retrieve embeds user queries and finds the most similar
// stored chunks.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lecternhq/lectern/internal/vector"
)

// Embedder converts a query into a vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Searcher performs nearest-neighbor search over stored chunks.
type Searcher interface {
	Search(ctx context.Context, queryVector []float32, opts ...vector.SearchOption) ([]vector.Result, error)
}

// Retriever embeds a query and searches the vector store.
// It does not retry internally; retry is an orchestration concern.
type Retriever struct {
	embedder  Embedder
	searcher  Searcher
	threshold float32
	logger    *slog.Logger
}

// New creates a Retriever. threshold drops results scoring below the
// given cosine similarity; zero disables it.
func New(embedder Embedder, searcher Searcher, threshold float32, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder:  embedder,
		searcher:  searcher,
		threshold: threshold,
		logger:    logger,
	}
}

// Retrieve returns up to k chunks most similar to the query, ranked by
// descending similarity. Errors from the embedder and vector store
// propagate unchanged so callers can classify them.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, opts ...vector.SearchOption) ([]vector.Result, error) {
	queryVector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	searchOpts := append([]vector.SearchOption{
		vector.WithTopK(k),
		vector.WithThreshold(r.threshold),
	}, opts...)

	results, err := r.searcher.Search(ctx, queryVector, searchOpts...)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("retrieved chunks", "query_len", len(query), "k", k, "results", len(results))
	return results, nil
}
