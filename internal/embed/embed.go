// Package embed wraps a Genkit embedder with batching and dimension checks.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
)

// ErrProvider indicates the embedding provider failed (rate limit,
// network failure, invalid API key). Callers decide retry policy.
var ErrProvider = errors.New("embedding provider error")

// ErrDimension indicates the provider returned vectors of an unexpected
// dimension. This is a configuration error, not a per-request failure.
var ErrDimension = errors.New("embedding dimension mismatch")

// DefaultBatchSize bounds the number of texts per provider call.
const DefaultBatchSize = 96

// Service generates embeddings for batches of text.
// It splits oversized batches into multiple provider calls and
// concatenates the results in input order.
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	embedder  ai.Embedder
	batchSize int
	dimension int
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBatchSize sets the maximum number of texts per provider call.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithDimension enables validation that every returned vector has the
// given dimension. Zero disables the check.
func WithDimension(d int) Option {
	return func(s *Service) {
		if d > 0 {
			s.dimension = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service around the given embedder.
func New(embedder ai.Embedder, opts ...Option) *Service {
	s := &Service{
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EmbedTexts returns one vector per input text, order-preserving.
// Inputs beyond the batch size limit are split into multiple provider
// calls. An empty input returns an empty result without calling the
// provider.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	s.logger.Debug("embedded texts", "count", len(texts), "batch_size", s.batchSize)
	return vectors, nil
}

// EmbedText embeds a single text, typically a search query.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = &ai.Document{Content: []*ai.Part{ai.NewTextPart(text)}}
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProvider, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ErrProvider, i)
		}
		if s.dimension > 0 && len(e.Embedding) != s.dimension {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimension, s.dimension, len(e.Embedding))
		}
		vectors[i] = e.Embedding
	}
	return vectors, nil
}
