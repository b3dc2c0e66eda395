// Package ingest orchestrates fetching source documents, chunking and
// embedding them, and writing the results to the vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lecternhq/lectern/internal/chunk"
	"github.com/lecternhq/lectern/internal/vector"
)

// DefaultConcurrency bounds how many documents are processed at once.
// Kept low to respect embedding provider rate limits.
const DefaultConcurrency = 4

// Document is one fetched source document ready for chunking.
type Document struct {
	ID    string // URL or absolute file path
	Title string
	Text  string
}

// Source enumerates and fetches documents from one content origin
// (a sitemap, a markdown directory).
type Source interface {
	// Name identifies the source in logs and reports.
	Name() string

	// List returns references to every document the source offers.
	List(ctx context.Context) ([]string, error)

	// Fetch retrieves and extracts one document.
	Fetch(ctx context.Context, ref string) (Document, error)
}

// Embedder generates one vector per input text, order-preserving.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists embedded chunks.
type ChunkStore interface {
	Upsert(ctx context.Context, records []vector.Record) ([]vector.UpsertFailure, error)
}

// Report summarizes one ingestion run.
type Report struct {
	Source        string
	DocsAdded     int
	DocsSkipped   int
	DocsFailed    int
	ChunksWritten int
	Failures      []DocFailure
	Duration      time.Duration
}

// DocFailure records one document that could not be ingested.
type DocFailure struct {
	Ref string
	Err error
}

// Ingestor runs the chunk-embed-upsert pipeline over a Source.
type Ingestor struct {
	splitter    *chunk.Splitter
	embedder    Embedder
	store       ChunkStore
	checkpoint  *Checkpoint
	concurrency int
	logger      *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithConcurrency bounds the number of documents processed concurrently.
func WithConcurrency(n int) Option {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.concurrency = n
		}
	}
}

// WithCheckpoint enables resumable ingestion: completed documents are
// recorded and skipped on the next run.
func WithCheckpoint(cp *Checkpoint) Option {
	return func(ing *Ingestor) {
		ing.checkpoint = cp
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ing *Ingestor) {
		if logger != nil {
			ing.logger = logger
		}
	}
}

// New creates an Ingestor.
func New(splitter *chunk.Splitter, embedder Embedder, store ChunkStore, opts ...Option) *Ingestor {
	ing := &Ingestor{
		splitter:    splitter,
		embedder:    embedder,
		store:       store,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Run ingests every document the source offers. A single failed
// document is logged, recorded in the report, and skipped; it does not
// abort the remaining documents. An unreachable vector store aborts the
// whole run since nothing further can be written.
func (ing *Ingestor) Run(ctx context.Context, src Source) (*Report, error) {
	start := time.Now()

	refs, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents from %s: %w", src.Name(), err)
	}

	report := &Report{Source: src.Name()}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)

	for _, ref := range refs {
		if ing.checkpoint != nil && ing.checkpoint.Done(ref) {
			report.DocsSkipped++
			ing.logger.Debug("skipping completed document", "ref", ref)
			continue
		}

		g.Go(func() error {
			written, err := ing.ingestOne(gctx, src, ref)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// Losing the store kills the run; anything else is a
				// per-document failure.
				if errors.Is(err, vector.ErrUnavailable) {
					return err
				}
				report.DocsFailed++
				// A partial upsert still commits some chunks; count them.
				report.ChunksWritten += written
				report.Failures = append(report.Failures, DocFailure{Ref: ref, Err: err})
				ing.logger.Warn("document ingestion failed", "ref", ref, "error", err)
				return nil
			}

			report.DocsAdded++
			report.ChunksWritten += written
			if ing.checkpoint != nil {
				if cpErr := ing.checkpoint.MarkDone(ref); cpErr != nil {
					ing.logger.Warn("checkpoint update failed", "ref", ref, "error", cpErr)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	ing.logger.Info("ingestion run complete",
		"source", src.Name(),
		"added", report.DocsAdded,
		"skipped", report.DocsSkipped,
		"failed", report.DocsFailed,
		"chunks", report.ChunksWritten,
		"duration", report.Duration)
	return report, nil
}

// ingestOne runs the pipeline for a single document and returns the
// number of chunks written.
func (ing *Ingestor) ingestOne(ctx context.Context, src Source, ref string) (int, error) {
	doc, err := src.Fetch(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("fetching: %w", err)
	}

	chunks := ing.splitter.Split(doc.Text)
	if len(chunks) == 0 {
		// Empty documents are never sent to the embedder
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ing.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding: %w", err)
	}

	records := make([]vector.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vector.Record{
			ID:         vector.RecordID(doc.ID, c.Index),
			DocumentID: doc.ID,
			ChunkIndex: c.Index,
			Content:    c.Text,
			Vector:     vectors[i],
			Metadata: map[string]string{
				"source":      doc.ID,
				"title":       doc.Title,
				"chunk_index": strconv.Itoa(c.Index),
			},
		}
	}

	failures, err := ing.store.Upsert(ctx, records)
	if err != nil {
		return 0, err
	}
	if len(failures) > 0 {
		return len(records) - len(failures), fmt.Errorf("%d of %d chunks rejected (first: %v)",
			len(failures), len(records), failures[0].Err)
	}

	return len(records), nil
}
