// Package vector stores embedded chunks in PostgreSQL + pgvector and
// performs cosine-similarity search over them.
package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// ErrUnavailable indicates the backing store cannot be reached.
var ErrUnavailable = errors.New("vector store unavailable")

// ErrDimensionMismatch indicates the configured embedding dimension does
// not match the chunks table. This is a fatal configuration error.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// upsertChunkSQL overwrites any existing record with the same id so
// re-ingestion never grows the store. The seq column keeps original
// insertion order for deterministic tie-breaks in Search.
const upsertChunkSQL = `INSERT INTO chunks (id, document_id, chunk_index, content, embedding, metadata)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE
	SET content = EXCLUDED.content,
	    embedding = EXCLUDED.embedding,
	    metadata = EXCLUDED.metadata,
	    updated_at = now()`

// Store manages embedded chunks backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a chunk Store.
func NewStore(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Upsert writes embedding records, overwriting existing records with the
// same identifier. Records the database rejects individually (oversized
// content, constraint violations) are reported in the returned failure
// list; the remaining records stay committed. An unreachable store
// aborts the whole call with ErrUnavailable.
func (s *Store) Upsert(ctx context.Context, records []Record) ([]UpsertFailure, error) {
	var failures []UpsertFailure

	for _, rec := range records {
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			failures = append(failures, UpsertFailure{ID: rec.ID, Err: fmt.Errorf("marshaling metadata: %w", err)})
			continue
		}

		_, err = s.db.Exec(ctx, upsertChunkSQL,
			rec.ID, rec.DocumentID, rec.ChunkIndex, rec.Content,
			pgvector.NewVector(rec.Vector), metadataJSON)
		if err == nil {
			continue
		}

		// A database-level rejection affects only this record; anything
		// else means the store itself is gone.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			failures = append(failures, UpsertFailure{ID: rec.ID, Err: err})
			s.logger.Warn("chunk rejected", "id", rec.ID, "error", err)
			continue
		}
		return failures, fmt.Errorf("%w: upserting chunk %q: %v", ErrUnavailable, rec.ID, err)
	}

	s.logger.Debug("upserted chunks", "count", len(records), "failed", len(failures))
	return failures, nil
}

// Search returns up to topK chunks ranked by descending cosine
// similarity to the query vector. Ties are broken by insertion order so
// repeated identical queries return identical results.
func (s *Store) Search(ctx context.Context, queryVector []float32, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)
	vec := pgvector.NewVector(queryVector)

	query := `SELECT id, document_id, chunk_index, content, metadata, 1 - (embedding <=> $1) AS score
		 FROM chunks`
	args := []any{vec}

	if len(cfg.filter) > 0 {
		filterJSON, err := json.Marshal(cfg.filter)
		if err != nil {
			return nil, fmt.Errorf("marshaling filter: %w", err)
		}
		query += ` WHERE metadata @> $2`
		args = append(args, filterJSON)
	}

	query += fmt.Sprintf(`
		 ORDER BY embedding <=> $1, seq
		 LIMIT %d`, cfg.topK)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: searching chunks: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var metadataJSON []byte
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Content, &metadataJSON, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for chunk %q: %w", r.ID, err)
			}
		}
		if r.Score < cfg.threshold {
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading search results: %v", ErrUnavailable, err)
	}

	return results, nil
}

// DeleteDocument removes all chunks belonging to a document.
// Used when a source disappears between ingestion runs.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting chunks for document %q: %v", ErrUnavailable, documentID, err)
	}
	return tag.RowsAffected(), nil
}

// CountDocument returns the number of stored chunks for a document.
func (s *Store) CountDocument(ctx context.Context, documentID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks for document %q: %v", ErrUnavailable, documentID, err)
	}
	return count, nil
}

// CheckDimension verifies the chunks table's vector column matches the
// configured embedding dimension. Called once at startup; a mismatch is
// fatal rather than a per-request failure.
func (s *Store) CheckDimension(ctx context.Context, want int) error {
	var dim int
	err := s.db.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'`).Scan(&dim)
	if err != nil {
		return fmt.Errorf("%w: reading embedding column dimension: %v", ErrUnavailable, err)
	}
	if dim != want {
		return fmt.Errorf("%w: table has %d, embedder configured for %d", ErrDimensionMismatch, dim, want)
	}
	return nil
}
