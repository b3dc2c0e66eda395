package vector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Record is one embedded chunk ready for storage.
// ID must be stable across re-ingestion so upserts overwrite rather
// than duplicate; use RecordID to derive it.
type Record struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Content    string
	Vector     []float32
	Metadata   map[string]string
}

// Result is a single search hit.
type Result struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Content    string
	Metadata   map[string]string
	Score      float32 // Cosine similarity (0-1), higher is more similar
}

// UpsertFailure reports one rejected record from a partial-failure upsert.
type UpsertFailure struct {
	ID  string
	Err error
}

// RecordID derives the stable storage identifier for a chunk from its
// document identifier and index within the document.
func RecordID(documentID string, chunkIndex int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s#%d", documentID, chunkIndex))
	return hex.EncodeToString(sum[:])
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK      int
	threshold float32
	filter    map[string]string
}

// WithTopK sets the maximum number of results to return.
// Default is 5 if not specified.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithThreshold drops results scoring below the given cosine similarity.
func WithThreshold(threshold float32) SearchOption {
	return func(c *searchConfig) {
		c.threshold = threshold
	}
}

// WithFilter adds a metadata filter to restrict search results.
// Multiple calls add additional filters (AND logic).
// Example: WithFilter("source", "https://example.com/week-1/intro")
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK: 5,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
