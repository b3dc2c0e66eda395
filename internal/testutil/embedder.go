package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockEmbedder provides deterministic embedding vectors for testing.
//
// By default it generates a vector from content using SHA-256, so the
// same content always embeds identically. Explicit mappings can be
// added for precise cosine similarity control.
//
// Thread-safe for concurrent use.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int
}

// NewMockEmbedder creates a mock embedder with the given vector dimensions.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector registers an explicit vector for a given content string.
// Use this to control exact cosine similarity between test inputs.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// RegisterEmbedder registers the mock as a Genkit embedder.
// The embedder name will be "mock/test-embedder".
func (e *MockEmbedder) RegisterEmbedder(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, "mock/test-embedder", &ai.EmbedderOptions{
		Label:      "Mock Test Embedder",
		Dimensions: e.dim,
	}, e.embed)
}

func (e *MockEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		embeddings[i] = &ai.Embedding{
			Embedding: e.vectorFor(documentText(doc)),
		}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func (e *MockEmbedder) vectorFor(content string) []float32 {
	e.mu.Lock()
	if v, ok := e.vectors[content]; ok {
		e.mu.Unlock()
		return v
	}
	e.mu.Unlock()

	return deterministicVector(content, e.dim)
}

// documentText extracts all text content from a Document's parts.
func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// deterministicVector generates a normalized vector from content using SHA-256.
func deterministicVector(content string, dim int) []float32 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)

	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		// Map to [-1, 1]
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	// Normalize to unit length
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec
}
