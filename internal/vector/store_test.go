package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/lecternhq/lectern/internal/testutil"
)

func TestRecordID_Stable(t *testing.T) {
	a := RecordID("https://example.com/week-1/intro", 0)
	b := RecordID("https://example.com/week-1/intro", 0)
	if a != b {
		t.Errorf("same inputs produced different IDs: %q vs %q", a, b)
	}

	c := RecordID("https://example.com/week-1/intro", 1)
	if a == c {
		t.Error("different chunk indexes produced the same ID")
	}

	d := RecordID("https://example.com/week-2/intro", 0)
	if a == d {
		t.Error("different documents produced the same ID")
	}
}

func TestNewStore_RequiresDB(t *testing.T) {
	if _, err := NewStore(nil, nil); err == nil {
		t.Error("expected error for nil db")
	}
}

// unitVec builds a 768-dim unit vector with a single non-zero axis,
// giving exact control over pairwise cosine similarity.
func unitVec(axis int) []float32 {
	v := make([]float32, 768)
	v[axis] = 1
	return v
}

func testRecord(docID string, index int, axis int) Record {
	return Record{
		ID:         RecordID(docID, index),
		DocumentID: docID,
		ChunkIndex: index,
		Content:    "chunk content",
		Vector:     unitVec(axis),
		Metadata: map[string]string{
			"source":      docID,
			"title":       "Test Document",
			"chunk_index": "0",
		},
	}
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store, err := NewStore(testDB.Pool, testutil.QuietLogger())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	t.Run("dimension check", func(t *testing.T) {
		if err := store.CheckDimension(ctx, 768); err != nil {
			t.Errorf("CheckDimension(768) error: %v", err)
		}
		if err := store.CheckDimension(ctx, 384); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("CheckDimension(384) error = %v, want ErrDimensionMismatch", err)
		}
	})

	t.Run("upsert and search", func(t *testing.T) {
		docID := "https://example.com/week-1/intro"
		records := []Record{
			testRecord(docID, 0, 0),
			testRecord(docID, 1, 1),
			testRecord(docID, 2, 2),
		}

		failures, err := store.Upsert(ctx, records)
		if err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}
		if len(failures) != 0 {
			t.Fatalf("unexpected failures: %v", failures)
		}

		// Query along axis 1: chunk 1 scores 1.0, others 0.5 (cosine
		// distance between orthogonal unit vectors is 1).
		results, err := store.Search(ctx, unitVec(1), WithTopK(3))
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("got %d results, want 3", len(results))
		}
		if results[0].ChunkIndex != 1 {
			t.Errorf("top result is chunk %d, want 1", results[0].ChunkIndex)
		}
		if results[0].Score < 0.99 {
			t.Errorf("top score = %v, want ~1.0", results[0].Score)
		}
		for i := 1; i < len(results); i++ {
			if results[i].Score > results[i-1].Score {
				t.Errorf("results not sorted by descending score at %d", i)
			}
		}
		if results[0].Metadata["title"] != "Test Document" {
			t.Errorf("metadata not round-tripped: %v", results[0].Metadata)
		}
	})

	t.Run("search is deterministic on ties", func(t *testing.T) {
		first, err := store.Search(ctx, unitVec(5), WithTopK(3))
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		second, err := store.Search(ctx, unitVec(5), WithTopK(3))
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(first) != len(second) {
			t.Fatalf("result counts differ: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Errorf("result %d differs between identical queries", i)
			}
		}
	})

	t.Run("re-ingestion does not grow the store", func(t *testing.T) {
		docID := "https://example.com/week-1/kinematics"
		records := []Record{
			testRecord(docID, 0, 3),
			testRecord(docID, 1, 4),
		}

		if _, err := store.Upsert(ctx, records); err != nil {
			t.Fatalf("first Upsert() error: %v", err)
		}
		if _, err := store.Upsert(ctx, records); err != nil {
			t.Fatalf("second Upsert() error: %v", err)
		}

		count, err := store.CountDocument(ctx, docID)
		if err != nil {
			t.Fatalf("CountDocument() error: %v", err)
		}
		if count != 2 {
			t.Errorf("document has %d chunks after re-ingestion, want 2", count)
		}
	})

	t.Run("search respects top-k", func(t *testing.T) {
		results, err := store.Search(ctx, unitVec(0), WithTopK(2))
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(results) > 2 {
			t.Errorf("got %d results, want at most 2", len(results))
		}
	})

	t.Run("threshold filters weak matches", func(t *testing.T) {
		results, err := store.Search(ctx, unitVec(0), WithTopK(10), WithThreshold(0.9))
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		for _, r := range results {
			if r.Score < 0.9 {
				t.Errorf("result %q scores %v, below threshold", r.ID, r.Score)
			}
		}
	})

	t.Run("metadata filter", func(t *testing.T) {
		docID := "https://example.com/week-9/filtered"
		rec := testRecord(docID, 0, 7)
		rec.Metadata["source"] = docID
		if _, err := store.Upsert(ctx, []Record{rec}); err != nil {
			t.Fatalf("Upsert() error: %v", err)
		}

		results, err := store.Search(ctx, unitVec(7), WithTopK(10), WithFilter("source", docID))
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("got %d results, want 1", len(results))
		}
		if results[0].DocumentID != docID {
			t.Errorf("filter returned wrong document: %q", results[0].DocumentID)
		}
	})

	t.Run("delete document", func(t *testing.T) {
		docID := "https://example.com/week-1/kinematics"
		deleted, err := store.DeleteDocument(ctx, docID)
		if err != nil {
			t.Fatalf("DeleteDocument() error: %v", err)
		}
		if deleted != 2 {
			t.Errorf("deleted %d chunks, want 2", deleted)
		}

		count, err := store.CountDocument(ctx, docID)
		if err != nil {
			t.Fatalf("CountDocument() error: %v", err)
		}
		if count != 0 {
			t.Errorf("document still has %d chunks after delete", count)
		}
	})
}
