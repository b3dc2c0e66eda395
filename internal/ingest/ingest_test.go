package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lecternhq/lectern/internal/chunk"
	"github.com/lecternhq/lectern/internal/testutil"
	"github.com/lecternhq/lectern/internal/vector"
)

// fakeEmbedder implements Embedder with fixed-dimension vectors.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string // fail when any input contains this substring
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn != "" && strings.Contains(text, f.failOn) {
			return nil, errors.New("provider rejected input")
		}
		vectors[i] = []float32{float32(len(text)), 0, 0}
	}
	return vectors, nil
}

// fakeStore implements ChunkStore in memory. Records whose content
// contains rejectOn are reported as per-record failures.
type fakeStore struct {
	mu          sync.Mutex
	records     map[string]vector.Record
	unavailable bool
	rejectOn    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]vector.Record)}
}

func (f *fakeStore) Upsert(_ context.Context, records []vector.Record) ([]vector.UpsertFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, fmt.Errorf("%w: connection refused", vector.ErrUnavailable)
	}
	var failures []vector.UpsertFailure
	for _, rec := range records {
		if f.rejectOn != "" && strings.Contains(rec.Content, f.rejectOn) {
			failures = append(failures, vector.UpsertFailure{ID: rec.ID, Err: errors.New("value too long")})
			continue
		}
		f.records[rec.ID] = rec
	}
	return failures, nil
}

// staticSource serves in-memory documents; refs mapped to "" fail to fetch.
type staticSource struct {
	docs map[string]Document
	refs []string
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) List(_ context.Context) ([]string, error) { return s.refs, nil }

func (s *staticSource) Fetch(_ context.Context, ref string) (Document, error) {
	doc, ok := s.docs[ref]
	if !ok {
		return Document{}, errors.New("document unreachable")
	}
	return doc, nil
}

func newIngestor(store ChunkStore, opts ...Option) *Ingestor {
	splitter := chunk.New(chunk.WithSize(100), chunk.WithOverlap(10))
	base := []Option{WithLogger(testutil.QuietLogger())}
	return New(splitter, &fakeEmbedder{}, store, append(base, opts...)...)
}

func TestRun_IngestsAllDocuments(t *testing.T) {
	store := newFakeStore()
	src := &staticSource{
		refs: []string{"doc-a", "doc-b"},
		docs: map[string]Document{
			"doc-a": {ID: "doc-a", Title: "A", Text: "alpha content"},
			"doc-b": {ID: "doc-b", Title: "B", Text: "beta content"},
		},
	}

	report, err := newIngestor(store).Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.DocsAdded != 2 || report.DocsFailed != 0 {
		t.Errorf("report = %+v, want 2 added, 0 failed", report)
	}
	if report.ChunksWritten != len(store.records) {
		t.Errorf("report says %d chunks, store has %d", report.ChunksWritten, len(store.records))
	}

	rec, ok := store.records[vector.RecordID("doc-a", 0)]
	if !ok {
		t.Fatal("expected record for doc-a chunk 0")
	}
	if rec.Metadata["source"] != "doc-a" || rec.Metadata["title"] != "A" || rec.Metadata["chunk_index"] != "0" {
		t.Errorf("unexpected metadata: %v", rec.Metadata)
	}
}

func TestRun_ContinuesAfterDocumentFailure(t *testing.T) {
	store := newFakeStore()
	src := &staticSource{
		refs: []string{"broken", "doc-b"},
		docs: map[string]Document{
			"doc-b": {ID: "doc-b", Title: "B", Text: "beta content"},
		},
	}

	report, err := newIngestor(store).Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.DocsAdded != 1 || report.DocsFailed != 1 {
		t.Errorf("report = %+v, want 1 added, 1 failed", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].Ref != "broken" {
		t.Errorf("failures = %v, want one for 'broken'", report.Failures)
	}
}

func TestRun_CountsChunksFromPartialUpsert(t *testing.T) {
	store := newFakeStore()
	store.rejectOn = "zeta"

	// Long enough for two chunks at size 100; only the tail chunk
	// carries the rejected marker.
	text := strings.Repeat("alpha beta gamma ", 7) + "zeta"
	src := &staticSource{
		refs: []string{"doc-a"},
		docs: map[string]Document{
			"doc-a": {ID: "doc-a", Title: "A", Text: text},
		},
	}

	report, err := newIngestor(store).Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.DocsAdded != 0 || report.DocsFailed != 1 {
		t.Errorf("report = %+v, want 0 added, 1 failed", report)
	}
	if len(store.records) == 0 {
		t.Fatal("no chunks committed; the marker should reject only one chunk")
	}
	if report.ChunksWritten != len(store.records) {
		t.Errorf("report says %d chunks written, store has %d", report.ChunksWritten, len(store.records))
	}
}

func TestRun_SkipsEmptyDocuments(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	splitter := chunk.New()
	ing := New(splitter, embedder, store, WithLogger(testutil.QuietLogger()))

	src := &staticSource{
		refs: []string{"empty"},
		docs: map[string]Document{
			"empty": {ID: "empty", Title: "Empty", Text: ""},
		},
	}

	report, err := ing.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times for empty document", embedder.calls)
	}
	if report.DocsAdded != 1 {
		t.Errorf("empty document should count as added: %+v", report)
	}
}

func TestRun_AbortsWhenStoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.unavailable = true
	src := &staticSource{
		refs: []string{"doc-a"},
		docs: map[string]Document{
			"doc-a": {ID: "doc-a", Title: "A", Text: "alpha content"},
		},
	}

	_, err := newIngestor(store).Run(context.Background(), src)
	if !errors.Is(err, vector.ErrUnavailable) {
		t.Errorf("Run() error = %v, want ErrUnavailable", err)
	}
}

func TestRun_Idempotent(t *testing.T) {
	store := newFakeStore()
	src := &staticSource{
		refs: []string{"doc-a"},
		docs: map[string]Document{
			"doc-a": {ID: "doc-a", Title: "A", Text: "stable content"},
		},
	}
	ing := newIngestor(store)

	if _, err := ing.Run(context.Background(), src); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	countAfterFirst := len(store.records)

	if _, err := ing.Run(context.Background(), src); err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	if len(store.records) != countAfterFirst {
		t.Errorf("store grew from %d to %d records on re-ingestion", countAfterFirst, len(store.records))
	}
}

func TestRun_CheckpointResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	cp, err := OpenCheckpoint(path)
	if err != nil {
		t.Fatalf("OpenCheckpoint() error: %v", err)
	}

	store := newFakeStore()
	src := &staticSource{
		refs: []string{"doc-a", "doc-b"},
		docs: map[string]Document{
			"doc-a": {ID: "doc-a", Title: "A", Text: "alpha content"},
			"doc-b": {ID: "doc-b", Title: "B", Text: "beta content"},
		},
	}

	report, err := newIngestor(store, WithCheckpoint(cp)).Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.DocsAdded != 2 {
		t.Fatalf("first run added %d docs, want 2", report.DocsAdded)
	}
	if err := cp.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// Reopen: both documents should be skipped.
	cp, err = OpenCheckpoint(path)
	if err != nil {
		t.Fatalf("reopening checkpoint: %v", err)
	}
	defer cp.Close()

	report, err = newIngestor(store, WithCheckpoint(cp)).Run(context.Background(), src)
	if err != nil {
		t.Fatalf("resumed Run() error: %v", err)
	}
	if report.DocsSkipped != 2 || report.DocsAdded != 0 {
		t.Errorf("resumed report = %+v, want 2 skipped, 0 added", report)
	}
}

func TestOpenCheckpoint_RejectsSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	cp, err := OpenCheckpoint(path)
	if err != nil {
		t.Fatalf("OpenCheckpoint() error: %v", err)
	}
	defer cp.Close()

	if _, err := OpenCheckpoint(path); err == nil {
		t.Error("expected second OpenCheckpoint to fail while lock is held")
	}
}

func TestSitemapSource(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/page-1</loc></url>
  <url><loc>%s/missing</loc></url>
</urlset>`, server.URL, server.URL)
	})
	mux.HandleFunc("/page-1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Page One</title></head>
<body><article><h1>Page One</h1>
<p>Dynamics relates joint torques to link accelerations through the mass matrix.
The recursive Newton-Euler algorithm computes inverse dynamics in linear time in
the number of joints, which makes it the workhorse of real-time robot control
loops and simulation engines alike.</p></article></body></html>`)
	})

	server = httptest.NewServer(mux)
	defer server.Close()

	src := NewSitemapSource(server.URL+"/sitemap.xml", server.Client())

	refs, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2", len(refs))
	}

	doc, err := src.Fetch(context.Background(), refs[0])
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if doc.ID != refs[0] {
		t.Errorf("doc.ID = %q, want %q", doc.ID, refs[0])
	}
	if !strings.Contains(doc.Text, "Newton-Euler") {
		t.Errorf("extracted text missing page content: %q", doc.Text)
	}

	// 404 page surfaces a fetch error.
	if _, err := src.Fetch(context.Background(), refs[1]); err == nil {
		t.Error("expected error fetching missing page")
	}
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()

	writeFile := func(rel, content string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	writeFile("week-1/intro.md", "# Introduction\n\nCourse overview.")
	writeFile("week-1/notes.txt", "not markdown")
	writeFile("week-2/dynamics.md", "# Dynamics\n\nEquations of motion.")
	writeFile(".hidden/skip.md", "# Skipped")

	src, err := NewDirSource(root)
	if err != nil {
		t.Fatalf("NewDirSource() error: %v", err)
	}

	refs, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2 (markdown only, hidden dirs skipped): %v", len(refs), refs)
	}

	doc, err := src.Fetch(context.Background(), refs[0])
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if doc.Title != "Introduction" {
		t.Errorf("title = %q, want Introduction", doc.Title)
	}
	if strings.Contains(doc.Text, "#") {
		t.Errorf("markdown not stripped: %q", doc.Text)
	}
}

func TestNewDirSource_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.md")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDirSource(file); err == nil {
		t.Error("expected error for non-directory root")
	}
}
