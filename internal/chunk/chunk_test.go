package chunk

import (
	"strings"
	"testing"
)

func TestSplit_Empty(t *testing.T) {
	s := New()
	if got := s.Split(""); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
}

func TestSplit_ShorterThanSize(t *testing.T) {
	s := New(WithSize(1000), WithOverlap(100))
	chunks := s.Split("a short document")

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Text != "a short document" || c.Index != 0 || c.Start != 0 || c.End != 16 {
		t.Errorf("unexpected chunk: %+v", c)
	}
}

func TestSplit_ChunkCount(t *testing.T) {
	// 10,000 characters with size 1000 and overlap 100 advances the
	// window by 900 per chunk: starts at 0, 900, ..., 9000.
	s := New(WithSize(1000), WithOverlap(100))
	text := strings.Repeat("x", 10000)

	chunks := s.Split(text)
	if len(chunks) != 11 {
		t.Fatalf("expected 11 chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if len(c.Text) > 1000 {
			t.Errorf("chunk %d exceeds max size: %d", i, len(c.Text))
		}
	}

	last := chunks[len(chunks)-1]
	if last.End != len(text) {
		t.Errorf("last chunk ends at %d, want %d", last.End, len(text))
	}
}

func TestSplit_Deterministic(t *testing.T) {
	s := New(WithSize(128), WithOverlap(32))
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 50)

	first := s.Split(text)
	second := s.Split(text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSplit_Coverage(t *testing.T) {
	// Stripping the overlap prefix from every chunk after the first
	// must reconstruct the original text exactly.
	overlap := 25
	s := New(WithSize(100), WithOverlap(overlap))
	text := strings.Repeat("abcdefghij", 137)

	chunks := s.Split(text)

	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c.Text)
			continue
		}
		b.WriteString(c.Text[overlap:])
	}
	if b.String() != text {
		t.Error("reconstructed text does not match original")
	}
}

func TestSplit_OffsetsMatchText(t *testing.T) {
	s := New(WithSize(50), WithOverlap(10))
	text := strings.Repeat("0123456789", 23)

	for _, c := range s.Split(text) {
		if text[c.Start:c.End] != c.Text {
			t.Errorf("chunk %d offsets [%d:%d] do not match text", c.Index, c.Start, c.End)
		}
	}
}

func TestSplit_Overlap(t *testing.T) {
	s := New(WithSize(100), WithOverlap(20))
	text := strings.Repeat("z", 500)

	chunks := s.Split(text)
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if prev.End-cur.Start != 20 {
			t.Errorf("chunks %d/%d overlap by %d, want 20", i-1, i, prev.End-cur.Start)
		}
	}
}

func TestNew_ClampsExcessiveOverlap(t *testing.T) {
	s := New(WithSize(100), WithOverlap(100))
	// Must not loop forever
	chunks := s.Split(strings.Repeat("a", 300))
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
}
