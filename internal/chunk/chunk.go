// Package chunk provides deterministic fixed-size text chunking with overlap.
package chunk

// DefaultSize is the default number of characters per chunk.
const DefaultSize = 1000

// DefaultOverlap is the default number of overlapping characters
// between adjacent chunks.
const DefaultOverlap = 100

// Chunk is a contiguous span of a source document.
// Start and End are byte offsets into the original text, with
// text[Start:End] == Text.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// Splitter splits document text into bounded-size overlapping chunks.
// Splitting is deterministic: the same input and parameters always
// produce the same chunk boundaries.
type Splitter struct {
	size    int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSize sets the maximum chunk size in characters.
func WithSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.size = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a Splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave forward progress
	if s.overlap >= s.size {
		s.overlap = s.size / 4
	}

	return s
}

// Split splits text into chunks. Empty input produces no chunks.
// Adjacent chunks share a trailing/leading span of the configured
// overlap so context survives chunk boundaries. The chunks cover the
// whole input with no gaps.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	textLen := len(text)
	step := s.size - s.overlap
	chunks := make([]Chunk, 0, textLen/step+1)

	start := 0
	for index := 0; ; index++ {
		end := start + s.size
		if end > textLen {
			end = textLen
		}

		chunks = append(chunks, Chunk{
			Index: index,
			Text:  text[start:end],
			Start: start,
			End:   end,
		})

		if end == textLen {
			break
		}
		start += step
	}

	return chunks
}
