// Package chunker provides fixed-size text chunking with overlap.
package chunker

import (
	"fmt"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// DefaultMaxSize is the default number of runes per chunk.
const DefaultMaxSize = 300

// DefaultOverlap is the default number of overlapping runes.
const DefaultOverlap = 50

// Chunk is one window of segment text with its provenance. Spans are rune
// offsets within the concatenation of all input segments.
type Chunk struct {
	Ordinal   int
	Text      string
	Page      int
	SpanStart int
	SpanEnd   int
}

// Chunker splits extracted segments into fixed-size overlapping chunks.
// Splitting is deterministic: the same segments always yield the same chunks
// with the same ordinals and spans.
type Chunker struct {
	maxSize int
	overlap int
}

// New creates a chunker. Overlap must be smaller than maxSize or the window
// could never advance.
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max size must be positive, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", maxSize, overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split cuts the segments into chunks. Ordinals increase monotonically across
// segment boundaries and chunks never cross segments, so every chunk keeps a
// single page number.
func (c *Chunker) Split(segments []domain.Segment) []Chunk {
	var chunks []Chunk
	ordinal := 0
	base := 0 // rune offset of the current segment in the concatenation

	step := c.maxSize - c.overlap
	for _, seg := range segments {
		runes := []rune(seg.Text)
		total := len(runes)
		if total == 0 {
			continue
		}

		for start := 0; start < total; start += step {
			end := start + c.maxSize
			if end > total {
				end = total
			}

			chunks = append(chunks, Chunk{
				Ordinal:   ordinal,
				Text:      string(runes[start:end]),
				Page:      seg.Page,
				SpanStart: base + start,
				SpanEnd:   base + end,
			})
			ordinal++

			if end == total {
				break
			}
		}

		base += total
	}

	return chunks
}
