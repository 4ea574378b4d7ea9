package domain

// Segment is one extracted text region with provenance, as produced by the
// parser. Segments are the persisted output of the parse stage so that a
// re-drive from chunking never re-reads the original bytes.
type Segment struct {
	Ordinal int
	Text    string
	Page    int // 1-based page or paragraph-block number; 0 if the format has none
}

// Document is a bounded chunk of extracted text. Immutable once created;
// its embedding state is the only thing that changes afterwards.
type Document struct {
	ID      string
	FileID  string
	Ordinal int // strictly increasing within a file, assigned at chunk time
	Text    string
	Page    int
	// Rune span within the concatenation of the file's segments.
	SpanStart int
	SpanEnd   int

	// Embedding state. One active embedding per document; the provider and
	// model it was produced with are recorded alongside.
	Embedded   bool
	Provider   string
	Model      string
	Dim        int
	EmbeddedAt int64 // unix millis
}

// QueryHit is one ranked result of a similarity query.
type QueryHit struct {
	DocumentID string
	FileID     string
	Ordinal    int
	Score      float64
	Text       string
}
