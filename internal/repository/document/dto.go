package document

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// documentToHash converts a freshly chunked document to a map for HSET.
// The vector and embedding metadata are written later by SetVector.
func documentToHash(doc *domain.Document) map[string]string {
	embedded := "0"
	if doc.Embedded {
		embedded = "1"
	}
	return map[string]string{
		"id":         doc.ID,
		"file_id":    doc.FileID,
		"ordinal":    strconv.Itoa(doc.Ordinal),
		"text":       doc.Text,
		"page":       strconv.Itoa(doc.Page),
		"span_start": strconv.Itoa(doc.SpanStart),
		"span_end":   strconv.Itoa(doc.SpanEnd),
		"embedded":   embedded,
	}
}

// embeddingFields holds the fields SetVector adds once a vector exists.
func embeddingFields(doc *domain.Document) map[string]string {
	return map[string]string{
		"embedded":    "1",
		"provider":    doc.Provider,
		"model":       doc.Model,
		"dim":         strconv.Itoa(doc.Dim),
		"embedded_at": strconv.FormatInt(doc.EmbeddedAt, 10),
	}
}

// documentFromHash hydrates a domain Document from an HGETALL result map.
// The binary vector field is deliberately not surfaced; consumers that need
// vectors go through search.
func documentFromHash(m map[string]string) (*domain.Document, error) {
	ordinal, err := strconv.Atoi(m["ordinal"])
	if err != nil {
		return nil, fmt.Errorf("invalid ordinal: %w", err)
	}

	doc := &domain.Document{
		ID:       m["id"],
		FileID:   m["file_id"],
		Ordinal:  ordinal,
		Text:     m["text"],
		Embedded: m["embedded"] == "1",
		Provider: m["provider"],
		Model:    m["model"],
	}

	// Optional numerics; a missing field stays zero.
	doc.Page, _ = strconv.Atoi(m["page"])
	doc.SpanStart, _ = strconv.Atoi(m["span_start"])
	doc.SpanEnd, _ = strconv.Atoi(m["span_end"])
	doc.Dim, _ = strconv.Atoi(m["dim"])
	doc.EmbeddedAt, _ = strconv.ParseInt(m["embedded_at"], 10, 64)

	return doc, nil
}
