package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// Ensure PlainText implements the interface.
var _ Parser = (*PlainText)(nil)

// PlainText handles plain text and markdown files. Form feeds split the
// content into pages; otherwise everything is page 1.
type PlainText struct{}

// NewPlainText creates a plain text parser.
func NewPlainText() *PlainText {
	return &PlainText{}
}

func (p *PlainText) MIMETypes() []string {
	return []string{
		"text/plain",
		"text/markdown",
		"text/x-markdown",
	}
}

func (p *PlainText) Parse(_ context.Context, data []byte) ([]Page, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("not valid UTF-8: %w", domain.ErrCorruptInput)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var pages []Page
	for i, part := range strings.Split(text, "\f") {
		pages = append(pages, Page{Number: i + 1, Text: strings.TrimSpace(part)})
	}
	return nonEmpty(pages)
}
