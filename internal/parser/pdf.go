package parser

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// Ensure PDF implements the interface.
var _ Parser = (*PDF)(nil)

// PDF extracts text from PDF files page by page.
type PDF struct{}

// NewPDF creates a PDF parser.
func NewPDF() *PDF {
	return &PDF{}
}

func (p *PDF) MIMETypes() []string {
	return []string{"application/pdf"}
}

// Parse extracts one Page per PDF page. The underlying reader panics on some
// malformed inputs, so the whole extraction runs behind a recover that maps
// any panic to ErrCorruptInput.
func (p *PDF) Parse(ctx context.Context, data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf extraction panic: %v: %w", r, domain.ErrCorruptInput)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %v: %w", err, domain.ErrCorruptInput)
	}

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not corrupt the file; skip it.
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	return nonEmpty(pages)
}
