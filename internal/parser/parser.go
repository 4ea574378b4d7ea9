// Package parser extracts plain text from uploaded files, keyed by MIME type.
// Each parser yields one or more pages so downstream chunks can carry page
// provenance. Parsing is deterministic: the same bytes always produce the
// same pages.
package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// Page is an extracted span of text with its 1-based page number.
// Formats without a page concept produce a single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// Parser extracts text pages from one file format.
type Parser interface {
	// MIMETypes returns the MIME types this parser handles.
	MIMETypes() []string
	// Parse extracts pages from raw file content.
	Parse(ctx context.Context, data []byte) ([]Page, error)
}

// Registry routes file content to a parser by MIME type.
type Registry struct {
	byMIME map[string]Parser
}

// NewRegistry builds a registry from the given parsers. A later parser wins
// if two claim the same MIME type.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byMIME: make(map[string]Parser)}
	for _, p := range parsers {
		for _, mime := range p.MIMETypes() {
			r.byMIME[normalizeMIME(mime)] = p
		}
	}
	return r
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	return NewRegistry(NewPlainText(), NewPDF(), NewDOCX())
}

// For returns the parser for the given MIME type, or ErrUnsupportedFormat.
func (r *Registry) For(mime string) (Parser, error) {
	p, ok := r.byMIME[normalizeMIME(mime)]
	if !ok {
		return nil, fmt.Errorf("mime type %q: %w", mime, domain.ErrUnsupportedFormat)
	}
	return p, nil
}

// Parse extracts pages from data using the parser registered for mime.
func (r *Registry) Parse(ctx context.Context, mime string, data []byte) ([]Page, error) {
	p, err := r.For(mime)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, data)
}

// Supported returns the sorted list of supported MIME types.
func (r *Registry) Supported() []string {
	out := make([]string, 0, len(r.byMIME))
	for mime := range r.byMIME {
		out = append(out, mime)
	}
	sort.Strings(out)
	return out
}

// normalizeMIME strips parameters like "; charset=utf-8" and lowercases.
func normalizeMIME(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}

// nonEmpty drops blank pages and fails with ErrEmptyContent when nothing
// usable remains.
func nonEmpty(pages []Page) ([]Page, error) {
	out := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrEmptyContent
	}
	return out, nil
}
