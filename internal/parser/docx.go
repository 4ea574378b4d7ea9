package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// Ensure DOCX implements the interface.
var _ Parser = (*DOCX)(nil)

// DOCX extracts text from Word documents by reading word/document.xml out of
// the ZIP container. DOCX has no fixed page layout, so the whole document is
// a single page.
type DOCX struct{}

// NewDOCX creates a DOCX parser.
func NewDOCX() *DOCX {
	return &DOCX{}
}

func (p *DOCX) MIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

func (p *DOCX) Parse(_ context.Context, data []byte) ([]Page, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx container: %v: %w", err, domain.ErrCorruptInput)
	}

	content, err := extractDocumentXML(reader)
	if err != nil {
		return nil, err
	}

	return nonEmpty([]Page{{Number: 1, Text: parseDocumentXML(content)}})
}

// extractDocumentXML reads word/document.xml from the container.
func extractDocumentXML(reader *zip.Reader) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %v: %w", err, domain.ErrCorruptInput)
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %v: %w", err, domain.ErrCorruptInput)
		}
		return content, nil
	}
	return nil, fmt.Errorf("missing word/document.xml: %w", domain.ErrCorruptInput)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML extracts paragraph text from the document XML.
func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				result.WriteString(text.Content)
			}
		}
	}

	return strings.TrimSpace(result.String())
}
