package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/filedex/internal/domain"
)

func TestRegistry_For(t *testing.T) {
	r := DefaultRegistry()

	p, err := r.For("text/plain")
	require.NoError(t, err)
	assert.IsType(t, &PlainText{}, p)

	p, err = r.For("text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.IsType(t, &PlainText{}, p)

	p, err = r.For("application/pdf")
	require.NoError(t, err)
	assert.IsType(t, &PDF{}, p)

	_, err = r.For("image/png")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestRegistry_Supported(t *testing.T) {
	supported := DefaultRegistry().Supported()
	assert.Contains(t, supported, "text/plain")
	assert.Contains(t, supported, "application/pdf")
	assert.Contains(t, supported,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
}

func TestPlainText_SinglePage(t *testing.T) {
	pages, err := NewPlainText().Parse(context.Background(), []byte("hello\nworld"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "hello\nworld", pages[0].Text)
}

func TestPlainText_FormFeedSplitsPages(t *testing.T) {
	pages, err := NewPlainText().Parse(context.Background(), []byte("page one\fpage two\fpage three"))
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "page two", pages[1].Text)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, 3, pages[2].Number)
}

func TestPlainText_BlankPagesDropped(t *testing.T) {
	pages, err := NewPlainText().Parse(context.Background(), []byte("\f\fonly page\f"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "only page", pages[0].Text)
	assert.Equal(t, 3, pages[0].Number, "page number keeps its original position")
}

func TestPlainText_CRLFNormalized(t *testing.T) {
	pages, err := NewPlainText().Parse(context.Background(), []byte("a\r\nb"))
	require.NoError(t, err)
	assert.Equal(t, "a\nb", pages[0].Text)
}

func TestPlainText_Empty(t *testing.T) {
	_, err := NewPlainText().Parse(context.Background(), []byte("   \n\t  "))
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}

func TestPlainText_InvalidUTF8(t *testing.T) {
	_, err := NewPlainText().Parse(context.Background(), []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, domain.ErrCorruptInput)
}

func TestPlainText_Deterministic(t *testing.T) {
	data := []byte("alpha\fbeta")
	first, err := NewPlainText().Parse(context.Background(), data)
	require.NoError(t, err)
	second, err := NewPlainText().Parse(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPDF_CorruptInput(t *testing.T) {
	_, err := NewPDF().Parse(context.Background(), []byte("not a pdf at all"))
	assert.ErrorIs(t, err, domain.ErrCorruptInput)
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDOCX_ExtractsParagraphs(t *testing.T) {
	doc := buildDOCX(t, `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>First paragraph.</t></r></p>
    <p><r><t>Second </t></r><r><t>paragraph.</t></r></p>
  </body>
</document>`)

	pages, err := NewDOCX().Parse(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", pages[0].Text)
}

func TestDOCX_NotAZip(t *testing.T) {
	_, err := NewDOCX().Parse(context.Background(), []byte("plain bytes"))
	assert.ErrorIs(t, err, domain.ErrCorruptInput)
}

func TestDOCX_MissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/other.xml")
	require.NoError(t, err)
	_, _ = f.Write([]byte("<x/>"))
	require.NoError(t, w.Close())

	_, err = NewDOCX().Parse(context.Background(), buf.Bytes())
	assert.ErrorIs(t, err, domain.ErrCorruptInput)
}

func TestDOCX_EmptyDocument(t *testing.T) {
	doc := buildDOCX(t, `<?xml version="1.0"?><document><body></body></document>`)
	_, err := NewDOCX().Parse(context.Background(), doc)
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}
