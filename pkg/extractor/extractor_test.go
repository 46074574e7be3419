package extractor

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	pages []string
	errs  map[int]error
}

func (f *fakePages) NumPage() int { return len(f.pages) }

func (f *fakePages) PageText(n int) (string, error) {
	if err := f.errs[n]; err != nil {
		return "", err
	}
	return f.pages[n-1], nil
}

func opener(pages *fakePages) PDFOpener {
	return func([]byte) (PageReader, error) { return pages, nil }
}

func TestFormatFromExtension(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr error
	}{
		{".pdf", FormatPDF, nil},
		{"PDF", FormatPDF, nil},
		{".DocX", FormatDOCX, nil},
		{"txt", FormatTXT, nil},
		{".doc", "", ErrLegacyDOC},
		{".pptx", "", ErrUnsupportedFormat},
		{"", "", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := FormatFromExtension(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLegacyDOCIsUnsupported(t *testing.T) {
	_, err := FormatFromName("notes/week1.doc")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.ErrorIs(t, err, ErrLegacyDOC)
}

func TestPDF_JoinsPagesAndNormalizesWhitespace(t *testing.T) {
	pages := &fakePages{pages: []string{
		"Chapter  1\t Introduction \r\n\r\n\r\n\r\nCells   are small.",
		"   Chapter 2\nMitosis   ",
	}}
	text, err := NewWithPDFOpener(opener(pages)).PDF([]byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "Chapter 1 Introduction\n\nCells are small.\n\nChapter 2\nMitosis", text)
}

func TestPDF_SkipsBrokenPages(t *testing.T) {
	pages := &fakePages{
		pages: []string{"", "Readable second page"},
		errs:  map[int]error{1: errors.New("bad stream")},
	}
	text, err := NewWithPDFOpener(opener(pages)).PDF(nil)
	require.NoError(t, err)
	assert.Equal(t, "Readable second page", text)
}

func TestPDF_NearEmptyIsUnreadable(t *testing.T) {
	pages := &fakePages{pages: []string{"  ", "abc  "}}
	_, err := NewWithPDFOpener(opener(pages)).PDF(nil)
	assert.ErrorIs(t, err, ErrUnreadablePDF)
}

func TestPDF_OpenFailureIsUnreadable(t *testing.T) {
	_, err := New().PDF([]byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrUnreadablePDF)
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types/>`))
	require.NoError(t, err)

	if documentXML != "" {
		w, err = zw.Create("word/document.xml")
		require.NoError(t, err)
		_, err = w.Write([]byte(documentXML))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Photosynthesis</w:t></w:r></w:p>
    <w:p/>
    <w:p/>
    <w:p/>
    <w:p><w:r><w:t xml:space="preserve">Light </w:t></w:r><w:r><w:t>reactions</w:t><w:tab/><w:t>Calvin cycle</w:t></w:r></w:p>
    <w:p><w:r><w:t>Line one</w:t><w:br/><w:t>Line two &amp; more</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestDOCX(t *testing.T) {
	text, err := DOCX(buildDOCX(t, documentXML))
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis\n\nLight reactions\tCalvin cycle\nLine one\nLine two & more", text)
}

func TestDOCX_Errors(t *testing.T) {
	_, err := DOCX([]byte("plain bytes"))
	assert.ErrorIs(t, err, ErrUnreadableDocument)

	_, err = DOCX(buildDOCX(t, ""))
	assert.ErrorIs(t, err, ErrUnreadableDocument)
}

func TestTXT(t *testing.T) {
	data := append([]byte("\xEF\xBB\xBFhello\r\nworld "), 0xff)
	assert.Equal(t, "hello\nworld \uFFFD", TXT(data))
}

func TestExtract_Dispatch(t *testing.T) {
	e := New()

	text, err := e.Extract(FormatTXT, []byte("notes"))
	require.NoError(t, err)
	assert.Equal(t, "notes", text)

	_, err = e.Extract(Format("rtf"), []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
