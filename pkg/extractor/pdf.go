package extractor

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// PageReader exposes a document page by page; pages are numbered from 1.
type PageReader interface {
	NumPage() int
	PageText(n int) (string, error)
}

type PDFOpener func(data []byte) (PageReader, error)

const pageSeparator = "\n\n"

type ledongthucReader struct {
	r *pdf.Reader
}

// OpenPDF is the default opener backed by github.com/ledongthuc/pdf.
func OpenPDF(data []byte) (reader PageReader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("open pdf: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &ledongthucReader{r: r}, nil
}

func (l *ledongthucReader) NumPage() int {
	return l.r.NumPage()
}

func (l *ledongthucReader) PageText(n int) (text string, err error) {
	// the parser panics on some malformed content streams
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", n, rec)
		}
	}()

	page := l.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// PDF extracts every page, normalizes its whitespace and joins the pages.
// Pages that fail to parse are skipped; a result shorter than MinPDFChars
// is ErrUnreadablePDF.
func (e *Extractor) PDF(data []byte) (string, error) {
	reader, err := e.openPDF(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadablePDF, err)
	}

	pages := make([]string, 0, reader.NumPage())
	for n := 1; n <= reader.NumPage(); n++ {
		text, err := reader.PageText(n)
		if err != nil {
			continue
		}
		if text = normalizeWhitespace(text); text != "" {
			pages = append(pages, text)
		}
	}

	joined := strings.Join(pages, pageSeparator)
	if utf8.RuneCountInString(joined) < MinPDFChars {
		return "", ErrUnreadablePDF
	}
	return joined, nil
}
