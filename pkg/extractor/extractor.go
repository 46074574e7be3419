// Package extractor turns PDF, DOCX and plain-text documents into plain text.
package extractor

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrLegacyDOC is the binary Word format; it is recognized but never extracted.
	ErrLegacyDOC          = fmt.Errorf("%w: legacy .doc files must be converted to .docx or pdf", ErrUnsupportedFormat)
	ErrUnreadablePDF      = errors.New("pdf contains no extractable text (image-only or encrypted)")
	ErrUnreadableDocument = errors.New("document could not be read")
)

// MinPDFChars is the shortest extraction accepted from a PDF.
const MinPDFChars = 10

// FormatFromName picks the format from a file name, path or URL path.
func FormatFromName(name string) (Format, error) {
	return FormatFromExtension(path.Ext(name))
}

// FormatFromExtension accepts an extension with or without the leading dot.
func FormatFromExtension(ext string) (Format, error) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	switch ext {
	case "pdf":
		return FormatPDF, nil
	case "docx":
		return FormatDOCX, nil
	case "txt":
		return FormatTXT, nil
	case "doc":
		return "", ErrLegacyDOC
	case "":
		return "", fmt.Errorf("%w: file has no extension", ErrUnsupportedFormat)
	default:
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}
}

type Extractor struct {
	openPDF PDFOpener
}

func New() *Extractor {
	return &Extractor{openPDF: OpenPDF}
}

// NewWithPDFOpener swaps the PDF backend, mainly for tests.
func NewWithPDFOpener(open PDFOpener) *Extractor {
	return &Extractor{openPDF: open}
}

func (e *Extractor) Extract(format Format, data []byte) (string, error) {
	switch format {
	case FormatPDF:
		return e.PDF(data)
	case FormatDOCX:
		return DOCX(data)
	case FormatTXT:
		return TXT(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// normalizeWhitespace collapses horizontal runs, trims every line and keeps
// at most one blank line between paragraphs.
func normalizeWhitespace(s string) string {
	s = normalizeNewlines(s)
	s = horizontalSpace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")

	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}
