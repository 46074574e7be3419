package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"study-pipeline/pkg/extractor"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const truncationMarker = "\n\n[... content truncated ...]"

type DocumentExtractor interface {
	Extract(format extractor.Format, data []byte) (string, error)
}

// Extraction picks the document format from its name and caps the text it
// returns at maxChars.
type Extraction struct {
	extractor DocumentExtractor
	maxChars  int
}

func NewExtraction(e DocumentExtractor, maxChars int) *Extraction {
	return &Extraction{extractor: e, maxChars: maxChars}
}

func (e *Extraction) Extract(ctx context.Context, name string, data []byte) (string, error) {
	format, err := extractor.FormatFromName(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnsupportedFormat, name, err)
	}

	text, err := e.extractor.Extract(format, data)
	if err != nil {
		if errors.Is(err, extractor.ErrUnsupportedFormat) {
			return "", fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		return "", fmt.Errorf("%w: %w", ErrUnreadableContent, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s document is empty", ErrEmptyContent, format)
	}

	if truncated, ok := truncate(text, e.maxChars); ok {
		zerolog.Ctx(ctx).Warn().
			Int("chars", utf8.RuneCountInString(text)).
			Int("max_chars", e.maxChars).
			Msg("extracted text truncated")
		text = truncated
	}
	return text, nil
}

// truncate cuts s to max runes and appends the marker; max <= 0 disables it.
func truncate(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]) + truncationMarker, true
}
