package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"study-pipeline/constant"
	"study-pipeline/pkg/llm"
	"study-pipeline/pkg/llmjson"
	"study-pipeline/pkg/upstream"

	"github.com/rs/zerolog"
)

type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type KeyPointResult struct {
	Text       string
	Importance int
}

type SummaryResult struct {
	Summary   string
	KeyPoints []KeyPointResult
}

const summarySystemPrompt = `You are a study assistant. Summarize the material you are given for a student.
Respond with a single JSON object and nothing else, using exactly this shape:
{"summary": "<a few clear paragraphs>", "keyPoints": [{"point": "<one short studyable fact>", "importance": <integer 1-5, 5 = most important>}]}
Write the summary and key points in the language of the material.`

type Summarizer struct {
	llm      Completer
	maxChars int
	retry    RetryConfig
}

func NewSummarizer(client Completer, maxChars int, retry RetryConfig) *Summarizer {
	return &Summarizer{llm: client, maxChars: maxChars, retry: retry}
}

// Summarize sends text, capped at maxChars, to the model and recovers the
// summary and key points from whatever it answers.
func (s *Summarizer) Summarize(ctx context.Context, text string) (*SummaryResult, error) {
	if truncated, ok := truncate(text, s.maxChars); ok {
		zerolog.Ctx(ctx).Info().Int("max_chars", s.maxChars).Msg("summarization input truncated")
		text = truncated
	}

	response, err := withRetry(ctx, s.retry, func() (string, error) {
		return s.llm.Complete(ctx, summarySystemPrompt, text)
	})
	if err != nil {
		return nil, classifyLLMError(err)
	}

	result, err := ParseSummary(response)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Str("response", response).Msg("unparseable model response")
		return nil, err
	}
	return result, nil
}

func classifyLLMError(err error) error {
	switch {
	case errors.Is(err, llm.ErrMissingCredentials):
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	case errors.Is(err, llm.ErrContentFiltered), errors.Is(err, llm.ErrNoChoices):
		return fmt.Errorf("%w: %w", ErrUpstreamAPI, err)
	}

	var apiErr *upstream.Error
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		return fmt.Errorf("%w: llm api rejected credentials: %w", ErrUpstreamAPI, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstreamAPI, err)
}

type rawSummary struct {
	Summary      json.RawMessage `json:"summary"`
	KeyPoints    json.RawMessage `json:"keyPoints"`
	KeyPointsAlt json.RawMessage `json:"key_points"`
}

type rawKeyPoint struct {
	Point      string          `json:"point"`
	Text       string          `json:"text"`
	Importance json.RawMessage `json:"importance"`
}

// ParseSummary extracts {summary, keyPoints} from a model response. Key points
// may be plain strings or objects; importance is clamped to [1,5] and
// defaults to 3 when absent or unreadable.
func ParseSummary(response string) (*SummaryResult, error) {
	extracted := llmjson.Extract(response)
	if !extracted.Found {
		return nil, fmt.Errorf("%w: no JSON object in model response", ErrMalformedAIResponse)
	}

	var raw rawSummary
	if err := extracted.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAIResponse, err)
	}

	var summary string
	if len(raw.Summary) == 0 || json.Unmarshal(raw.Summary, &summary) != nil {
		return nil, fmt.Errorf("%w: response has no summary string", ErrMalformedAIResponse)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: summary is empty", ErrMalformedAIResponse)
	}

	items := keyPointItems(raw.KeyPoints)
	if len(items) == 0 {
		items = keyPointItems(raw.KeyPointsAlt)
	}

	result := &SummaryResult{Summary: summary}
	for _, item := range items {
		if kp, ok := parseKeyPoint(item); ok {
			result.KeyPoints = append(result.KeyPoints, kp)
		}
	}
	return result, nil
}

// keyPointItems accepts an array, a single object or a single string; any
// other shape yields no key points rather than failing the summary.
func keyPointItems(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return nil
		}
		return items
	case '{', '"':
		return []json.RawMessage{raw}
	}
	return nil
}

func parseKeyPoint(item json.RawMessage) (KeyPointResult, bool) {
	var text string
	if err := json.Unmarshal(item, &text); err == nil {
		text = strings.TrimSpace(text)
		return KeyPointResult{Text: text, Importance: constant.DefaultImportance}, text != ""
	}

	var obj rawKeyPoint
	if err := json.Unmarshal(item, &obj); err != nil {
		return KeyPointResult{}, false
	}
	text = strings.TrimSpace(obj.Point)
	if text == "" {
		text = strings.TrimSpace(obj.Text)
	}
	if text == "" {
		return KeyPointResult{}, false
	}
	return KeyPointResult{Text: text, Importance: parseImportance(obj.Importance)}, true
}

func parseImportance(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return constant.DefaultImportance
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return constant.DefaultImportance
		}
		if n, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return constant.DefaultImportance
		}
	}
	if math.IsNaN(n) {
		return constant.DefaultImportance
	}
	return clampImportance(n)
}

func clampImportance(n float64) int {
	switch {
	case n < constant.MinImportance:
		return constant.MinImportance
	case n > constant.MaxImportance:
		return constant.MaxImportance
	}
	return int(math.Round(n))
}
