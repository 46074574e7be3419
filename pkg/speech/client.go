// Package speech is a client for a speech-to-text API that returns word-level
// timestamps, speaker diarization and tagged audio events in one response.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"study-pipeline/pkg/upstream"
	"time"
)

const (
	serviceName      = "speech"
	transcribePath   = "/v1/speech-to-text"
	defaultBaseURL   = "https://api.elevenlabs.io"
	defaultModel     = "scribe_v1"
	defaultTimeout   = 10 * time.Minute
	maxResponseBytes = 64 << 20
)

var ErrMissingCredentials = errors.New("speech api key is not configured")

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Word struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Type      string  `json:"type"`
	SpeakerID string  `json:"speaker_id,omitempty"`
}

// Transcription is the decoded response plus the exact bytes it came from.
type Transcription struct {
	LanguageCode        string  `json:"language_code"`
	LanguageProbability float64 `json:"language_probability"`
	Text                string  `json:"text"`
	Words               []Word  `json:"words"`

	Raw json.RawMessage `json:"-"`
}

// Duration is the end time of the last timed token, in seconds.
func (t *Transcription) Duration() float64 {
	var end float64
	for _, w := range t.Words {
		if w.End > end {
			end = w.End
		}
	}
	return end
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Transcribe uploads audio and asks for word timestamps, diarization and
// audio event tags.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, contentType string) (*Transcription, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredentials
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"model_id":               c.model,
		"diarize":                "true",
		"timestamps_granularity": "word",
		"tag_audio_events":       "true",
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write %s field: %w", name, err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcribePath, body)
	if err != nil {
		return nil, fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, upstream.Transport(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstream.FromResponse(serviceName, resp)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, upstream.Transport(serviceName, err)
	}

	result := &Transcription{}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}
	result.Raw = raw

	return result, nil
}
