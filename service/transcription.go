package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"study-pipeline/pkg/blob"
	"study-pipeline/pkg/speech"
	"study-pipeline/pkg/upstream"
)

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
}

type SpeechClient interface {
	Transcribe(ctx context.Context, audio []byte, filename, contentType string) (*speech.Transcription, error)
}

// Transcriber turns audio into a transcript whose raw payload is kept intact.
type Transcriber struct {
	client SpeechClient
	retry  RetryConfig
}

func NewTranscriber(client SpeechClient, retry RetryConfig) *Transcriber {
	return &Transcriber{client: client, retry: retry}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio *blob.Object) (*speech.Transcription, error) {
	filename := audio.Name
	if filename == "" || filename == "." || filename == "/" {
		filename = "audio"
	}
	contentType := audio.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		ext := strings.ToLower(path.Ext(filename))
		if byExt, ok := audioTypes[ext]; ok {
			contentType = byExt
		} else if byExt := mime.TypeByExtension(ext); byExt != "" {
			contentType = byExt
		}
	}

	result, err := withRetry(ctx, t.retry, func() (*speech.Transcription, error) {
		return t.client.Transcribe(ctx, audio.Data, filename, contentType)
	})
	if err != nil {
		return nil, classifySpeechError(err)
	}

	if strings.TrimSpace(result.Text) == "" {
		return nil, fmt.Errorf("%w: speech api returned no transcript text", ErrEmptyContent)
	}
	return result, nil
}

func classifySpeechError(err error) error {
	if errors.Is(err, speech.ErrMissingCredentials) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	var apiErr *upstream.Error
	if errors.As(err, &apiErr) {
		if apiErr.Unauthorized() {
			return fmt.Errorf("%w: speech api rejected credentials: %w", ErrUpstreamAPI, err)
		}
		return fmt.Errorf("%w: %w", ErrUpstreamAPI, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstreamAPI, err)
}
