package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-pipeline/pkg/blob"
	"study-pipeline/pkg/speech"
	"study-pipeline/pkg/upstream"
)

type scriptedSpeech struct {
	errs        []error
	result      *speech.Transcription
	calls       int
	filename    string
	contentType string
}

func (s *scriptedSpeech) Transcribe(ctx context.Context, audio []byte, filename, contentType string) (*speech.Transcription, error) {
	i := s.calls
	s.calls++
	s.filename, s.contentType = filename, contentType
	if i < len(s.errs) {
		return nil, s.errs[i]
	}
	return s.result, nil
}

func TestTranscriber_InfersContentType(t *testing.T) {
	client := &scriptedSpeech{result: &speech.Transcription{Text: "hello"}}
	_, err := NewTranscriber(client, NoRetry).Transcribe(context.Background(), &blob.Object{
		Data:        []byte("x"),
		Name:        "lecture.mp3",
		ContentType: "application/octet-stream",
	})
	require.NoError(t, err)
	assert.Equal(t, "lecture.mp3", client.filename)
	assert.Equal(t, "audio/mpeg", client.contentType)
}

func TestTranscriber_RetriesServerErrors(t *testing.T) {
	client := &scriptedSpeech{
		errs:   []error{&upstream.Error{Service: "speech", StatusCode: http.StatusBadGateway, Message: "bad gateway"}},
		result: &speech.Transcription{Text: "recovered"},
	}
	result, err := NewTranscriber(client, fastRetry).Transcribe(context.Background(), &blob.Object{Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Text)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "audio", client.filename)
}

func TestTranscriber_UnauthorizedIsNotRetried(t *testing.T) {
	client := &scriptedSpeech{
		errs: []error{&upstream.Error{Service: "speech", StatusCode: http.StatusUnauthorized, Message: "invalid key"}},
	}
	_, err := NewTranscriber(client, fastRetry).Transcribe(context.Background(), &blob.Object{Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUpstreamAPI)
	assert.Contains(t, err.Error(), "rejected credentials")
	assert.Equal(t, 1, client.calls)
}
