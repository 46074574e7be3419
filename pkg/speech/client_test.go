package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-pipeline/pkg/upstream"
)

const sampleResponse = `{
  "language_code": "en",
  "language_probability": 0.98,
  "text": "Hello class (laughs)",
  "words": [
    {"text": "Hello", "start": 0.0, "end": 0.4, "type": "word", "speaker_id": "speaker_0"},
    {"text": " ", "start": 0.4, "end": 0.5, "type": "spacing", "speaker_id": "speaker_0"},
    {"text": "class", "start": 0.5, "end": 0.9, "type": "word", "speaker_id": "speaker_0"},
    {"text": "(laughs)", "start": 1.0, "end": 1.7, "type": "audio_event", "speaker_id": "speaker_1"}
  ]
}`

func TestTranscribe_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/speech-to-text", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("xi-api-key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "scribe_v1", r.FormValue("model_id"))
		assert.Equal(t, "true", r.FormValue("diarize"))
		assert.Equal(t, "word", r.FormValue("timestamps_granularity"))
		assert.Equal(t, "true", r.FormValue("tag_audio_events"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "lecture.m4a", header.Filename)
		assert.Equal(t, "audio/mp4", header.Header.Get("Content-Type"))
		assert.Equal(t, []byte("RIFFfake"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "key-123", BaseURL: srv.URL})
	result, err := client.Transcribe(context.Background(), []byte("RIFFfake"), "lecture.m4a", "audio/mp4")
	require.NoError(t, err)

	assert.Equal(t, "Hello class (laughs)", result.Text)
	assert.Equal(t, "en", result.LanguageCode)
	require.Len(t, result.Words, 4)
	assert.Equal(t, "speaker_1", result.Words[3].SpeakerID)
	assert.Equal(t, "audio_event", result.Words[3].Type)
	assert.InDelta(t, 1.7, result.Duration(), 0.0001)
	assert.JSONEq(t, sampleResponse, string(result.Raw))
}

func TestTranscribe_MissingCredentials(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.Transcribe(context.Background(), []byte("x"), "a.mp3", "audio/mpeg")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestTranscribe_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: srv.URL})
	_, err := client.Transcribe(context.Background(), []byte("x"), "a.mp3", "audio/mpeg")

	var apiErr *upstream.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.True(t, apiErr.Unauthorized())
	assert.False(t, apiErr.Temporary())
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestTranscribe_ServerErrorIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := client.Transcribe(context.Background(), []byte("x"), "a.mp3", "")

	var apiErr *upstream.Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Temporary())
}
