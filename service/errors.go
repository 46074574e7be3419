package service

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration       = errors.New("configuration error")
	ErrContentFetch        = errors.New("content fetch error")
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrUnreadableContent   = errors.New("unreadable content")
	ErrEmptyContent        = fmt.Errorf("%w: no usable text", ErrUnreadableContent)
	ErrUpstreamAPI         = errors.New("upstream api error")
	ErrMalformedAIResponse = errors.New("malformed ai response")
	ErrPersistence         = errors.New("persistence error")
	ErrRunInProgress       = errors.New("a pipeline run is already in progress for this upload")
	ErrUploadNotFound      = errors.New("upload not found")
	ErrInvalidInput        = errors.New("invalid pipeline input")
)

type Stage string

const (
	StageValidation    Stage = "validation"
	StageClaim         Stage = "claim"
	StageFetch         Stage = "content fetch"
	StageTranscription Stage = "transcription"
	StageExtraction    Stage = "extraction"
	StageSummarization Stage = "summarization"
	StageCompletion    Stage = "completion"
)

// StageError is how every pipeline failure surfaces; its message is what
// gets stored on the upload and returned to the trigger.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

var taxonomy = []error{
	ErrConfiguration,
	ErrContentFetch,
	ErrUnsupportedFormat,
	ErrUnreadableContent,
	ErrUpstreamAPI,
	ErrMalformedAIResponse,
	ErrPersistence,
	ErrRunInProgress,
	ErrUploadNotFound,
	ErrInvalidInput,
}

func classified(err error) bool {
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// stageError tags err with stage, falling back to kind when err does not
// already carry a category.
func stageError(stage Stage, kind error, err error) *StageError {
	switch {
	case err == nil:
		return &StageError{Stage: stage, Err: kind}
	case classified(err):
		return &StageError{Stage: stage, Err: err}
	}
	return &StageError{Stage: stage, Err: fmt.Errorf("%w: %w", kind, err)}
}

// IsTerminal reports whether err already left the upload in a final state,
// so redelivering the trigger cannot help.
func IsTerminal(err error) bool {
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		return false
	}
	switch stageErr.Stage {
	case StageClaim:
		return errors.Is(err, ErrUploadNotFound) || errors.Is(err, ErrRunInProgress)
	default:
		return true
	}
}
