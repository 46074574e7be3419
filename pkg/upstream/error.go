// Package upstream holds the error shape shared by the third-party HTTP clients.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error is a failed call to an external API. StatusCode is zero when the
// request never produced a response.
type Error struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("%s api error: status %d: %s", e.Service, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request may succeed.
func (e *Error) Temporary() bool {
	if e.StatusCode == 0 {
		return !errors.Is(e.Err, context.Canceled)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Unauthorized reports a credential rejection by the upstream API.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func Transport(service string, err error) *Error {
	return &Error{Service: service, Message: err.Error(), Err: err}
}

const maxErrorBody = 4 << 10

// FromResponse builds an Error from a non-2xx response, preferring the
// provider's error message when the body carries one.
func FromResponse(service string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &Error{
		Service:    service,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body, resp.Status),
	}
}

func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error  json.RawMessage `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, raw := range []json.RawMessage{payload.Error, payload.Detail} {
			if msg := messageFrom(raw); msg != "" {
				return msg
			}
		}
	}

	trimmed := strings.TrimSpace(string(bytes.ToValidUTF8(body, nil)))
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func messageFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}
