package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrSessionNotFound signals an unknown or expired console session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidDistance signals a NaN, infinite or negative distance on a scored result.
	ErrInvalidDistance = errors.New("invalid distance")
	// ErrInvalidModality signals a modality outside video, audio, image and text.
	ErrInvalidModality = errors.New("invalid modality")
	// ErrInvalidInput signals a malformed console request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyMessage signals a chat submission with no text.
	ErrEmptyMessage = errors.New("empty message")
	// ErrReplyPending signals a chat submission while a reply is still outstanding.
	ErrReplyPending = errors.New("reply pending")
	// ErrNothingSelected signals a delete without a task id.
	ErrNothingSelected = errors.New("no task selected")

	// ErrBackend signals a non-2xx answer or transport failure from the retrieval backend.
	ErrBackend = errors.New("backend error")
	// ErrRateLimited signals that the backend client throttle rejected the call.
	ErrRateLimited = errors.New("rate limited")
	// ErrStaleResponse signals a backend completion superseded by a newer action.
	ErrStaleResponse = errors.New("stale response")
)

// BackendError wraps ErrBackend with the status code and body returned by the backend.
// Status is 0 for transport failures.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", ErrBackend.Error(), e.Body)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrBackend.Error(), e.Status, e.Body)
}

func (e *BackendError) Unwrap() error { return ErrBackend }

// Alert returns the one-line message shown to the user.
func (e *BackendError) Alert() string {
	msg := strings.TrimSpace(e.Body)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if msg == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return msg
}

// NewBackendError creates a backend error.
func NewBackendError(status int, body string) error {
	return &BackendError{Status: status, Body: body}
}

// AlertMessage extracts a user-visible one-line alert from any error.
func AlertMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Alert()
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
