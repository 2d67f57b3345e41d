package prestashop

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by single-entity reads answered with 404.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidPayload marks a payload rejected before it was sent.
	ErrInvalidPayload = errors.New("invalid payload")
)

const maxErrorBody = 512

// RemoteError is a non-2xx webservice answer.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("webservice %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func newRemoteError(method, path string, status int, body string) *RemoteError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &RemoteError{Method: method, Path: path, StatusCode: status, Body: body}
}

func invalid(kind, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidPayload, kind, reason)
}
