package backend

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse indicates the backend answered with a body that does not fit the envelope.
var ErrMalformedResponse = errors.New("backend: malformed response")

// ErrInvalidArgument is returned before any request is issued.
var ErrInvalidArgument = errors.New("backend: invalid argument")

// TransportError wraps failures to reach the backend at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is an application level failure reported through success=false.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s: %s (status %d)", e.Op, e.Message, e.Status)
}

// UserMessage returns text that is safe to show to an operator.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return "The backend could not be reached. Please try again."
	}
	if errors.Is(err, ErrMalformedResponse) {
		return "The backend returned an unexpected response."
	}
	return "Something went wrong. Please try again."
}
