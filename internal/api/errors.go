package api

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is returned once every attempt of a request failed
	// at the connection level.
	ErrTransport = errors.New("transport failure")
	// ErrStatus marks a non-2xx HTTP response. It is never retried.
	ErrStatus = errors.New("unexpected http status")
	// ErrShape marks a response whose body is not the expected JSON.
	ErrShape = errors.New("unexpected response shape")
)

// StatusError carries the HTTP status of a rejected request.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

type graphQLError struct {
	Message string `json:"message"`
}

func shapeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShape, fmt.Sprintf(format, args...))
}

// retryable reports whether err came from the connection rather than
// from a response the server chose to send.
func retryable(err error) bool {
	return !errors.Is(err, ErrStatus) && !errors.Is(err, ErrShape)
}
