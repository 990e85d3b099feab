package app

import (
	"errors"

	apperrors "campaignhub/internal/errors"
)

// Domain error sentinels for the server application layer.
// These enable consistent HTTP status mapping via errors.Is().

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = apperrors.ErrNotFound

	// ErrValidation indicates invalid input from the caller.
	ErrValidation = errors.New("validation error")

	// ErrUpstream indicates a dependency answered with something unusable.
	ErrUpstream = errors.New("upstream error")

	// ErrFailed indicates an operation that could not be completed, such as an
	// agent producing no result.
	ErrFailed = errors.New("operation failed")
)

// Error carries a caller-facing message alongside its classification.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NotFoundError wraps ErrNotFound with a descriptive message.
func NotFoundError(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// ValidationError wraps ErrValidation with a descriptive message.
func ValidationError(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// UpstreamError wraps ErrUpstream with a descriptive message.
func UpstreamError(msg string, err error) error {
	return &Error{Kind: ErrUpstream, Message: msg, Err: err}
}

// FailedError wraps ErrFailed with a descriptive message.
func FailedError(msg string, err error) error {
	return &Error{Kind: ErrFailed, Message: msg, Err: err}
}

// Message returns the caller-facing message of err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
