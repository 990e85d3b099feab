package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrInvalidRequest marks a caller contract violation such as a missing agent id.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound marks a lookup of an unknown campaign or record.
	ErrNotFound = errors.New("not found")
)

// AuthError reports a failed credential acquisition. It aborts the agent invocation.
type AuthError struct {
	StatusCode int
	Err        error
	Message    string
}

func (e *AuthError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("auth error: %s: %v", e.Message, e.Err)
	case e.Message != "":
		return "auth error: " + e.Message
	case e.StatusCode > 0:
		return fmt.Sprintf("auth error: identity provider returned status %d", e.StatusCode)
	default:
		return fmt.Sprintf("auth error: %v", e.Err)
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransportError reports a network failure or timeout on an outbound call.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying failure was a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsStreamClosed reports whether err means the remote side ended an event
// stream: a truncated chunked body, EOF or a reset connection. Timeouts and
// caller cancellation are not closes.
func IsStreamClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.EPIPE, syscall.ECONNABORTED:
			return true
		}
	}
	lowerErr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"use of closed network connection",
		"server closed",
	} {
		if strings.Contains(lowerErr, pattern) {
			return true
		}
	}
	return false
}
