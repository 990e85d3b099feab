package agent

import "fmt"

// AttemptKind classifies the outcome of the synchronous request.
type AttemptKind int

const (
	// AttemptSuccess carries a decoded JSON object; no fallback is needed.
	AttemptSuccess AttemptKind = iota
	// AttemptRetryable means the stream path should be tried.
	AttemptRetryable
	// AttemptFatal aborts the invocation.
	AttemptFatal
)

func (k AttemptKind) String() string {
	switch k {
	case AttemptSuccess:
		return "success"
	case AttemptRetryable:
		return "retryable"
	case AttemptFatal:
		return "fatal"
	default:
		return fmt.Sprintf("attempt(%d)", int(k))
	}
}

// Attempt is the outcome of one fast-path request.
type Attempt struct {
	Kind   AttemptKind
	Body   map[string]any
	Reason string
	Err    error
}

func success(body map[string]any) Attempt {
	return Attempt{Kind: AttemptSuccess, Body: body}
}

func retryable(reason string, err error) Attempt {
	return Attempt{Kind: AttemptRetryable, Reason: reason, Err: err}
}

func fatal(reason string, err error) Attempt {
	return Attempt{Kind: AttemptFatal, Reason: reason, Err: err}
}
