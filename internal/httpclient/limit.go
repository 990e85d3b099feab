package httpclient

import (
	"errors"
	"fmt"
	"io"
)

// ResponseTooLargeError reports a body that went past its byte cap.
type ResponseTooLargeError struct {
	Limit int64
}

func (e ResponseTooLargeError) Error() string {
	return fmt.Sprintf("response body exceeded limit of %d bytes", e.Limit)
}

// IsResponseTooLarge reports whether err is, or wraps, a ResponseTooLargeError.
func IsResponseTooLarge(err error) bool {
	var tooLarge ResponseTooLargeError
	return errors.As(err, &tooLarge)
}

// ReadAllWithLimit buffers at most limit bytes of r. A longer body is an
// error rather than a silent truncation. A limit of zero or less reads everything.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ResponseTooLargeError{Limit: limit}
	}
	return data, nil
}

// CappedBody streams an upstream body and fails once more than limit bytes
// arrive. onClose runs after the upstream body is closed.
type CappedBody struct {
	body      io.ReadCloser
	limit     int64
	remaining int64
	onClose   func()
}

// NewCappedBody wraps body with a byte cap.
func NewCappedBody(body io.ReadCloser, limit int64, onClose func()) *CappedBody {
	return &CappedBody{body: body, limit: limit, remaining: limit, onClose: onClose}
}

func (b *CappedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		// One extra byte distinguishes an exact-size body from an oversized one.
		var extra [1]byte
		if n, _ := b.body.Read(extra[:]); n > 0 {
			return 0, ResponseTooLargeError{Limit: b.limit}
		}
		return 0, io.EOF
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.body.Read(p)
	b.remaining -= int64(n)
	return n, err
}

// Close closes the upstream body and then runs onClose.
func (b *CappedBody) Close() error {
	err := b.body.Close()
	if b.onClose != nil {
		b.onClose()
	}
	return err
}
