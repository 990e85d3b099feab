package httpclient

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAllWithLimit(t *testing.T) {
	got, err := ReadAllWithLimit(bytes.NewReader([]byte("hello")), 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = ReadAllWithLimit(bytes.NewReader([]byte("hello")), 2)
	assert.True(t, IsResponseTooLarge(err))
	assert.EqualError(t, err, "response body exceeded limit of 2 bytes")
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestCappedBody(t *testing.T) {
	upstream := &closeTracker{Reader: strings.NewReader("abcd")}
	var hooked bool
	body := NewCappedBody(upstream, 4, func() { hooked = true })

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(got))

	require.NoError(t, body.Close())
	assert.True(t, upstream.closed)
	assert.True(t, hooked)
}

func TestCappedBodyRejectsOversizedStream(t *testing.T) {
	body := NewCappedBody(io.NopCloser(strings.NewReader("abcdef")), 4, nil)
	got, err := io.ReadAll(body)
	assert.True(t, IsResponseTooLarge(err))
	assert.Equal(t, "abcd", string(got))
	assert.NoError(t, body.Close())
}

func TestReadAllWithLimitUnlimited(t *testing.T) {
	got, err := ReadAllWithLimit(bytes.NewReader([]byte("hello")), 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestNewAppliesDefaultTimeout(t *testing.T) {
	client := New(0, nil)
	assert.Equal(t, 30*time.Second, client.Timeout)
	assert.Equal(t, 45*time.Second, New(45*time.Second, nil).Timeout)
}

func TestClientReachesLoopbackServer(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://127.0.0.1:1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := New(5*time.Second, nil).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestValidateOutboundURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		opts    URLValidationOptions
		wantErr bool
	}{
		{"https ok", "https://scontent.cdninstagram.com/v/t51/pic.jpg", URLValidationOptions{}, false},
		{"empty", "  ", URLValidationOptions{}, true},
		{"ftp scheme", "ftp://example.com/a.jpg", URLValidationOptions{}, true},
		{"localhost", "http://localhost:8080/a.jpg", URLValidationOptions{}, true},
		{"loopback ip", "http://127.0.0.1/a.jpg", URLValidationOptions{}, true},
		{"loopback allowed", "http://127.0.0.1/a.jpg", URLValidationOptions{AllowLocalhost: true}, false},
		{"private ip", "http://10.0.0.5/a.jpg", URLValidationOptions{}, true},
		{"private allowed", "http://10.0.0.5/a.jpg", URLValidationOptions{AllowPrivateNetworks: true}, false},
		{"no host", "http:///a.jpg", URLValidationOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateOutboundURL(tt.raw, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
