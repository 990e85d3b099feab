package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"campaignhub/internal/httpclient"
	"campaignhub/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageProxyFetch(t *testing.T) {
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	t.Cleanup(srv.Close)

	proxy := NewImageProxy(ImageProxyConfig{AllowPrivateNetworks: true}, srv.Client(), logging.Nop())
	img, err := proxy.Fetch(context.Background(), srv.URL+"/avatar.png")
	require.NoError(t, err)
	defer img.Body.Close()

	body, err := io.ReadAll(img.Body)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(body))
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, proxyReferer, headers.Get("Referer"))
	assert.Equal(t, proxyUserAgent, headers.Get("User-Agent"))
	assert.Contains(t, headers.Get("Accept"), "image/")
}

func TestImageProxyDefaultsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0xff, 0xd8})
	}))
	t.Cleanup(srv.Close)

	img, err := NewImageProxy(ImageProxyConfig{AllowPrivateNetworks: true}, srv.Client(), nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	defer img.Body.Close()
	assert.Equal(t, "image/jpeg", img.ContentType)
}

func TestImageProxyRejectsInvalidTargets(t *testing.T) {
	proxy := NewImageProxy(ImageProxyConfig{}, nil, nil)
	for _, raw := range []string{"", "ftp://example.com/a.png", "file:///etc/passwd", "http://127.0.0.1/a.png", "http://localhost/a.png", "http://10.0.0.5/a.png"} {
		_, err := proxy.Fetch(context.Background(), raw)
		assert.ErrorIs(t, err, ErrValidation, raw)
	}
}

func TestImageProxyUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	_, err := NewImageProxy(ImageProxyConfig{AllowPrivateNetworks: true}, srv.Client(), nil).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, "fetch failed 403", Message(err))
}

func TestImageProxySizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		flusher := w.(http.Flusher)
		_, _ = io.WriteString(w, strings.Repeat("x", 32))
		flusher.Flush()
		_, _ = io.WriteString(w, strings.Repeat("y", 32))
	}))
	t.Cleanup(srv.Close)

	img, err := NewImageProxy(ImageProxyConfig{AllowPrivateNetworks: true, MaxBytes: 40}, srv.Client(), nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	defer img.Body.Close()

	data, err := io.ReadAll(img.Body)
	assert.Len(t, data, 40)
	assert.True(t, httpclient.IsResponseTooLarge(err))
}

func TestImageProxyRejectsKnownOversizeResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("z", 100)))
	}))
	t.Cleanup(srv.Close)

	_, err := NewImageProxy(ImageProxyConfig{AllowPrivateNetworks: true, MaxBytes: 10}, srv.Client(), nil).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	h.RegisterCheck(AgentPlatformCheck{BaseURL: "https://agents.example.com", HasCredentials: true})
	h.RegisterCheck(YouTubeCheck{})

	results := h.CheckAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, HealthStatusReady, results[0].Status)
	assert.Equal(t, HealthStatusDisabled, results[1].Status)
	assert.True(t, Healthy(results))

	h.RegisterCheck(AgentPlatformCheck{BaseURL: "https://agents.example.com"})
	assert.False(t, Healthy(h.CheckAll(context.Background())))
}
