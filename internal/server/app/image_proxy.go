package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"campaignhub/internal/httpclient"
	"campaignhub/internal/logging"
)

const (
	defaultProxyTimeout  = 15 * time.Second
	defaultProxyMaxBytes = 10 << 20
	proxyUserAgent       = "Mozilla/5.0"
	proxyAccept          = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
	proxyReferer         = "https://www.instagram.com/"
	maxProxyRedirects    = 5
)

// ImageProxyConfig bounds proxied image fetches.
type ImageProxyConfig struct {
	Timeout              time.Duration
	MaxBytes             int64
	AllowPrivateNetworks bool
}

// ImageProxy fetches remote avatars on behalf of browsers that cannot load
// them directly.
type ImageProxy struct {
	cfg    ImageProxyConfig
	client *http.Client
	logger logging.Logger
}

// ProxiedImage is an open image response. Callers must close Body.
type ProxiedImage struct {
	ContentType string
	Body        io.ReadCloser
}

// NewImageProxy builds an ImageProxy. A nil client gets a default one.
func NewImageProxy(cfg ImageProxyConfig, client *http.Client, logger logging.Logger) *ImageProxy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProxyTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultProxyMaxBytes
	}
	logger = logging.OrNop(logger)
	if client == nil {
		client = httpclient.New(cfg.Timeout, logger)
	}
	p := &ImageProxy{cfg: cfg, logger: logger}
	proxied := *client
	proxied.CheckRedirect = p.checkRedirect
	p.client = &proxied
	return p
}

func (p *ImageProxy) validation() httpclient.URLValidationOptions {
	return httpclient.URLValidationOptions{
		AllowLocalhost:       p.cfg.AllowPrivateNetworks,
		AllowPrivateNetworks: p.cfg.AllowPrivateNetworks,
	}
}

func (p *ImageProxy) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxProxyRedirects {
		return errors.New("too many redirects")
	}
	_, err := httpclient.ValidateOutboundURL(req.URL.String(), p.validation())
	return err
}

// Fetch opens rawURL. The returned body stops with an error once MaxBytes
// have been read.
func (p *ImageProxy) Fetch(ctx context.Context, rawURL string) (*ProxiedImage, error) {
	if !strings.HasPrefix(strings.TrimSpace(rawURL), "http") {
		return nil, ValidationError("invalid url")
	}
	target, err := httpclient.ValidateOutboundURL(rawURL, p.validation())
	if err != nil {
		return nil, ValidationError(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		cancel()
		return nil, ValidationError("invalid url")
	}
	req.Header.Set("User-Agent", proxyUserAgent)
	req.Header.Set("Accept", proxyAccept)
	req.Header.Set("Referer", proxyReferer)

	resp, err := p.client.Do(req)
	if err != nil {
		cancel()
		return nil, FailedError("image fetch failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, UpstreamError(fmt.Sprintf("fetch failed %d", resp.StatusCode), nil)
	}
	if resp.ContentLength > p.cfg.MaxBytes {
		_ = resp.Body.Close()
		cancel()
		return nil, UpstreamError(httpclient.ResponseTooLargeError{Limit: p.cfg.MaxBytes}.Error(), nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &ProxiedImage{
		ContentType: contentType,
		Body:        httpclient.NewCappedBody(resp.Body, p.cfg.MaxBytes, cancel),
	}, nil
}
