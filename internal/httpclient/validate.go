package httpclient

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URLValidationOptions controls outbound URL validation rules.
type URLValidationOptions struct {
	AllowLocalhost       bool
	AllowPrivateNetworks bool
}

// ValidateOutboundURL ensures the URL is well-formed and avoids local/private
// targets unless opts allow them. The image proxy calls it before fetching.
func ValidateOutboundURL(raw string, opts URLValidationOptions) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme: %q", scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, fmt.Errorf("url host is required")
	}
	if !opts.AllowLocalhost && (host == "localhost" || strings.HasSuffix(host, ".localhost")) {
		return nil, fmt.Errorf("local urls are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if !opts.AllowLocalhost && (ip.IsLoopback() || ip.IsUnspecified()) {
			return nil, fmt.Errorf("local urls are not allowed")
		}
		if !opts.AllowPrivateNetworks && (ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()) {
			return nil, fmt.Errorf("private network urls are not allowed")
		}
	}
	return parsed, nil
}
