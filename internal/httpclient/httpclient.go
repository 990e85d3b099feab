package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"campaignhub/internal/logging"
)

const proxyModeEnv = "CAMPAIGNHUB_PROXY_MODE"

// New returns an http.Client configured for outbound requests.
//
// It respects HTTP(S)_PROXY/NO_PROXY by default. Setting
// CAMPAIGNHUB_PROXY_MODE=direct disables proxies entirely.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: Transport(logger),
	}
}

// Transport returns an http.Transport clone with a proxy policy suitable for
// outbound calls.
func Transport(logger logging.Logger) *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{Proxy: proxyFunc(logger)}
	}

	transport := base.Clone()
	transport.Proxy = proxyFunc(logger)
	return transport
}

func proxyFunc(logger logging.Logger) func(*http.Request) (*url.URL, error) {
	log := logging.OrNop(logger)
	direct := isDirectMode(os.Getenv(proxyModeEnv))

	return func(req *http.Request) (*url.URL, error) {
		if direct {
			return nil, nil
		}
		if req == nil || req.URL == nil {
			return http.ProxyFromEnvironment(req)
		}
		if isLoopbackHost(req.URL.Hostname()) {
			return nil, nil
		}
		proxyURL, err := http.ProxyFromEnvironment(req)
		if err != nil {
			log.Warn("proxy lookup failed for %s: %v", req.URL.Host, err)
		}
		return proxyURL, err
	}
}

func isDirectMode(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "direct", "none", "off":
		return true
	}
	return false
}

func isLoopbackHost(host string) bool {
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
