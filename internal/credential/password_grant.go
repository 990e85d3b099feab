package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "campaignhub/internal/errors"
	"campaignhub/internal/httpclient"
	"campaignhub/internal/logging"
	"campaignhub/internal/observability"
)

const (
	defaultTimeout = 20 * time.Second
	maxTokenBody   = 1 << 20
)

// Credential is a bearer token obtained from the identity provider.
type Credential struct {
	Token      string
	AcquiredAt time.Time
	// ExpiresIn is zero when the provider did not report a lifetime.
	ExpiresIn time.Duration
}

// ExpiresAt returns the absolute expiry, or false when the lifetime is unknown.
func (c Credential) ExpiresAt() (time.Time, bool) {
	if c.ExpiresIn <= 0 {
		return time.Time{}, false
	}
	return c.AcquiredAt.Add(c.ExpiresIn), true
}

// Source produces bearer credentials.
type Source interface {
	Acquire(ctx context.Context) (Credential, error)
}

// PasswordGrantConfig holds the resource-owner password grant parameters.
type PasswordGrantConfig struct {
	TokenURL     string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// PasswordGrant acquires a fresh token on every call.
type PasswordGrant struct {
	cfg     PasswordGrantConfig
	client  *http.Client
	logger  logging.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option customises a PasswordGrant.
type Option func(*PasswordGrant)

// WithHTTPClient replaces the outbound client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *PasswordGrant) {
		if client != nil {
			p.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *PasswordGrant) {
		p.logger = logging.OrNop(logger)
	}
}

// WithMetrics records acquisitions on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *PasswordGrant) {
		p.metrics = m
	}
}

// WithClock overrides time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *PasswordGrant) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPasswordGrant builds a credential source for cfg.
func NewPasswordGrant(cfg PasswordGrantConfig, opts ...Option) *PasswordGrant {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	p := &PasswordGrant{
		cfg:    cfg,
		logger: logging.NewComponentLogger("credential"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = httpclient.New(cfg.Timeout, p.logger)
	}
	return p
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Acquire performs one round trip to the token endpoint. Any non-200 status
// or a body without access_token yields an *errors.AuthError.
func (p *PasswordGrant) Acquire(ctx context.Context) (Credential, error) {
	cred, err := p.acquire(ctx)
	if err != nil {
		p.metrics.RecordCredential("error")
		logging.FromContext(ctx, p.logger).Warn("token acquisition failed: %v", err)
		return Credential{}, err
	}
	p.metrics.RecordCredential("ok")
	return cred, nil
}

func (p *PasswordGrant) acquire(ctx context.Context) (Credential, error) {
	if strings.TrimSpace(p.cfg.TokenURL) == "" {
		return Credential{}, &apperrors.AuthError{Message: "token url is not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("username", p.cfg.Username)
	form.Set("password", p.cfg.Password)
	form.Set("grant_type", "password")
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, &apperrors.AuthError{Message: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Credential{}, &apperrors.AuthError{
			Message: "token request failed",
			Err:     &apperrors.TransportError{Op: "POST", URL: p.cfg.TokenURL, Err: err},
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := httpclient.ReadAllWithLimit(resp.Body, maxTokenBody)
	if err != nil {
		return Credential{}, &apperrors.AuthError{StatusCode: resp.StatusCode, Message: "read token response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Credential{}, &apperrors.AuthError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("identity provider returned status %d: %s", resp.StatusCode, snippet(body)),
		}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Credential{}, &apperrors.AuthError{StatusCode: resp.StatusCode, Message: "decode token response", Err: err}
	}
	token := strings.TrimSpace(parsed.AccessToken)
	if token == "" {
		return Credential{}, &apperrors.AuthError{StatusCode: resp.StatusCode, Message: "response missing access_token"}
	}

	cred := Credential{Token: token, AcquiredAt: p.now()}
	if parsed.ExpiresIn > 0 {
		cred.ExpiresIn = time.Duration(parsed.ExpiresIn) * time.Second
	}
	logging.FromContext(ctx, p.logger).Debug("access token acquired: len=%d expires_in=%s", len(token), cred.ExpiresIn)
	return cred, nil
}

func snippet(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		text = text[:limit] + "..."
	}
	return text
}
