package credential

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "campaignhub/internal/errors"
	"campaignhub/internal/logging"
	"campaignhub/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "ops", r.PostForm.Get("username"))
		assert.Equal(t, "pw", r.PostForm.Get("password"))
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "application", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func grantFor(url string, opts ...Option) *PasswordGrant {
	opts = append([]Option{WithLogger(logging.Nop())}, opts...)
	return NewPasswordGrant(PasswordGrantConfig{
		TokenURL:     url,
		Username:     "ops",
		Password:     "pw",
		ClientID:     "application",
		ClientSecret: "secret",
	}, opts...)
}

func TestPasswordGrantAcquire(t *testing.T) {
	srv, calls := newTokenServer(t, http.StatusOK, `{"access_token":"tok-1","expires_in":300,"token_type":"Bearer"}`)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	cred, err := grantFor(srv.URL, WithClock(func() time.Time { return fixed })).Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", cred.Token)
	assert.Equal(t, fixed, cred.AcquiredAt)
	assert.Equal(t, 5*time.Minute, cred.ExpiresIn)
	assert.EqualValues(t, 1, calls.Load())
}

func TestPasswordGrantFetchesEveryCall(t *testing.T) {
	srv, calls := newTokenServer(t, http.StatusOK, `{"access_token":"tok"}`)
	grant := grantFor(srv.URL)

	for i := 0; i < 3; i++ {
		cred, err := grant.Acquire(context.Background())
		require.NoError(t, err)
		assert.Zero(t, cred.ExpiresIn)
	}
	assert.EqualValues(t, 3, calls.Load())
}

func TestPasswordGrantNonOKIsAuthError(t *testing.T) {
	srv, _ := newTokenServer(t, http.StatusUnauthorized, `{"error":"invalid_grant"}`)
	reg := prometheus.NewRegistry()
	metrics := observability.MustNewMetrics(reg)

	_, err := grantFor(srv.URL, WithMetrics(metrics)).Acquire(context.Background())
	require.Error(t, err)

	var authErr *apperrors.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "campaignhub_credential_acquisitions_total"))
}

func TestPasswordGrantMissingTokenIsAuthError(t *testing.T) {
	for name, body := range map[string]string{
		"empty object": `{}`,
		"blank token":  `{"access_token":"  "}`,
		"not json":     `<html>login</html>`,
	} {
		t.Run(name, func(t *testing.T) {
			srv, _ := newTokenServer(t, http.StatusOK, body)
			_, err := grantFor(srv.URL).Acquire(context.Background())
			assert.True(t, apperrors.IsAuth(err), "expected auth error, got %v", err)
		})
	}
}

func TestPasswordGrantTransportFailureIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := grantFor(url).Acquire(context.Background())
	assert.True(t, apperrors.IsAuth(err))
	assert.True(t, apperrors.IsTransport(err))
}

func TestPasswordGrantMissingURL(t *testing.T) {
	_, err := grantFor("").Acquire(context.Background())
	assert.True(t, apperrors.IsAuth(err))
}

type stubSource struct {
	mu    sync.Mutex
	calls int
	creds []Credential
	err   error
}

func (s *stubSource) Acquire(context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return Credential{}, s.err
	}
	cred := s.creds[0]
	if len(s.creds) > 1 {
		s.creds = s.creds[1:]
	}
	return cred, nil
}

func TestExpiringCacheReusesUntilSkew(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	src := &stubSource{creds: []Credential{
		{Token: "a", AcquiredAt: start, ExpiresIn: 5 * time.Minute},
		{Token: "b", AcquiredAt: start.Add(5 * time.Minute), ExpiresIn: 5 * time.Minute},
	}}
	cache := NewExpiringCache(src, 30*time.Second, WithCacheClock(func() time.Time { return now }))

	cred, err := cache.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", cred.Token)

	now = start.Add(4 * time.Minute)
	cred, err = cache.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", cred.Token)
	assert.Equal(t, 1, src.calls)

	now = start.Add(4*time.Minute + 31*time.Second)
	cred, err = cache.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", cred.Token)
	assert.Equal(t, 2, src.calls)
}

func TestExpiringCacheNeverReusesUnknownLifetime(t *testing.T) {
	src := &stubSource{creds: []Credential{{Token: "a", AcquiredAt: time.Now()}}}
	cache := NewExpiringCache(src, 0)

	for i := 0; i < 3; i++ {
		_, err := cache.Acquire(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.calls)
}

func TestExpiringCachePropagatesErrorsAndInvalidate(t *testing.T) {
	src := &stubSource{creds: []Credential{{Token: "a", AcquiredAt: time.Now(), ExpiresIn: time.Hour}}}
	cache := NewExpiringCache(src, time.Second)

	_, err := cache.Acquire(context.Background())
	require.NoError(t, err)

	cache.Invalidate()
	src.err = &apperrors.AuthError{StatusCode: 503}
	_, err = cache.Acquire(context.Background())
	assert.True(t, apperrors.IsAuth(err))
	assert.Equal(t, 2, src.calls)
}
