package credential

import (
	"context"
	"sync"
	"time"

	"campaignhub/internal/observability"
)

const defaultSkew = 30 * time.Second

// ExpiringCache reuses a credential until skew before its reported expiry.
// Credentials without a reported lifetime are never reused.
type ExpiringCache struct {
	source  Source
	skew    time.Duration
	now     func() time.Time
	metrics *observability.Metrics

	mu      sync.Mutex
	current Credential
	valid   bool
}

// CacheOption customises an ExpiringCache.
type CacheOption func(*ExpiringCache)

// WithCacheClock overrides time.Now.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *ExpiringCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheMetrics records cache hits on m.
func WithCacheMetrics(m *observability.Metrics) CacheOption {
	return func(c *ExpiringCache) {
		c.metrics = m
	}
}

// NewExpiringCache wraps source. A non-positive skew uses 30s.
func NewExpiringCache(source Source, skew time.Duration, opts ...CacheOption) *ExpiringCache {
	if skew <= 0 {
		skew = defaultSkew
	}
	c := &ExpiringCache{source: source, skew: skew, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire returns the cached credential while it is fresh, otherwise refreshes
// from the wrapped source. Concurrent callers share one refresh.
func (c *ExpiringCache) Acquire(ctx context.Context) (Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.fresh(c.current) {
		c.metrics.RecordCredential("cached")
		return c.current, nil
	}

	cred, err := c.source.Acquire(ctx)
	if err != nil {
		c.valid = false
		return Credential{}, err
	}
	c.current = cred
	c.valid = true
	return cred, nil
}

// Invalidate drops the cached credential.
func (c *ExpiringCache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.current = Credential{}
	c.mu.Unlock()
}

func (c *ExpiringCache) fresh(cred Credential) bool {
	expiresAt, ok := cred.ExpiresAt()
	if !ok {
		return false
	}
	return c.now().Before(expiresAt.Add(-c.skew))
}
