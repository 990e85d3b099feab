package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"campaignhub/internal/logging"
	"campaignhub/internal/observability"
	id "campaignhub/internal/utils/id"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// LogIDHeader carries the request log id in both directions.
const LogIDHeader = "X-Log-ID"

// LogIDMiddleware assigns every request a log id, reusing a sane inbound one.
func LogIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logID := strings.TrimSpace(c.GetHeader(LogIDHeader))
		if logID == "" || len(logID) > 64 {
			logID = id.NewLogID()
		}
		c.Header(LogIDHeader, logID)
		c.Request = c.Request.WithContext(id.WithLogID(c.Request.Context(), logID))
		c.Next()
	}
}

// ObservabilityMiddleware instruments requests with tracing, metrics and an access log line.
func ObservabilityMiddleware(metrics *observability.Metrics, tracer *observability.TracerProvider, logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		ctx, span := tracer.StartSpan(c.Request.Context(), observability.SpanHTTPServer,
			attribute.String("http.method", c.Request.Method),
		)
		c.Request = c.Request.WithContext(ctx)
		defer span.End()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String(observability.AttrRoute, route),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		metrics.RecordHTTPRequest(route, status)

		latency := time.Since(start)
		logging.FromContext(ctx, logger).Info(
			"route=%s method=%s status=%d latency_ms=%.2f bytes=%d",
			route,
			c.Request.Method,
			status,
			float64(latency.Microseconds())/1000.0,
			c.Writer.Size(),
		)
	}
}

// CORSMiddleware allows the configured origins. An empty list or "*" allows all.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With", LogIDHeader}
	corsConfig.ExposeHeaders = []string{LogIDHeader}

	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 || containsString(origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	return cors.New(corsConfig)
}

// RateLimitConfig configures per-client request limits.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	EntryTTL          time.Duration
	CleanupInterval   time.Duration
}

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu              sync.Mutex
	limit           rate.Limit
	burst           int
	entries         map[string]*rateLimitEntry
	entryTTL        time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	ttl := cfg.EntryTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}
	return &rateLimiter{
		limit:           rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		burst:           cfg.Burst,
		entries:         make(map[string]*rateLimitEntry),
		entryTTL:        ttl,
		cleanupInterval: cleanup,
		lastCleanup:     time.Now(),
	}
}

func (r *rateLimiter) allow(key string) bool {
	if r == nil || key == "" {
		return true
	}

	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cleanupInterval > 0 && now.Sub(r.lastCleanup) >= r.cleanupInterval {
		for k, entry := range r.entries {
			if entry == nil || now.Sub(entry.lastSeen) > r.entryTTL {
				delete(r.entries, k)
			}
		}
		r.lastCleanup = now
	}

	entry, ok := r.entries[key]
	if !ok {
		entry = &rateLimitEntry{
			limiter:  rate.NewLimiter(r.limit, r.burst),
			lastSeen: now,
		}
		r.entries[key] = entry
	} else {
		entry.lastSeen = now
	}

	return entry.limiter.Allow()
}

// RateLimitMiddleware rejects clients that exceed the configured rate with 429.
func RateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 || cfg.Burst <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := newRateLimiter(cfg)
	return func(c *gin.Context) {
		if !limiter.allow(rateLimitKey(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Success: false, Message: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// rateLimitKey keys on gin's client IP, which only honours forwarding headers
// from the engine's trusted proxies.
func rateLimitKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
