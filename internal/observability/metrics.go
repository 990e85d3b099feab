package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invocation paths and outcomes reported by the agent invoker.
const (
	PathFast   = "fast"
	PathStream = "stream"

	OutcomeResult = "result"
	OutcomeAbsent = "absent"
	OutcomeError  = "error"
)

// Metrics exposes Prometheus collectors that report agent, stream and enrichment activity.
type Metrics struct {
	registry prometheus.Gatherer

	agentInvocations   *prometheus.CounterVec
	agentDuration      *prometheus.HistogramVec
	streamLines        *prometheus.CounterVec
	credentialAcquires *prometheus.CounterVec
	enrichmentFetches  *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Callers supply a fresh registry when unique metric names are required (for
// example in tests). Registration errors panic, mirroring promauto.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		agentInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "campaignhub",
				Subsystem: "agent",
				Name:      "invocations_total",
				Help:      "Agent invocations by agent, path that produced the outcome, and outcome.",
			},
			[]string{"agent", "path", "outcome"},
		),
		agentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "campaignhub",
				Subsystem: "agent",
				Name:      "invocation_duration_seconds",
				Help:      "Wall time of one agent invocation including stream fallback.",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"agent"},
		),
		streamLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "campaignhub",
				Subsystem: "stream",
				Name:      "lines_total",
				Help:      "Event stream lines by classification (json, discarded).",
			},
			[]string{"kind"},
		),
		credentialAcquires: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "campaignhub",
				Subsystem: "credential",
				Name:      "acquisitions_total",
				Help:      "Bearer token acquisitions by status (ok, cached, error).",
			},
			[]string{"status"},
		),
		enrichmentFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "campaignhub",
				Subsystem: "enrichment",
				Name:      "fetches_total",
				Help:      "Profile enrichment attempts by platform and status (ok, degraded).",
			},
			[]string{"platform", "status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "campaignhub",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Inbound HTTP requests by route and status code class.",
			},
			[]string{"route", "status"},
		),
	}

	collectors := []prometheus.Collector{
		m.agentInvocations,
		m.agentDuration,
		m.streamLines,
		m.credentialAcquires,
		m.enrichmentFetches,
		m.httpRequests,
	}
	for _, collector := range collectors {
		reg.MustRegister(collector)
	}

	if gatherer, ok := reg.(prometheus.Gatherer); ok {
		m.registry = gatherer
	} else {
		m.registry = prometheus.DefaultGatherer
	}
	return m
}

// RecordInvocation records the outcome and duration of one agent invocation.
func (m *Metrics) RecordInvocation(agent, path, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.agentInvocations.WithLabelValues(agent, path, outcome).Inc()
	m.agentDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordStreamLines records how many stream lines parsed and how many were discarded.
func (m *Metrics) RecordStreamLines(parsed, discarded int) {
	if m == nil {
		return
	}
	if parsed > 0 {
		m.streamLines.WithLabelValues("json").Add(float64(parsed))
	}
	if discarded > 0 {
		m.streamLines.WithLabelValues("discarded").Add(float64(discarded))
	}
}

// RecordCredential records a bearer token acquisition.
func (m *Metrics) RecordCredential(status string) {
	if m == nil {
		return
	}
	m.credentialAcquires.WithLabelValues(status).Inc()
}

// RecordEnrichment records a profile fetch for one candidate.
func (m *Metrics) RecordEnrichment(platform, status string) {
	if m == nil {
		return
	}
	m.enrichmentFetches.WithLabelValues(platform, status).Inc()
}

// RecordHTTPRequest records an inbound request.
func (m *Metrics) RecordHTTPRequest(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusClass(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
