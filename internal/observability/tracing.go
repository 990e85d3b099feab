package observability

import (
	"context"
	"fmt"

	id "campaignhub/internal/utils/id"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "campaignhub"

// TracingConfig configures distributed tracing
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Exporter       string  `yaml:"exporter"` // otlp, zipkin
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	ZipkinEndpoint string  `yaml:"zipkin_endpoint"`
	SampleRate     float64 `yaml:"sample_rate"` // 0.0 to 1.0
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
}

// TracerProvider wraps OpenTelemetry tracer
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NoopTracerProvider returns a provider whose spans are never recorded.
func NoopTracerProvider() *TracerProvider {
	return &TracerProvider{tracer: noop.NewTracerProvider().Tracer(tracerName)}
}

// NewTracerProvider creates a new tracer provider
func NewTracerProvider(config TracingConfig) (*TracerProvider, error) {
	if !config.Enabled {
		return NoopTracerProvider(), nil
	}

	if config.ServiceName == "" {
		config.ServiceName = tracerName
	}
	if config.SampleRate <= 0 || config.SampleRate > 1.0 {
		config.SampleRate = 1.0
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch config.Exporter {
	case "", "otlp":
		endpoint := config.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		exporter, err = otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	case "zipkin":
		endpoint := config.ZipkinEndpoint
		if endpoint == "" {
			endpoint = "http://localhost:9411/api/v2/spans"
		}
		exporter, err = zipkin.New(endpoint)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", config.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", config.ServiceName),
			attribute.String("service.version", config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SampleRate)),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(tracerName),
	}, nil
}

// NewTracerProviderWithExporter builds a synchronous provider around exporter.
// Used by tests with an in-memory exporter.
func NewTracerProviderWithExporter(exporter sdktrace.SpanExporter) *TracerProvider {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(tracerName),
	}
}

// Shutdown gracefully shuts down the tracer provider
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp != nil && tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the tracer
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartSpan starts a new span tagged with the request and campaign ids on ctx.
// A nil provider yields a non-recording span.
func (tp *TracerProvider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tp == nil || tp.tracer == nil {
		return noop.NewTracerProvider().Tracer(tracerName).Start(ctx, name)
	}
	if logID := id.LogIDFromContext(ctx); logID != "" {
		attrs = append(attrs, attribute.String(AttrLogID, logID))
	}
	if campaignID := id.CampaignIDFromContext(ctx); campaignID != "" {
		attrs = append(attrs, attribute.String(AttrCampaignID, campaignID))
	}
	return tp.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Common span names
const (
	SpanAgentInvoke     = "campaignhub.agent.invoke"
	SpanEnrichmentFetch = "campaignhub.enrichment.fetch"
	SpanHTTPServer      = "campaignhub.http.request"
)

// Common attribute keys
const (
	AttrLogID      = "campaignhub.log_id"
	AttrCampaignID = "campaignhub.campaign_id"
	AttrAgentID    = "campaignhub.agent.id"
	AttrAgentPath  = "campaignhub.agent.path"
	AttrOutcome    = "campaignhub.outcome"
	AttrPlatform   = "campaignhub.enrichment.platform"
	AttrUsername   = "campaignhub.enrichment.username"
	AttrRoute      = "campaignhub.http.route"
	AttrStatus     = "campaignhub.status"
)

// AgentAttrs creates agent invocation attributes
func AgentAttrs(agentID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
	}
}

// EnrichmentAttrs creates profile fetch attributes
func EnrichmentAttrs(platform, username string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrPlatform, platform),
		attribute.String(AttrUsername, username),
	}
}
