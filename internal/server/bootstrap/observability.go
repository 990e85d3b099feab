package bootstrap

import (
	"context"
	"io"
	"time"

	"campaignhub/internal/logging"
	"campaignhub/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
)

// Observability bundles the process logger, metrics and tracer.
type Observability struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.TracerProvider
}

// InitObservability installs the base logger and builds metrics and tracing.
// A tracer that cannot be built is replaced by a no-op one and reported as an
// error alongside a usable Observability.
func InitObservability(cfg observability.Config, output io.Writer, reg prometheus.Registerer) (*Observability, func(), error) {
	base := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
	})
	logging.SetDefault(base)

	obs := &Observability{Logger: base, Tracer: observability.NoopTracerProvider()}
	if cfg.Metrics.Enabled {
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		obs.Metrics = observability.MustNewMetrics(reg)
	}

	tracer, err := observability.NewTracerProvider(cfg.Tracing)
	if err != nil {
		return obs, func() {}, err
	}
	obs.Tracer = tracer

	logger := logging.NewComponentLogger("Observability")
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Warn("Tracer shutdown error: %v", err)
		}
	}
	return obs, cleanup, nil
}
