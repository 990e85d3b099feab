package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"campaignhub/internal/logging"
	"campaignhub/internal/server/app"
)

// Stage is one named step of server startup.
type Stage struct {
	Name     string
	Required bool // failure aborts startup; otherwise the stage is recorded as degraded
	Init     func() error
}

// DegradedComponents tracks optional stages that failed without stopping startup.
type DegradedComponents struct {
	mu         sync.RWMutex
	components map[string]string
}

// NewDegradedComponents creates an empty tracker.
func NewDegradedComponents() *DegradedComponents {
	return &DegradedComponents{components: make(map[string]string)}
}

// Record marks a component as degraded.
func (d *DegradedComponents) Record(name, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components[name] = reason
}

// Map returns a snapshot of the degraded components.
func (d *DegradedComponents) Map() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.components))
	for k, v := range d.components {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether every stage succeeded.
func (d *DegradedComponents) IsEmpty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.components) == 0
}

// RunStages runs stages in order. A failed required stage stops the run.
func RunStages(stages []Stage, degraded *DegradedComponents, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	for _, stage := range stages {
		logger.Debug("[Bootstrap] Running stage: %s (required=%v)", stage.Name, stage.Required)
		if err := stage.Init(); err != nil {
			if stage.Required {
				return fmt.Errorf("required stage %q failed: %w", stage.Name, err)
			}
			logger.Warn("[Bootstrap] Optional stage %q failed: %v (continuing in degraded mode)", stage.Name, err)
			if degraded != nil {
				degraded.Record(stage.Name, err.Error())
			}
		}
	}
	return nil
}

// DegradedCheck surfaces failed optional stages on /healthz.
type DegradedCheck struct {
	degraded *DegradedComponents
}

// NewDegradedCheck wraps a tracker as a component check.
func NewDegradedCheck(degraded *DegradedComponents) DegradedCheck {
	return DegradedCheck{degraded: degraded}
}

// Check reports not ready while any optional stage is degraded.
func (p DegradedCheck) Check(context.Context) app.ComponentHealth {
	if p.degraded == nil || p.degraded.IsEmpty() {
		return app.ComponentHealth{Name: "bootstrap", Status: app.HealthStatusReady}
	}
	components := p.degraded.Map()
	names := make([]string, 0, len(components))
	details := make(map[string]any, len(components))
	for name, reason := range components {
		names = append(names, name)
		details[name] = reason
	}
	sort.Strings(names)
	return app.ComponentHealth{
		Name:    "bootstrap",
		Status:  app.HealthStatusNotReady,
		Message: "degraded: " + strings.Join(names, ", "),
		Details: details,
	}
}
