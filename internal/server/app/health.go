package app

import (
	"context"
	"sync"
)

// HealthStatus is the readiness of one component.
type HealthStatus string

const (
	HealthStatusReady    HealthStatus = "ready"
	HealthStatusNotReady HealthStatus = "not_ready"
	HealthStatusDisabled HealthStatus = "disabled"
)

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Name    string         `json:"name"`
	Status  HealthStatus   `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ComponentCheck reports the health of one component.
type ComponentCheck interface {
	Check(ctx context.Context) ComponentHealth
}

// HealthChecker aggregates the checks of all components
type HealthChecker struct {
	checks []ComponentCheck
	mu     sync.RWMutex
}

// NewHealthChecker creates a new health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make([]ComponentCheck, 0),
	}
}

// RegisterCheck adds a component check
func (h *HealthChecker) RegisterCheck(check ComponentCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// CheckAll returns health status for all components
func (h *HealthChecker) CheckAll(ctx context.Context) []ComponentHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make([]ComponentHealth, 0, len(h.checks))
	for _, check := range h.checks {
		results = append(results, check.Check(ctx))
	}
	return results
}

// Healthy reports whether no component is not ready.
func Healthy(results []ComponentHealth) bool {
	for _, r := range results {
		if r.Status == HealthStatusNotReady {
			return false
		}
	}
	return true
}

// AgentPlatformCheck checks that the agent platform is configured.
type AgentPlatformCheck struct {
	BaseURL        string
	HasCredentials bool
	CachesTokens   bool
}

// Check returns the configuration state of the agent platform.
func (p AgentPlatformCheck) Check(ctx context.Context) ComponentHealth {
	details := map[string]any{"base_url": p.BaseURL, "token_cache": p.CachesTokens}
	switch {
	case p.BaseURL == "":
		return ComponentHealth{Name: "agent_platform", Status: HealthStatusNotReady, Message: "agent base url not configured", Details: details}
	case !p.HasCredentials:
		return ComponentHealth{Name: "agent_platform", Status: HealthStatusNotReady, Message: "identity credentials not configured", Details: details}
	}
	// Connectivity is not tested here.
	return ComponentHealth{Name: "agent_platform", Status: HealthStatusReady, Message: "agent platform configured", Details: details}
}

// YouTubeCheck reports whether YouTube enrichment can run.
type YouTubeCheck struct {
	HasAPIKey bool
}

// Check returns the YouTube enrichment state.
func (p YouTubeCheck) Check(ctx context.Context) ComponentHealth {
	if !p.HasAPIKey {
		return ComponentHealth{Name: "youtube", Status: HealthStatusDisabled, Message: "no api key; YouTube records are degraded"}
	}
	return ComponentHealth{Name: "youtube", Status: HealthStatusReady, Message: "YouTube Data API enabled"}
}
