package bootstrap

import (
	"strings"

	"campaignhub/internal/config"
	"campaignhub/internal/logging"
)

// LogServerConfiguration prints a redacted snapshot of the server configuration.
func LogServerConfiguration(logger logging.Logger, cfg config.Config, meta config.Metadata) {
	logger = logging.OrNop(logger)

	logger.Info("=== Server Configuration ===")
	if path := meta.Path(); path != "" {
		logger.Info("Config file: %s", path)
	} else {
		logger.Info("Config file: (none)")
	}
	logger.Info("Environment: %s (source=%s)", cfg.Environment, meta.Source("environment"))
	logger.Info("Listen address: %s (source=%s)", cfg.Server.Addr, meta.Source("server.addr"))
	logger.Info("Allowed origins: %s", strings.Join(cfg.Server.AllowedOrigins, ","))
	logger.Info("Trusted proxies: %s", strings.Join(cfg.Server.TrustedProxies, ","))
	logger.Info("HTTP Rate Limit: %d rpm (burst=%d)", cfg.Server.RateLimitPerMinute, cfg.Server.RateLimitBurst)
	logger.Info("Agent base URL: %s (source=%s)", cfg.Agents.BaseURL, meta.Source("agents.base_url"))
	logger.Info("Agent timeouts: fast=%ds stream=%ds", cfg.Agents.FastTimeoutSeconds, cfg.Agents.StreamTimeoutSeconds)
	if len(cfg.Agents.Controllers) > 0 {
		logger.Info("Agent controller overrides: %d", len(cfg.Agents.Controllers))
	}
	logger.Info("Token URL: %s (source=%s)", cfg.Identity.TokenURL, meta.Source("identity.token_url"))
	logger.Info("Identity user: %s", setOrNot(cfg.Identity.Username))
	logger.Info("Identity password: %s", setOrNot(cfg.Identity.Password))
	logger.Info("Token cache: %t (source=%s)", cfg.Identity.CacheTokens, meta.Source("identity.cache_tokens"))
	logger.Info("YouTube API key: %s", setOrNot(cfg.Enrichment.YouTubeAPIKey))
	logger.Info("Enrichment batch limit: %d", cfg.Enrichment.BatchLimit)
	logger.Info("Tracing: %t (exporter=%s)", cfg.Observability.Tracing.Enabled, cfg.Observability.Tracing.Exporter)
	logger.Info("============================")
}

func setOrNot(value string) string {
	if strings.TrimSpace(value) != "" {
		return "(set)"
	}
	return "(not set)"
}
