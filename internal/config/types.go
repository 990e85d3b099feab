package config

import (
	"time"

	"campaignhub/internal/observability"
)

// Defaults for the hosted agent platform and its identity realm.
const (
	DefaultAgentBaseURL  = "https://appzyjjakwlasqtu.qraptor.ai"
	DefaultTokenURL      = "https://portal.qraptor.ai/auth1/realms/appzyjjakwlasqtu/protocol/openid-connect/token"
	DefaultClientID      = "application"
	DefaultInstagramApp  = "936619743392459"
	DefaultYouTubeAPIURL = "https://www.googleapis.com/youtube/v3"
)

// Config captures every setting used by the campaign server and CLI.
type Config struct {
	Environment   string               `yaml:"environment"`
	Server        ServerConfig         `yaml:"server"`
	Identity      IdentityConfig       `yaml:"identity"`
	Agents        AgentsConfig         `yaml:"agents"`
	Enrichment    EnrichmentConfig     `yaml:"enrichment"`
	Store         StoreConfig          `yaml:"store"`
	ImageProxy    ImageProxyConfig     `yaml:"image_proxy"`
	Observability observability.Config `yaml:"observability"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	Addr                   string   `yaml:"addr"`
	AllowedOrigins         []string `yaml:"allowed_origins"`
	TrustedProxies         []string `yaml:"trusted_proxies"`
	ReadHeaderTimeoutSecs  int      `yaml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	RateLimitPerMinute     int      `yaml:"rate_limit_per_minute"`
	RateLimitBurst         int      `yaml:"rate_limit_burst"`
}

// IdentityConfig configures the password-grant token endpoint.
type IdentityConfig struct {
	TokenURL         string `yaml:"token_url"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	CacheTokens      bool   `yaml:"cache_tokens"`
	CacheSkewSeconds int    `yaml:"cache_skew_seconds"`
}

// AgentsConfig configures the agent controller platform.
type AgentsConfig struct {
	BaseURL              string            `yaml:"base_url"`
	FastTimeoutSeconds   int               `yaml:"fast_timeout_seconds"`
	StreamTimeoutSeconds int               `yaml:"stream_timeout_seconds"`
	MaxLineBytes         int               `yaml:"max_line_bytes"`
	Controllers          map[string]string `yaml:"controllers"`
}

// EnrichmentConfig configures the public profile sources.
type EnrichmentConfig struct {
	YouTubeAPIKey     string  `yaml:"youtube_api_key"`
	YouTubeAPIURL     string  `yaml:"youtube_api_url"`
	InstagramWebURL   string  `yaml:"instagram_web_url"`
	InstagramAPIURL   string  `yaml:"instagram_api_url"`
	InstagramAppID    string  `yaml:"instagram_app_id"`
	UserAgent         string  `yaml:"user_agent"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	BatchLimit        int     `yaml:"batch_limit"`
	DefaultBrandFit   int     `yaml:"default_brand_fit"`
	DefaultEngagement float64 `yaml:"default_engagement"`
}

// StoreConfig bounds the in-memory store.
type StoreConfig struct {
	BatchCapacity int `yaml:"batch_capacity"`
}

// ImageProxyConfig configures the avatar proxy route.
type ImageProxyConfig struct {
	TimeoutSeconds       int   `yaml:"timeout_seconds"`
	MaxBytes             int64 `yaml:"max_bytes"`
	AllowPrivateNetworks bool  `yaml:"allow_private_networks"`
}

// Seconds converts a configured second count to a duration, using fallback
// when the value is not positive.
func Seconds(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

// Default returns the configuration used before any file, env or override is applied.
func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Addr:                   ":5000",
			AllowedOrigins:         []string{"*"},
			ReadHeaderTimeoutSecs:  10,
			ShutdownTimeoutSeconds: 15,
			RateLimitPerMinute:     120,
			RateLimitBurst:         20,
		},
		Identity: IdentityConfig{
			TokenURL:         DefaultTokenURL,
			ClientID:         DefaultClientID,
			TimeoutSeconds:   20,
			CacheSkewSeconds: 30,
		},
		Agents: AgentsConfig{
			BaseURL:              DefaultAgentBaseURL,
			FastTimeoutSeconds:   45,
			StreamTimeoutSeconds: 60,
			MaxLineBytes:         4 << 20,
		},
		Enrichment: EnrichmentConfig{
			YouTubeAPIURL:     DefaultYouTubeAPIURL,
			InstagramWebURL:   "https://www.instagram.com",
			InstagramAPIURL:   "https://i.instagram.com/api/v1",
			InstagramAppID:    DefaultInstagramApp,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			TimeoutSeconds:    30,
			BatchLimit:        10,
			DefaultBrandFit:   85,
			DefaultEngagement: 2.5,
		},
		Store: StoreConfig{
			BatchCapacity: 256,
		},
		ImageProxy: ImageProxyConfig{
			TimeoutSeconds: 15,
			MaxBytes:       10 << 20,
		},
		Observability: observability.DefaultConfig(),
	}
}
