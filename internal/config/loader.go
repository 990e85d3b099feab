package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"campaignhub/internal/observability"

	"gopkg.in/yaml.v3"
)

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

// ConfigPathEnv names the variable that points at the YAML config file.
const ConfigPathEnv = "CAMPAIGNHUB_CONFIG"

// Metadata contains provenance details for loaded configuration.
type Metadata struct {
	sources  map[string]ValueSource
	path     string
	loadedAt time.Time
}

// Source returns the origin for the given configuration field.
func (m Metadata) Source(field string) ValueSource {
	if src, ok := m.sources[field]; ok {
		return src
	}
	return SourceDefault
}

// Path returns the config file that was read, or "" when none was found.
func (m Metadata) Path() string {
	return m.path
}

// LoadedAt returns the timestamp when the configuration was constructed.
func (m Metadata) LoadedAt() time.Time {
	return m.loadedAt
}

// Overrides conveys caller-specified values that should win over env/file sources.
type Overrides struct {
	ServerAddr   *string
	AgentBaseURL *string
	LogLevel     *string
	LogFormat    *string
	CacheTokens  *bool
}

// EnvLookup resolves the value for an environment variable.
type EnvLookup func(string) (string, bool)

// Option customises the loader behaviour.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	overrides  Overrides
	configPath string
}

// WithEnv supplies a custom environment lookup implementation.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// WithOverrides applies caller overrides that take highest precedence.
func WithOverrides(overrides Overrides) Option {
	return func(o *loadOptions) {
		o.overrides = overrides
	}
}

// WithConfigPath forces the loader to read configuration from a specific file.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithFileReader injects a custom reader, used primarily for tests.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(o *loadOptions) {
		o.readFile = reader
	}
}

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Load constructs the configuration by merging defaults, file, env and overrides.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.envLookup == nil {
		options.envLookup = DefaultEnvLookup
	}

	meta := Metadata{sources: map[string]ValueSource{}, loadedAt: time.Now()}
	cfg := Default()

	if err := applyFile(&cfg, &meta, options); err != nil {
		return Config{}, Metadata{}, err
	}
	if err := applyEnv(&cfg, &meta, options.envLookup); err != nil {
		return Config{}, Metadata{}, err
	}
	applyOverrides(&cfg, &meta, options.overrides)

	if err := validate(cfg); err != nil {
		return Config{}, Metadata{}, err
	}
	return cfg, meta, nil
}

func applyFile(cfg *Config, meta *Metadata, opts loadOptions) error {
	configPath := opts.configPath
	explicit := configPath != ""
	if !explicit {
		if value, ok := opts.envLookup(ConfigPathEnv); ok && strings.TrimSpace(value) != "" {
			configPath = strings.TrimSpace(value)
			explicit = true
		} else {
			configPath = "campaignhub.yaml"
		}
	}

	data, err := opts.readFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var present map[string]any
	if err := yaml.Unmarshal(data, &present); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	meta.path = configPath
	markFileSources(meta, "", present)
	return nil
}

// markFileSources records every leaf key present in the file as a file-sourced field.
func markFileSources(meta *Metadata, prefix string, node map[string]any) {
	for key, value := range node {
		field := key
		if prefix != "" {
			field = prefix + "." + key
		}
		if child, ok := value.(map[string]any); ok && !strings.HasSuffix(field, "controllers") {
			markFileSources(meta, field, child)
			continue
		}
		meta.sources[field] = SourceFile
	}
}

type envBinding struct {
	keys  []string
	field string
	apply func(cfg *Config, value string) error
}

func stringBinding(field string, target func(*Config) *string, keys ...string) envBinding {
	return envBinding{keys: keys, field: field, apply: func(cfg *Config, value string) error {
		*target(cfg) = value
		return nil
	}}
}

func intBinding(field string, target func(*Config) *int, keys ...string) envBinding {
	return envBinding{keys: keys, field: field, apply: func(cfg *Config, value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", keys[0], err)
		}
		*target(cfg) = parsed
		return nil
	}}
}

func boolBinding(field string, target func(*Config) *bool, keys ...string) envBinding {
	return envBinding{keys: keys, field: field, apply: func(cfg *Config, value string) error {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", keys[0], err)
		}
		*target(cfg) = parsed
		return nil
	}}
}

var envBindings = []envBinding{
	stringBinding("environment", func(c *Config) *string { return &c.Environment }, "APP_ENV"),
	stringBinding("server.addr", func(c *Config) *string { return &c.Server.Addr }, "CAMPAIGNHUB_ADDR"),
	intBinding("server.rate_limit_per_minute", func(c *Config) *int { return &c.Server.RateLimitPerMinute }, "CAMPAIGNHUB_RATE_LIMIT_PER_MINUTE"),
	stringBinding("identity.token_url", func(c *Config) *string { return &c.Identity.TokenURL }, "QRAPTOR_TOKEN_URL"),
	stringBinding("identity.username", func(c *Config) *string { return &c.Identity.Username }, "QRAPTOR_USERNAME"),
	stringBinding("identity.password", func(c *Config) *string { return &c.Identity.Password }, "QRAPTOR_PASSWORD"),
	stringBinding("identity.client_id", func(c *Config) *string { return &c.Identity.ClientID }, "QRAPTOR_CLIENT_ID"),
	stringBinding("identity.client_secret", func(c *Config) *string { return &c.Identity.ClientSecret }, "QRAPTOR_CLIENT_SECRET"),
	boolBinding("identity.cache_tokens", func(c *Config) *bool { return &c.Identity.CacheTokens }, "CAMPAIGNHUB_CACHE_TOKENS"),
	stringBinding("agents.base_url", func(c *Config) *string { return &c.Agents.BaseURL }, "QRAPTOR_BASE_URL"),
	intBinding("agents.fast_timeout_seconds", func(c *Config) *int { return &c.Agents.FastTimeoutSeconds }, "CAMPAIGNHUB_AGENT_FAST_TIMEOUT_SECONDS"),
	intBinding("agents.stream_timeout_seconds", func(c *Config) *int { return &c.Agents.StreamTimeoutSeconds }, "CAMPAIGNHUB_AGENT_STREAM_TIMEOUT_SECONDS"),
	stringBinding("enrichment.youtube_api_key", func(c *Config) *string { return &c.Enrichment.YouTubeAPIKey }, "YOUTUBE_API_KEY", "GOOGLE_API_KEY"),
	stringBinding("observability.logging.level", func(c *Config) *string { return &c.Observability.Logging.Level }, "CAMPAIGNHUB_LOG_LEVEL", "LOG_LEVEL"),
	stringBinding("observability.logging.format", func(c *Config) *string { return &c.Observability.Logging.Format }, "CAMPAIGNHUB_LOG_FORMAT"),
	boolBinding("observability.tracing.enabled", func(c *Config) *bool { return &c.Observability.Tracing.Enabled }, "CAMPAIGNHUB_TRACING_ENABLED"),
	stringBinding("observability.tracing.otlp_endpoint", func(c *Config) *string { return &c.Observability.Tracing.OTLPEndpoint }, "OTEL_EXPORTER_OTLP_ENDPOINT"),
}

func applyEnv(cfg *Config, meta *Metadata, lookup EnvLookup) error {
	for _, binding := range envBindings {
		for _, key := range binding.keys {
			value, ok := lookup(key)
			value = strings.TrimSpace(value)
			if !ok || value == "" {
				continue
			}
			if err := binding.apply(cfg, value); err != nil {
				return err
			}
			meta.sources[binding.field] = SourceEnv
			break
		}
	}
	return nil
}

func applyOverrides(cfg *Config, meta *Metadata, overrides Overrides) {
	if overrides.ServerAddr != nil {
		cfg.Server.Addr = *overrides.ServerAddr
		meta.sources["server.addr"] = SourceOverride
	}
	if overrides.AgentBaseURL != nil {
		cfg.Agents.BaseURL = *overrides.AgentBaseURL
		meta.sources["agents.base_url"] = SourceOverride
	}
	if overrides.LogLevel != nil {
		cfg.Observability.Logging.Level = *overrides.LogLevel
		meta.sources["observability.logging.level"] = SourceOverride
	}
	if overrides.LogFormat != nil {
		cfg.Observability.Logging.Format = *overrides.LogFormat
		meta.sources["observability.logging.format"] = SourceOverride
	}
	if overrides.CacheTokens != nil {
		cfg.Identity.CacheTokens = *overrides.CacheTokens
		meta.sources["identity.cache_tokens"] = SourceOverride
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Agents.BaseURL) == "" {
		return fmt.Errorf("agents.base_url is required")
	}
	if strings.TrimSpace(cfg.Identity.TokenURL) == "" {
		return fmt.Errorf("identity.token_url is required")
	}
	if cfg.Enrichment.BatchLimit < 0 {
		return fmt.Errorf("enrichment.batch_limit must not be negative")
	}
	if _, err := observability.ParseLevel(cfg.Observability.Logging.Level); err != nil {
		return fmt.Errorf("observability.logging.level: %w", err)
	}
	for _, proxy := range cfg.Server.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", proxy)
		}
	}
	return nil
}

func validProxy(value string) bool {
	if strings.Contains(value, "/") {
		_, _, err := net.ParseCIDR(value)
		return err == nil
	}
	return net.ParseIP(value) != nil
}
