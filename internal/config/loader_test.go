package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envMap map[string]string

func (m envMap) Lookup(key string) (string, bool) {
	value, ok := m[key]
	return value, ok
}

func noFile(string) ([]byte, error) {
	return nil, os.ErrNotExist
}

func TestLoadDefaults(t *testing.T) {
	cfg, meta, err := Load(WithEnv(envMap{}.Lookup), WithFileReader(noFile))
	require.NoError(t, err)

	assert.Equal(t, DefaultAgentBaseURL, cfg.Agents.BaseURL)
	assert.Equal(t, 45, cfg.Agents.FastTimeoutSeconds)
	assert.Equal(t, 60, cfg.Agents.StreamTimeoutSeconds)
	assert.Equal(t, 20, cfg.Identity.TimeoutSeconds)
	assert.False(t, cfg.Identity.CacheTokens)
	assert.Equal(t, 10, cfg.Enrichment.BatchLimit)
	assert.Equal(t, 15, cfg.ImageProxy.TimeoutSeconds)
	assert.Empty(t, cfg.Identity.Password)
	assert.Empty(t, cfg.Identity.ClientSecret)
	assert.Equal(t, SourceDefault, meta.Source("agents.base_url"))
	assert.Empty(t, meta.Path())
}

func TestLoadFileThenEnvThenOverrides(t *testing.T) {
	file := []byte(`
server:
  addr: ":9000"
identity:
  username: ops
  cache_tokens: true
agents:
  base_url: https://agents.example.com
  controllers:
    create_campaign: "901"
observability:
  logging:
    level: debug
`)
	env := envMap{
		"QRAPTOR_BASE_URL": "https://env.example.com",
		"QRAPTOR_PASSWORD": "pw",
		"YOUTUBE_API_KEY":  "yt-key",
	}
	addr := ":7000"

	cfg, meta, err := Load(
		WithEnv(env.Lookup),
		WithConfigPath("campaignhub.yaml"),
		WithFileReader(func(path string) ([]byte, error) {
			assert.Equal(t, "campaignhub.yaml", path)
			return file, nil
		}),
		WithOverrides(Overrides{ServerAddr: &addr}),
	)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, SourceOverride, meta.Source("server.addr"))
	assert.Equal(t, "https://env.example.com", cfg.Agents.BaseURL)
	assert.Equal(t, SourceEnv, meta.Source("agents.base_url"))
	assert.Equal(t, "ops", cfg.Identity.Username)
	assert.Equal(t, SourceFile, meta.Source("identity.username"))
	assert.Equal(t, "pw", cfg.Identity.Password)
	assert.True(t, cfg.Identity.CacheTokens)
	assert.Equal(t, "901", cfg.Agents.Controllers["create_campaign"])
	assert.Equal(t, SourceFile, meta.Source("agents.controllers"))
	assert.Equal(t, "yt-key", cfg.Enrichment.YouTubeAPIKey)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.Equal(t, 45, cfg.Agents.FastTimeoutSeconds)
	assert.Equal(t, "campaignhub.yaml", meta.Path())
}

func TestLoadEnvAliasUsedWhenPrimaryMissing(t *testing.T) {
	cfg, meta, err := Load(WithEnv(envMap{"GOOGLE_API_KEY": "alias"}.Lookup), WithFileReader(noFile))
	require.NoError(t, err)
	assert.Equal(t, "alias", cfg.Enrichment.YouTubeAPIKey)
	assert.Equal(t, SourceEnv, meta.Source("enrichment.youtube_api_key"))
}

func TestLoadRejectsInvalidEnvValues(t *testing.T) {
	_, _, err := Load(WithEnv(envMap{"CAMPAIGNHUB_CACHE_TOKENS": "sometimes"}.Lookup), WithFileReader(noFile))
	require.Error(t, err)
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	_, _, err := Load(WithEnv(envMap{"LOG_LEVEL": "loud"}.Lookup), WithFileReader(noFile))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observability.logging.level")
}

func TestLoadTrustedProxies(t *testing.T) {
	read := func(proxies string) func(string) ([]byte, error) {
		return func(string) ([]byte, error) {
			return []byte("server:\n  trusted_proxies: " + proxies + "\n"), nil
		}
	}
	cfg, _, err := Load(WithEnv(envMap{}.Lookup), WithConfigPath("c.yaml"), WithFileReader(read(`["10.0.0.0/8", "127.0.0.1"]`)))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)

	_, _, err = Load(WithEnv(envMap{}.Lookup), WithConfigPath("c.yaml"), WithFileReader(read(`["edge-proxy"]`)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.trusted_proxies")
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, _, err := Load(WithEnv(envMap{}.Lookup), WithConfigPath("/missing.yaml"), WithFileReader(noFile))
	require.Error(t, err)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	var requested string
	_, meta, err := Load(
		WithEnv(envMap{ConfigPathEnv: "/etc/campaignhub.yaml"}.Lookup),
		WithFileReader(func(path string) ([]byte, error) {
			requested = path
			return []byte("environment: production\n"), nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "/etc/campaignhub.yaml", requested)
	assert.Equal(t, SourceFile, meta.Source("environment"))
}

func TestLoadMalformedYAML(t *testing.T) {
	_, _, err := Load(
		WithEnv(envMap{}.Lookup),
		WithFileReader(func(string) ([]byte, error) { return []byte("server: [unclosed"), nil }),
	)
	require.Error(t, err)
}

func TestDotEnvLookupLayering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APP_ENV=staging\nQRAPTOR_USERNAME=base\nQRAPTOR_PASSWORD=base-pw\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.staging"), []byte("QRAPTOR_USERNAME=staging\n"), 0o600))

	lookup, err := DotEnvLookup(envMap{"QRAPTOR_PASSWORD": "process-pw"}.Lookup, dir)
	require.NoError(t, err)

	cfg, _, err := Load(WithEnv(lookup), WithFileReader(noFile))
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Identity.Username)
	assert.Equal(t, "process-pw", cfg.Identity.Password)
	assert.Equal(t, "staging", cfg.Environment)
}

func TestDotEnvLookupMissingFiles(t *testing.T) {
	lookup, err := DotEnvLookup(envMap{}.Lookup, t.TempDir())
	require.NoError(t, err)
	_, ok := lookup("QRAPTOR_USERNAME")
	assert.False(t, ok)
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 20*time.Second, Seconds(20, time.Minute))
	assert.Equal(t, time.Minute, Seconds(0, time.Minute))
}
