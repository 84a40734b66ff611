package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/multiverse-catalog/pkg/logging"
	"github.com/Sternrassler/multiverse-catalog/pkg/pokemon"
	"github.com/Sternrassler/multiverse-catalog/pkg/rickandmorty"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, rickandmorty.DefaultBaseURL, cfg.Upstream.RickAndMortyURL)
	assert.Equal(t, pokemon.DefaultBaseURL, cfg.Upstream.PokemonURL)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 1, cfg.Upstream.MaxAttempts)
	assert.Equal(t, 1, cfg.Pagination.Concurrency)
	assert.Equal(t, pokemon.PokedexSize, cfg.Pagination.PokedexLimit)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
redis:
  addr: "localhost:6379"
logging:
  level: debug
  pretty: true
upstream:
  timeout: 5s
  max_attempts: 3
pagination:
  concurrency: 4
cache:
  memory_ttl: 2m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 3, cfg.Upstream.MaxAttempts)
	assert.Equal(t, 4, cfg.Pagination.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Cache.MemoryTTL)
	assert.Equal(t, "multiverse-catalog/0.1.0", cfg.Upstream.UserAgent, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("CATALOG_SERVER_ADDR", ":7070")
	t.Setenv("CATALOG_UPSTREAM_MAX_ATTEMPTS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Upstream.MaxAttempts)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "upstream:\n  max_attempts: 0\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "max_attempts")
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad rick and morty url", func(c *Config) { c.Upstream.RickAndMortyURL = "not a url" }},
		{"bad pokemon url", func(c *Config) { c.Upstream.PokemonURL = "" }},
		{"empty user agent", func(c *Config) { c.Upstream.UserAgent = "" }},
		{"zero timeout", func(c *Config) { c.Upstream.Timeout = 0 }},
		{"negative rate", func(c *Config) { c.RateLimit.RequestsPerSecond = -1 }},
		{"zero concurrency", func(c *Config) { c.Pagination.Concurrency = 0 }},
		{"zero page size", func(c *Config) { c.Pagination.PokemonPageSize = 0 }},
		{"negative memory size", func(c *Config) { c.Cache.MemorySize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDerivedConfigs(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Upstream.MaxAttempts = 3
	cfg.Logging.Level = "debug"

	cc := cfg.ClientConfig(pokemon.Upstream, cfg.Upstream.PokemonURL)
	assert.Equal(t, pokemon.Upstream, cc.Upstream)
	assert.Equal(t, pokemon.DefaultBaseURL, cc.BaseURL)
	assert.Equal(t, 3, cc.Retry.MaxAttempts)
	assert.Equal(t, cfg.Upstream.Timeout, cc.Timeout)

	rl := cfg.RateLimitSetup(rickandmorty.Upstream)
	assert.Equal(t, rickandmorty.Upstream, rl.Upstream)
	assert.Equal(t, 10.0, rl.RequestsPerSecond)

	assert.Equal(t, logging.LevelDebug, cfg.LoggingSetup().Level)
	assert.Equal(t, cfg.Cache.MemoryTTL, cfg.CacheSetup().MemoryTTL)
}
