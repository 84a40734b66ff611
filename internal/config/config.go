// Package config loads catalog configuration from an optional YAML file and
// CATALOG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sternrassler/multiverse-catalog/pkg/cache"
	"github.com/Sternrassler/multiverse-catalog/pkg/client"
	"github.com/Sternrassler/multiverse-catalog/pkg/logging"
	"github.com/Sternrassler/multiverse-catalog/pkg/pokemon"
	"github.com/Sternrassler/multiverse-catalog/pkg/ratelimit"
	"github.com/Sternrassler/multiverse-catalog/pkg/rickandmorty"
)

// EnvPrefix prefixes every environment override, e.g. CATALOG_SERVER_ADDR.
const EnvPrefix = "CATALOG"

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig holds Redis connection details. An empty Addr runs without Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// UpstreamConfig holds settings shared by both upstream clients.
type UpstreamConfig struct {
	RickAndMortyURL string        `mapstructure:"rickandmorty_url"`
	PokemonURL      string        `mapstructure:"pokemon_url"`
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
}

// RateLimitConfig holds local request pacing.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// PaginationConfig holds catalog walk settings.
type PaginationConfig struct {
	Concurrency     int `mapstructure:"concurrency"`
	PokemonPageSize int `mapstructure:"pokemon_page_size"`
	PokedexLimit    int `mapstructure:"pokedex_limit"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	MemorySize     int           `mapstructure:"memory_size"`
	MemoryTTL      time.Duration `mapstructure:"memory_ttl"`
	StaleRetention time.Duration `mapstructure:"stale_retention"`
}

// Load reads configuration from path, if given, and environment variables.
// Without a path, catalog.yaml is looked up in the working directory and
// $HOME/.config/catalog; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/catalog")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetDefault("upstream.rickandmorty_url", rickandmorty.DefaultBaseURL)
	v.SetDefault("upstream.pokemon_url", pokemon.DefaultBaseURL)
	v.SetDefault("upstream.user_agent", "multiverse-catalog/0.1.0")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.max_attempts", 1)

	v.SetDefault("ratelimit.requests_per_second", 10.0)
	v.SetDefault("ratelimit.burst", 5)

	v.SetDefault("pagination.concurrency", 1)
	v.SetDefault("pagination.pokemon_page_size", pokemon.DefaultPageSize)
	v.SetDefault("pagination.pokedex_limit", pokemon.PokedexSize)

	v.SetDefault("cache.memory_size", cache.DefaultMemorySize)
	v.SetDefault("cache.memory_ttl", 60*time.Second)
	v.SetDefault("cache.stale_retention", 24*time.Hour)
}

// Validate checks the configuration for values the components cannot run with.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"upstream.rickandmorty_url": c.Upstream.RickAndMortyURL,
		"upstream.pokemon_url":      c.Upstream.PokemonURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: invalid URL %q", name, raw)
		}
	}
	if c.Upstream.UserAgent == "" {
		return errors.New("upstream.user_agent is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Upstream.MaxAttempts < 1 {
		return fmt.Errorf("upstream.max_attempts must be at least 1, got %d", c.Upstream.MaxAttempts)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("ratelimit values must not be negative")
	}
	if c.Pagination.Concurrency < 1 {
		return fmt.Errorf("pagination.concurrency must be at least 1, got %d", c.Pagination.Concurrency)
	}
	if c.Pagination.PokemonPageSize < 1 || c.Pagination.PokedexLimit < 1 {
		return errors.New("pagination.pokemon_page_size and pagination.pokedex_limit must be positive")
	}
	if c.Cache.MemorySize < 0 {
		return fmt.Errorf("cache.memory_size must not be negative, got %d", c.Cache.MemorySize)
	}
	return nil
}

// LoggingSetup returns the logger configuration.
func (c *Config) LoggingSetup() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	return cfg
}

// ClientConfig returns the client configuration for upstream.
func (c *Config) ClientConfig(upstream, baseURL string) client.Config {
	cfg := client.DefaultConfig(upstream, baseURL, c.Upstream.UserAgent)
	cfg.Timeout = c.Upstream.Timeout
	cfg.Retry.MaxAttempts = c.Upstream.MaxAttempts
	return cfg
}

// RateLimitSetup returns the tracker configuration for upstream.
func (c *Config) RateLimitSetup(upstream string) ratelimit.Config {
	cfg := ratelimit.DefaultConfig(upstream)
	cfg.RequestsPerSecond = c.RateLimit.RequestsPerSecond
	cfg.Burst = c.RateLimit.Burst
	return cfg
}

// CacheSetup returns the cache manager configuration.
func (c *Config) CacheSetup() cache.Config {
	return cache.Config{
		MemorySize:     c.Cache.MemorySize,
		MemoryTTL:      c.Cache.MemoryTTL,
		StaleRetention: c.Cache.StaleRetention,
	}
}
