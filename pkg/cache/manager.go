package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Config holds cache manager configuration.
type Config struct {
	// MemorySize is the maximum number of entries in the memory layer. Zero disables it
	// unless Redis is also absent, in which case DefaultMemorySize is used.
	MemorySize int

	// MemoryTTL bounds how long an entry stays in the memory layer.
	MemoryTTL time.Duration

	// StaleRetention keeps expired entries in Redis for conditional revalidation.
	StaleRetention time.Duration
}

// DefaultMemorySize is used when no Redis layer is configured.
const DefaultMemorySize = 2048

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemorySize:     DefaultMemorySize,
		MemoryTTL:      60 * time.Second,
		StaleRetention: 24 * time.Hour,
	}
}

// Manager handles caching operations across the memory and Redis layers.
type Manager struct {
	redis  *redis.Client
	memory *expirable.LRU[string, *CacheEntry]
	config Config
}

// NewManager creates a cache manager. redisClient may be nil for a memory-only cache.
func NewManager(redisClient *redis.Client, cfg Config) *Manager {
	switch {
	case redisClient == nil:
		if cfg.MemorySize <= 0 {
			cfg.MemorySize = DefaultMemorySize
		}
		// The memory layer is the only layer: keep stale entries for revalidation.
		cfg.MemoryTTL = 0
	case cfg.MemoryTTL <= 0:
		cfg.MemoryTTL = DefaultConfig().MemoryTTL
	}

	m := &Manager{
		redis:  redisClient,
		config: cfg,
	}
	if cfg.MemorySize > 0 {
		m.memory = expirable.NewLRU[string, *CacheEntry](cfg.MemorySize, nil, cfg.MemoryTTL)
	}
	return m
}

// Get retrieves a fresh cache entry.
// Returns ErrCacheMiss if the key doesn't exist or the entry is stale.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	entry, err := m.GetStale(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry.IsExpired() {
		return nil, ErrCacheMiss
	}
	return entry, nil
}

// GetStale retrieves an entry whether or not it has expired, so the caller can
// revalidate it. Hit/miss metrics count only fresh entries as hits.
func (m *Manager) GetStale(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	if m.memory != nil {
		if entry, ok := m.memory.Get(cacheKey); ok {
			if !entry.IsExpired() {
				CacheHits.WithLabelValues("memory").Inc()
				return entry, nil
			}
			if m.redis == nil {
				CacheMisses.Inc()
				return entry, nil
			}
		}
	}

	if m.redis == nil {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		CacheMisses.Inc()
		return &entry, nil
	}

	CacheHits.WithLabelValues("redis").Inc()
	m.remember(cacheKey, &entry)
	return &entry, nil
}

// Set stores an entry. Entries that are already stale are not stored.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	cacheKey := key.String()
	m.remember(cacheKey, entry)

	if m.redis == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, cacheKey, data, ttl+m.config.StaleRetention).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes an entry from every layer.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	cacheKey := key.String()

	if m.memory != nil {
		m.memory.Remove(cacheKey)
		MemoryEntries.Set(float64(m.memory.Len()))
	}
	if m.redis == nil {
		return nil
	}

	if err := m.redis.Del(ctx, cacheKey).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// UpdateTTL moves the expiry of an existing (possibly stale) entry, typically after
// a 304 Not Modified revalidation.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.GetStale(ctx, key)
	if err != nil {
		return err
	}

	updated := *entry
	updated.Expires = newExpires
	updated.CachedAt = time.Now()
	return m.Set(ctx, key, &updated)
}

// MemoryLen returns the number of entries in the memory layer.
func (m *Manager) MemoryLen() int {
	if m.memory == nil {
		return 0
	}
	return m.memory.Len()
}

func (m *Manager) remember(cacheKey string, entry *CacheEntry) {
	if m.memory == nil {
		return
	}
	m.memory.Add(cacheKey, entry)
	MemoryEntries.Set(float64(m.memory.Len()))
}
