package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts an in-process Redis for unit tests. Integration tests
// under tests/integration run against a real Redis container.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func characterEntry(expires time.Time) *CacheEntry {
	return &CacheEntry{
		Data:       []byte(`{"id":1,"name":"Rick Sanchez"}`),
		ETag:       `"abc123"`,
		Expires:    expires,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		CachedAt:   time.Now(),
	}
}

var detailKey = CacheKey{Upstream: "rickandmorty", Endpoint: "/api/character/1"}

func TestManager_SetAndGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, DefaultConfig())
	ctx := context.Background()

	entry := characterEntry(time.Now().Add(5 * time.Minute))
	if err := manager.Set(ctx, detailKey, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, detailKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data = %s, want %s", got.Data, entry.Data)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag = %s, want %s", got.ETag, entry.ETag)
	}
}

func TestManager_RedisLayerSharedAcrossManagers(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	writer := NewManager(client, Config{})
	if err := writer.Set(ctx, detailKey, characterEntry(time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reader := NewManager(client, DefaultConfig())
	if _, err := reader.Get(ctx, detailKey); err != nil {
		t.Fatalf("Get from second manager failed: %v", err)
	}
	if reader.MemoryLen() != 1 {
		t.Errorf("MemoryLen() = %d, want 1 after a redis hit is promoted", reader.MemoryLen())
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, DefaultConfig())

	_, err := manager.Get(context.Background(), CacheKey{Endpoint: "/api/character/999"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Set_ExpiredEntryNotStored(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client, DefaultConfig())
	ctx := context.Background()

	if err := manager.Set(ctx, detailKey, characterEntry(time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if mr.Exists(detailKey.String()) {
		t.Error("expired entry should not be written to redis")
	}
	if _, err := manager.GetStale(ctx, detailKey); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_StaleRetention(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client, Config{StaleRetention: time.Hour})
	ctx := context.Background()

	entry := characterEntry(time.Now().Add(100 * time.Millisecond))
	if err := manager.Set(ctx, detailKey, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ttl := mr.TTL(detailKey.String())
	if ttl < time.Hour {
		t.Errorf("redis TTL = %v, want at least the stale retention", ttl)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := manager.Get(ctx, detailKey); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get on stale entry: expected ErrCacheMiss, got %v", err)
	}
	stale, err := manager.GetStale(ctx, detailKey)
	if err != nil {
		t.Fatalf("GetStale failed: %v", err)
	}
	if stale.ETag != entry.ETag {
		t.Errorf("stale ETag = %q, want %q", stale.ETag, entry.ETag)
	}
}

func TestManager_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, DefaultConfig())
	ctx := context.Background()

	if err := manager.Set(ctx, detailKey, characterEntry(time.Now().Add(5*time.Minute))); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, detailKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, detailKey); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestManager_UpdateTTL_RevivesStaleEntry(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, DefaultConfig())
	ctx := context.Background()

	if err := manager.Set(ctx, detailKey, characterEntry(time.Now().Add(50*time.Millisecond))); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(80 * time.Millisecond)

	newExpires := time.Now().Add(10 * time.Minute)
	if err := manager.UpdateTTL(ctx, detailKey, newExpires); err != nil {
		t.Fatalf("UpdateTTL failed: %v", err)
	}

	got, err := manager.Get(ctx, detailKey)
	if err != nil {
		t.Fatalf("Get after UpdateTTL failed: %v", err)
	}
	if diff := got.Expires.Sub(newExpires); diff < -time.Second || diff > time.Second {
		t.Errorf("Expires = %v, want %v", got.Expires, newExpires)
	}
}

func TestManager_MemoryOnly(t *testing.T) {
	manager := NewManager(nil, Config{})
	ctx := context.Background()

	if err := manager.Set(ctx, detailKey, characterEntry(time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := manager.Get(ctx, detailKey); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if manager.MemoryLen() != 1 {
		t.Errorf("MemoryLen() = %d, want 1", manager.MemoryLen())
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(nil, Config{})
	if err := manager.Set(context.Background(), detailKey, nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}
