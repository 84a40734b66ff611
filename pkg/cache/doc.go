// Package cache stores upstream responses so that catalog pages can be served
// without calling the upstream on every render.
//
// Two layers are kept: an in-process expirable LRU and, when configured, a shared
// Redis layer. Entries expire according to a per-request Directive:
//
//   - Revalidate: the entry is fresh for the given window (the list and detail
//     pages use this; a zero window falls back to the upstream Expires header or
//     DefaultTTL).
//   - NoStore: the response is never cached (the live search path).
//
// Stale entries stay in Redis for a retention period after expiry so the client
// can revalidate them with a conditional request (If-None-Match or
// If-Modified-Since) instead of downloading the body again.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, cache.DefaultConfig())
//
//	key := cache.CacheKey{
//		Upstream:    "rickandmorty",
//		Endpoint:    "/api/character",
//		QueryParams: url.Values{"page": []string{"2"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from upstream
//	}
//
// # Directives
//
//	ctx = cache.WithDirective(ctx, cache.Directive{Revalidate: 10 * 24 * time.Hour})
//	ctx = cache.WithDirective(ctx, cache.Directive{NoStore: true})
//
// # Metrics
//
//   - catalog_cache_hits_total{layer} - cache hits by layer (memory, redis)
//   - catalog_cache_misses_total - cache misses
//   - catalog_cache_memory_entries - entries held by the memory layer
//   - catalog_conditional_requests_total - conditional requests sent
//   - catalog_not_modified_responses_total - 304 responses received
//   - catalog_cache_errors_total{operation} - cache operation errors
package cache
