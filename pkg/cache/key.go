package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every cache key.
const keyPrefix = "catalog"

// CacheKey identifies a cached upstream response.
type CacheKey struct {
	// Upstream names the API (e.g. "rickandmorty", "pokemon").
	Upstream string

	// Endpoint is the request path (e.g. "/api/character/1").
	Endpoint string

	// QueryParams are the request query parameters.
	QueryParams url.Values
}

// String generates a deterministic key.
// Format: catalog:upstream:endpoint:query1=val1:query2=val2
//
// Example:
//
//	catalog:rickandmorty:api/character:page=2
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	if k.Upstream != "" {
		parts = append(parts, k.Upstream)
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		keys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
