// Package client provides the upstream HTTP client with rate limiting,
// caching, and error handling shared by every catalog.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/multiverse-catalog/pkg/cache"
	"github.com/Sternrassler/multiverse-catalog/pkg/logging"
	"github.com/Sternrassler/multiverse-catalog/pkg/ratelimit"
)

// Prometheus metrics for upstream client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_upstream_requests_total",
		Help: "Total upstream requests by upstream and status",
	}, []string{"upstream", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by upstream",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"upstream"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_upstream_errors_total",
		Help: "Total upstream errors by upstream and class",
	}, []string{"upstream", "class"})
)

// HeaderRequestID carries a per-request correlation id to the upstream.
const HeaderRequestID = "X-Request-Id"

// maxErrorBody bounds how much of an error response is kept in APIError.Message.
const maxErrorBody = 512

// Config holds the client configuration.
type Config struct {
	// BaseURL of the upstream API, e.g. "https://rickandmortyapi.com/api".
	BaseURL string

	// Upstream names the API in cache keys, metrics and logs.
	Upstream string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration

	Retry RetryConfig
}

// DefaultConfig returns a configuration with a 30s timeout and no retries.
func DefaultConfig(upstream, baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		Upstream:  upstream,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// Client is the HTTP pipeline in front of one upstream API.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// New creates a client. cacheManager and tracker are optional; a nil value
// disables caching or rate limiting respectively.
func New(cfg Config, cacheManager *cache.Manager, tracker *ratelimit.Tracker) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.Upstream == "" {
		return nil, fmt.Errorf("upstream name is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: tracker,
		cache:       cacheManager,
		config:      cfg,
		logger:      logging.NewLogger("upstream-client").With().Str("upstream", cfg.Upstream).Logger(),
	}, nil
}

// Do performs an HTTP request with rate limiting, caching, and error handling.
// The cache.Directive attached to the request context decides whether the
// response may be served from or written to the cache. Non-2xx responses are
// returned as *APIError and the response body is closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path
	directive := cache.DirectiveFrom(ctx)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(c.config.Upstream).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: rate limit gate
	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Rate limit check failed")
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by rate limiter")
			requestsTotal.WithLabelValues(c.config.Upstream, "rate_limited").Inc()
			return nil, ErrRateLimited
		}
	}

	// Step 2: cache lookup
	useCache := c.cache != nil && !directive.NoStore
	cacheKey := cache.CacheKey{
		Upstream:    c.config.Upstream,
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
	}

	var cachedEntry *cache.CacheEntry
	if useCache {
		entry, err := c.cache.GetStale(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if entry != nil && !entry.IsExpired() {
			requestsTotal.WithLabelValues(c.config.Upstream, "cache_hit").Inc()
			return cache.EntryToResponse(entry, req), nil
		}
		cachedEntry = entry
	}

	// Step 3: conditional request for a stale entry
	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	// Step 4: request headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("request_id", req.Header.Get(HeaderRequestID)).
		Msg("Executing upstream request")

	// Step 5: execute with retry
	var resp *http.Response
	retryErr := retryWithBackoff(ctx, c.config.Retry, func() error {
		var reqErr error
		resp, reqErr = c.httpClient.Do(req)
		if reqErr != nil {
			resp = nil
			errorsTotal.WithLabelValues(c.config.Upstream, string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(c.config.Upstream, "network_error").Inc()
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			return reqErr
		}

		if c.rateLimiter != nil {
			if err := c.rateLimiter.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}
		}

		errClass := ClassifyStatus(resp.StatusCode)
		if errClass == "" || !shouldRetry(errClass) {
			// Success, 304 and non-retriable 4xx are handled after the loop.
			return nil
		}

		apiErr := c.newAPIError(resp, endpoint, errClass)
		resp = nil
		return apiErr
	}, classifyError)

	if retryErr != nil {
		return nil, retryErr
	}

	// Step 6: 304 Not Modified
	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		requestsTotal.WithLabelValues(c.config.Upstream, "304").Inc()
		cache.NotModifiedResponses.Inc()

		if cachedEntry == nil {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassClient,
				Endpoint:   endpoint,
				Message:    "not modified without a cached entry",
			}
		}

		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		if err := c.cache.UpdateTTL(ctx, cacheKey, revalidatedExpiry(resp.Header, directive)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
		}
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	// Step 7: non-retriable error responses
	if errClass := ClassifyStatus(resp.StatusCode); errClass != "" {
		return nil, c.newAPIError(resp, endpoint, errClass)
	}

	requestsTotal.WithLabelValues(c.config.Upstream, strconv.Itoa(resp.StatusCode)).Inc()

	// Step 8: cache successful responses
	if useCache && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp, directive)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// newAPIError builds an APIError from resp and closes its body.
func (c *Client) newAPIError(resp *http.Response, endpoint string, errClass ErrorClass) *APIError {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = resp.Status
	}

	errorsTotal.WithLabelValues(c.config.Upstream, string(errClass)).Inc()
	requestsTotal.WithLabelValues(c.config.Upstream, strconv.Itoa(resp.StatusCode)).Inc()

	event := c.logger.Warn()
	if errClass == ErrorClassNotFound {
		event = c.logger.Debug()
	}
	event.
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Str("error_class", string(errClass)).
		Msg("Upstream request error")

	return &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: errClass,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// classifyError maps an attempt error to an ErrorClass for retry decisions.
func classifyError(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}

// revalidatedExpiry returns the new expiry for an entry confirmed by a 304.
func revalidatedExpiry(headers http.Header, d cache.Directive) time.Time {
	if d.Revalidate > 0 {
		return time.Now().Add(d.Revalidate)
	}
	if expires, err := http.ParseTime(headers.Get("Expires")); err == nil && expires.After(time.Now()) {
		return expires
	}
	return time.Now().Add(cache.DefaultTTL)
}

// Get performs a GET request against path relative to the base URL.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	target := c.config.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// GetJSON performs a GET request and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, v any) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		errorsTotal.WithLabelValues(c.config.Upstream, "decode").Inc()
		return fmt.Errorf("%w from %s: %v", ErrDecode, path, err)
	}
	return nil
}

// BaseURL returns the normalized upstream base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Upstream returns the upstream name.
func (c *Client) Upstream() string {
	return c.config.Upstream
}
