// Package testutil provides a configurable mock of the catalog upstreams.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable mock API server for testing.
type MockUpstream struct {
	server *httptest.Server

	mu             sync.RWMutex
	handlers       map[string]http.HandlerFunc
	prefixHandlers map[string]http.HandlerFunc
	pageFailures   map[string]map[string]int

	requestCount      int
	conditionalCount  int
	pathCounts        map[string]int
	lastRequestHeader http.Header
	lastQuery         string
}

// NewMockUpstream creates and starts a mock server.
func NewMockUpstream() *MockUpstream {
	m := &MockUpstream{
		handlers:       make(map[string]http.HandlerFunc),
		prefixHandlers: make(map[string]http.HandlerFunc),
		pageFailures:   make(map[string]map[string]int),
		pathCounts:     make(map[string]int),
	}

	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockUpstream) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.pathCounts[r.URL.Path]++
	m.lastRequestHeader = r.Header.Clone()
	m.lastQuery = r.URL.RawQuery
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.conditionalCount++
	}
	handler := m.route(r)
	failStatus, fail := m.pageFailures[r.URL.Path][r.URL.Query().Get("page")]
	m.mu.Unlock()

	if fail {
		w.WriteHeader(failStatus)
		w.Write([]byte(`{"error":"injected failure"}`))
		return
	}
	if handler == nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"There is nothing here"}`))
		return
	}
	handler(w, r)
}

// route picks the exact handler, then the longest matching prefix handler. Called with mu held.
func (m *MockUpstream) route(r *http.Request) http.HandlerFunc {
	if h, ok := m.handlers[r.URL.Path]; ok {
		return h
	}
	var best string
	for prefix := range m.prefixHandlers {
		if strings.HasPrefix(r.URL.Path, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil
	}
	return m.prefixHandlers[best]
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.conditionalCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRequestHeader = nil
	m.lastQuery = ""
}

// SetHandler sets a custom handler for an exact path.
func (m *MockUpstream) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetPrefixHandler sets a handler for every path under prefix.
func (m *MockUpstream) SetPrefixHandler(prefix string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixHandlers[prefix] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// DropConnection makes requests for path fail at the transport level: the
// connection is closed before any response is written.
func (m *MockUpstream) DropConnection(path string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("testutil: response writer does not support hijacking")
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		conn.Close()
	})
}

// FailPage makes requests for path with ?page=page answer with status.
func (m *MockUpstream) FailPage(path string, page string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pageFailures[path] == nil {
		m.pageFailures[path] = make(map[string]int)
	}
	m.pageFailures[path][page] = status
}

// RequestCount returns the number of requests made to the server.
func (m *MockUpstream) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestsFor returns the number of requests made for an exact path.
func (m *MockUpstream) RequestsFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// ConditionalCount returns the number of conditional requests.
func (m *MockUpstream) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockUpstream) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// LastQuery returns the raw query of the most recent request.
func (m *MockUpstream) LastQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// NewJSONResponse creates a 200 OK response with a validator.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"ETag":         `"test-etag-123"`,
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"Rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":  retryAfter,
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
