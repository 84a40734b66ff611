// Package ratelimit gates upstream requests. It paces requests locally with a
// token bucket and tracks the upstream's advertised budget (X-RateLimit-Remaining,
// X-RateLimit-Reset, Retry-After on 429) so that every process sharing the Redis
// instance backs off together.
package ratelimit

import (
	"time"
)

// KeyPrefix namespaces rate limit state in Redis. The upstream name is appended.
const KeyPrefix = "catalog:rate_limit:"

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks requests until reset when remaining falls below it.
	ThresholdCritical = 5

	// ThresholdWarning throttles requests when remaining falls below it.
	ThresholdWarning = 20

	// ThresholdHealthy marks the state healthy at or above it.
	ThresholdHealthy = 50

	// unknownRemaining is assumed until the upstream reports a budget.
	unknownRemaining = 100
)

// RateLimitState is the last budget reported by one upstream.
type RateLimitState struct {
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	LastUpdate time.Time `json:"last_update"`
	IsHealthy  bool      `json:"is_healthy"`
}

// defaultState is returned when no upstream budget has been observed yet.
func defaultState(now time.Time) *RateLimitState {
	return &RateLimitState{
		Remaining:  unknownRemaining,
		ResetAt:    now,
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// IsStale reports whether the state is older than maxAge.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// windowOpen reports whether the budget window has not reset yet.
func (s *RateLimitState) windowOpen() bool {
	return time.Now().Before(s.ResetAt)
}

// NeedsCriticalBlock reports whether requests must wait for the window to reset.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.windowOpen() && s.Remaining < ThresholdCritical
}

// NeedsThrottling reports whether requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.windowOpen() && s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = !s.windowOpen() || s.Remaining >= ThresholdHealthy
}
