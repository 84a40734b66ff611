package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	remainingGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "catalog_rate_limit_remaining",
		Help: "Requests remaining in the current upstream rate limit window",
	}, []string{"upstream"})

	blocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to a critical upstream budget",
	}, []string{"upstream"})

	throttlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_rate_limit_throttles_total",
		Help: "Total number of requests delayed due to a low upstream budget",
	}, []string{"upstream"})
)

// Header names read from upstream responses.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Config holds tracker configuration.
type Config struct {
	// Upstream names the API whose budget is tracked; it namespaces Redis keys and metrics.
	Upstream string

	// RequestsPerSecond paces outgoing requests locally. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	// ThrottleDelay is slept before a request when the budget is low.
	ThrottleDelay time.Duration
}

// DefaultConfig returns a conservative configuration for a public API.
func DefaultConfig(upstream string) Config {
	return Config{
		Upstream:          upstream,
		RequestsPerSecond: 10,
		Burst:             5,
		ThrottleDelay:     time.Second,
	}
}

// Tracker monitors an upstream's rate limit budget and gates requests.
type Tracker struct {
	redis   *redis.Client
	logger  zerolog.Logger
	config  Config
	limiter *rate.Limiter

	// used when redis is nil
	mu    sync.Mutex
	local *RateLimitState
}

// NewTracker creates a rate limit tracker. With a nil Redis client the state is
// kept in process.
func NewTracker(redisClient *redis.Client, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.Upstream == "" {
		cfg.Upstream = "default"
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Tracker{
		redis:   redisClient,
		logger:  logger.With().Str("upstream", cfg.Upstream).Logger(),
		config:  cfg,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
}

func (t *Tracker) key() string {
	return KeyPrefix + t.config.Upstream
}

// GetState returns the current rate limit state, or a healthy default if none is stored.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.local == nil {
			return defaultState(time.Now()), nil
		}
		s := *t.local
		s.UpdateHealth()
		return &s, nil
	}

	fields, err := t.redis.HGetAll(ctx, t.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}
	if len(fields) == 0 {
		t.logger.Debug().Msg("No rate limit state stored, assuming healthy")
		return defaultState(time.Now()), nil
	}

	remaining, err := strconv.Atoi(fields["remaining"])
	if err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	resetUnix, err := strconv.ParseInt(fields["reset_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse reset_at: %w", err)
	}
	updatedUnix, err := strconv.ParseInt(fields["last_update"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse last_update: %w", err)
	}

	state := &RateLimitState{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetUnix, 0),
		LastUpdate: time.Unix(updatedUnix, 0),
	}
	state.UpdateHealth()
	return state, nil
}

// UpdateFromResponse records the budget reported by an upstream response.
// Responses without rate limit headers and without a 429 status are ignored.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	now := time.Now()
	var state *RateLimitState

	switch {
	case statusCode == http.StatusTooManyRequests:
		wait := parseSeconds(headers.Get(HeaderRetryAfter))
		if wait <= 0 {
			wait = parseSeconds(headers.Get(HeaderReset))
		}
		if wait <= 0 {
			wait = 60
		}
		state = &RateLimitState{
			Remaining:  0,
			ResetAt:    now.Add(time.Duration(wait) * time.Second),
			LastUpdate: now,
		}

	case headers.Get(HeaderRemaining) != "":
		remaining, err := strconv.Atoi(headers.Get(HeaderRemaining))
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
		}
		resetStr := headers.Get(HeaderReset)
		if resetStr == "" {
			return fmt.Errorf("%s header missing", HeaderReset)
		}
		reset, err := strconv.Atoi(resetStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		state = &RateLimitState{
			Remaining:  remaining,
			ResetAt:    now.Add(time.Duration(reset) * time.Second),
			LastUpdate: now,
		}

	default:
		return nil
	}
	state.UpdateHealth()

	if err := t.store(ctx, state); err != nil {
		return err
	}

	remainingGauge.WithLabelValues(t.config.Upstream).Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Upstream rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Upstream rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Bool("is_healthy", state.IsHealthy).
			Msg("Upstream rate limit state updated")
	}

	return nil
}

func (t *Tracker) store(ctx context.Context, state *RateLimitState) error {
	if t.redis == nil {
		t.mu.Lock()
		s := *state
		t.local = &s
		t.mu.Unlock()
		return nil
	}

	pipe := t.redis.TxPipeline()
	pipe.HSet(ctx, t.key(),
		"remaining", state.Remaining,
		"reset_at", state.ResetAt.Unix(),
		"last_update", state.LastUpdate.Unix(),
	)
	// The state is meaningless once the window has reset.
	pipe.ExpireAt(ctx, t.key(), state.ResetAt.Add(time.Minute))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// ShouldAllowRequest paces the caller and reports whether the request may proceed.
// It returns false while the upstream budget is critical, and sleeps for the
// throttle delay while it is low.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("wait for rate limiter: %w", err)
	}

	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Upstream rate limit critical - blocking request")
		blocksTotal.WithLabelValues(t.config.Upstream).Inc()
		return false, nil
	}

	if state.NeedsThrottling() && t.config.ThrottleDelay > 0 {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Upstream rate limit low - throttling request")
		throttlesTotal.WithLabelValues(t.config.Upstream).Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.config.ThrottleDelay):
		}
	}

	return true, nil
}

// parseSeconds parses a delta-seconds header value, returning 0 when absent or invalid.
func parseSeconds(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
