package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/multiverse-catalog/pkg/logging"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_search_requests_total",
		Help: "Total search requests issued by outcome",
	}, []string{"outcome"}) // "ok", "error", "discarded"

	supersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_search_superseded_total",
		Help: "Total filter changes that replaced a pending timer or in-flight request",
	})
)

// ErrClosed is returned by controller methods after Close.
var ErrClosed = errors.New("search controller closed")

// Searcher performs one filtered search request.
type Searcher[R any] interface {
	Search(ctx context.Context, f Filter) ([]R, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc[R any] func(ctx context.Context, f Filter) ([]R, error)

// Search calls fn.
func (fn SearcherFunc[R]) Search(ctx context.Context, f Filter) ([]R, error) {
	return fn(ctx, f)
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock replaces the wall clock, typically with clock.NewMock() in tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Controller runs the debounced search state machine. All transitions are
// serialized; requests run on their own goroutines and report back as events.
type Controller[R any] struct {
	searcher Searcher[R]
	clock    clock.Clock
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	state        State[R]
	timer        *clock.Timer
	cancelSearch context.CancelFunc
	subscribers  map[int]chan State[R]
	nextSubID    int
	closed       bool
}

// NewController creates an idle controller.
func NewController[R any](searcher Searcher[R], opts ...Option) *Controller[R] {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller[R]{
		searcher:    searcher,
		clock:       o.clock,
		logger:      logging.NewLogger("search-controller"),
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[int]chan State[R]),
	}
}

// SetFilter replaces the whole filter.
func (c *Controller[R]) SetFilter(f Filter) error {
	return c.dispatch(FilterChanged{Filter: f})
}

// SetField changes one filter field, keeping the others.
func (c *Controller[R]) SetField(field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	next, err := c.state.Filter.With(field, value)
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	return c.dispatchLocked(FilterChanged{Filter: next})
}

// Clear resets every field; results are cleared without a request.
func (c *Controller[R]) Clear() error {
	return c.SetFilter(Filter{})
}

// Retry repeats the last search if it failed.
func (c *Controller[R]) Retry() error {
	return c.dispatch(RetryRequested{})
}

// State returns the current snapshot.
func (c *Controller[R]) State() State[R] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that receives the latest state after every
// transition. Slow readers only see the most recent state. Call the returned
// function to unsubscribe.
func (c *Controller[R]) Subscribe() (<-chan State[R], func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State[R], 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
}

// Close stops the pending timer, cancels any in-flight request and waits for
// it to return. Subscriber channels are closed.
func (c *Controller[R]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Controller[R]) dispatch(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(ev)
}

// dispatchLocked applies ev to the current state. Called with mu held.
func (c *Controller[R]) dispatchLocked(ev Event) error {
	if c.closed {
		return ErrClosed
	}

	prev := c.state
	next, effects := Transition(c.state, ev)
	c.state = next

	for _, eff := range effects {
		c.run(eff, prev)
	}

	if next.Phase != prev.Phase || next.Generation != prev.Generation {
		c.logger.Debug().
			Str("from", prev.Phase.String()).
			Str("to", next.Phase.String()).
			Uint64("generation", next.Generation).
			Msg("Search state changed")
	}
	c.publish(next)
	return nil
}

// run performs one effect. Called with mu held.
func (c *Controller[R]) run(eff Effect, prev State[R]) {
	switch eff := eff.(type) {
	case CancelTimer:
		if c.timer != nil {
			if c.timer.Stop() && prev.Phase == PhaseDebouncing {
				supersededTotal.Inc()
			}
			c.timer = nil
		}

	case StartTimer:
		gen := eff.Generation
		c.timer = c.clock.AfterFunc(eff.Delay, func() {
			_ = c.dispatch(TimerFired{Generation: gen})
		})

	case CancelSearch:
		if c.cancelSearch != nil {
			supersededTotal.Inc()
			c.cancelSearch()
			c.cancelSearch = nil
		}

	case IssueSearch:
		c.timer = nil
		ctx, cancel := context.WithCancel(c.ctx)
		c.cancelSearch = cancel

		c.logger.Debug().
			Uint64("generation", eff.Generation).
			Str("query", eff.Filter.Query().Encode()).
			Msg("Issuing search")

		c.wg.Add(1)
		go func(gen uint64, f Filter) {
			defer c.wg.Done()
			defer cancel()

			results, err := c.search(ctx, f)
			c.deliver(ResponseReceived[R]{Generation: gen, Results: results, Err: err})
		}(eff.Generation, eff.Filter)
	}
}

func (c *Controller[R]) search(ctx context.Context, f Filter) (results []R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("searcher panic: %v", r)
		}
	}()
	return c.searcher.Search(ctx, f)
}

// deliver applies a response and records whether it was used.
func (c *Controller[R]) deliver(ev ResponseReceived[R]) {
	c.mu.Lock()
	current := c.state.Generation == ev.Generation && c.state.Phase == PhaseLoading && !c.closed
	if current {
		c.cancelSearch = nil
	}
	c.mu.Unlock()

	switch {
	case !current:
		searchesTotal.WithLabelValues("discarded").Inc()
		c.logger.Debug().Uint64("generation", ev.Generation).Msg("Discarding stale search response")
		return
	case ev.Err != nil:
		searchesTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(ev.Err).Uint64("generation", ev.Generation).Msg("Search failed")
	default:
		searchesTotal.WithLabelValues("ok").Inc()
	}

	_ = c.dispatch(ev)
}

// publish sends s to every subscriber, replacing any unread state. Called with mu held.
func (c *Controller[R]) publish(s State[R]) {
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
