package pagination

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration

	Options Options
}

// DefaultConfig returns a configuration suited to public APIs.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 5,
		Timeout:        15 * time.Second,
		Options:        DefaultOptions(),
	}
}

// BatchFetcher fetches every page of a list endpoint in parallel once page 1
// has revealed the page count.
type BatchFetcher[T any] struct {
	fetcher PageFetcher[T]
	config  Config
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher[T any](fetcher PageFetcher[T], config Config) *BatchFetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches page 1, then pages 2..TotalPages on a worker pool, and
// returns the items in page order. If any page fails the result is Partial and
// holds only the pages before the first failed one. When the upstream reports
// no page count the walk continues sequentially.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context) Result[T] {
	start := time.Now()
	opts := bf.config.Options

	first, err := bf.fetchPage(ctx, 1)
	if err != nil {
		res := Result[T]{Cause: fmt.Errorf("fetch page 1: %w", err)}
		recordWalk("batch", false)
		log.Warn().Err(err).Msg("Batch fetch failed on first page")
		return res
	}

	acc := Result[T]{Items: first.Items, Pages: 1}
	if opts.MaxItems > 0 && len(acc.Items) >= opts.MaxItems {
		acc.Items = acc.Items[:opts.MaxItems]
		acc.Complete = true
		recordWalk("batch", true)
		return acc
	}
	if first.IsLast() {
		acc.Complete = true
		recordWalk("batch", true)
		return acc
	}
	if first.TotalPages <= 1 {
		res := walkFrom(ctx, bf.fetcher, 2, acc, opts)
		recordWalk("sequential", res.Complete)
		return res
	}

	totalPages := min(first.TotalPages, opts.maxPages())
	if opts.MaxItems > 0 && len(first.Items) > 0 {
		// Pages past the item limit are never needed.
		needed := int(math.Ceil(float64(opts.MaxItems) / float64(len(first.Items))))
		totalPages = min(totalPages, needed)
	}

	log.Info().
		Int("total_pages", totalPages).
		Int("workers", bf.config.MaxConcurrency).
		Msg("Starting parallel page fetch")

	pages := make([]Page[T], totalPages+1)
	errs := make([]error, totalPages+1)

	// Lowest failed page so far; higher pages are skipped once it is set.
	var firstFailed atomic.Int64
	firstFailed.Store(math.MaxInt64)

	g := new(errgroup.Group)
	g.SetLimit(bf.config.MaxConcurrency)
	for n := 2; n <= totalPages; n++ {
		g.Go(func() error {
			if int64(n) > firstFailed.Load() {
				return nil
			}
			page, err := bf.fetchPage(ctx, n)
			if err != nil {
				errs[n] = err
				for {
					cur := firstFailed.Load()
					if int64(n) >= cur || firstFailed.CompareAndSwap(cur, int64(n)) {
						break
					}
				}
				log.Warn().Err(err).Int("page", n).Msg("Page fetch failed")
				return nil
			}
			pages[n] = page
			return nil
		})
	}
	_ = g.Wait()

	last := first
	for n := 2; n <= totalPages; n++ {
		if errs[n] != nil {
			acc.Cause = fmt.Errorf("fetch page %d: %w", n, errs[n])
			recordWalk("batch", false)
			log.Warn().
				Err(acc.Cause).
				Int("fetched_pages", acc.Pages).
				Int("total_pages", totalPages).
				Msg("Returning partial results")
			return acc
		}

		acc.Items = append(acc.Items, pages[n].Items...)
		acc.Pages++
		last = pages[n]

		if opts.MaxItems > 0 && len(acc.Items) >= opts.MaxItems {
			acc.Items = acc.Items[:opts.MaxItems]
			acc.Complete = true
			break
		}
	}

	// The catalog grew after page 1 was read: finish sequentially.
	if !acc.Complete && !last.IsLast() {
		acc = walkFrom(ctx, bf.fetcher, totalPages+1, acc, opts)
	} else {
		acc.Complete = true
	}

	recordWalk("batch", acc.Complete)
	log.Info().
		Int("pages", acc.Pages).
		Int("items", len(acc.Items)).
		Bool("complete", acc.Complete).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return acc
}

func (bf *BatchFetcher[T]) fetchPage(ctx context.Context, n int) (Page[T], error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()

	page, err := bf.fetcher.FetchPage(pageCtx, n)
	if err != nil {
		pagesFetched.WithLabelValues("error").Inc()
		return page, err
	}
	pagesFetched.WithLabelValues("ok").Inc()
	return page, nil
}
