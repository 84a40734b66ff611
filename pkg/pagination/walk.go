package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultMaxPages bounds a walk whose upstream never stops reporting a next page.
const DefaultMaxPages = 1000

// Options tune a catalog walk.
type Options struct {
	// MaxItems stops the walk once this many items are gathered and truncates
	// the result to exactly MaxItems. Zero means no limit.
	MaxItems int

	// MaxPages stops a runaway walk with ErrTooManyPages. Zero means DefaultMaxPages.
	MaxPages int
}

// DefaultOptions returns options with no item limit.
func DefaultOptions() Options {
	return Options{MaxPages: DefaultMaxPages}
}

func (o Options) maxPages() int {
	if o.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return o.MaxPages
}

// Walk requests pages 1, 2, 3... in sequence and concatenates their items. It
// stops on the first page without a next pointer, on the first failed request,
// or when opts.MaxItems is reached. Failed pages are not retried.
func Walk[T any](ctx context.Context, fetcher PageFetcher[T], opts Options) Result[T] {
	start := time.Now()
	res := walkFrom(ctx, fetcher, 1, Result[T]{}, opts)

	recordWalk("sequential", res.Complete)
	event := log.Debug()
	if !res.Complete {
		event = log.Warn().Err(res.Cause)
	}
	event.
		Int("pages", res.Pages).
		Int("items", len(res.Items)).
		Bool("complete", res.Complete).
		Dur("duration", time.Since(start)).
		Msg("Catalog walk finished")

	return res
}

// walkFrom continues a sequential walk at page number, appending to acc.
func walkFrom[T any](ctx context.Context, fetcher PageFetcher[T], number int, acc Result[T], opts Options) Result[T] {
	for ; ; number++ {
		if number > opts.maxPages() {
			acc.Cause = fmt.Errorf("%w (%d pages)", ErrTooManyPages, opts.maxPages())
			return acc
		}
		if err := ctx.Err(); err != nil {
			acc.Cause = fmt.Errorf("fetch page %d: %w", number, err)
			return acc
		}

		page, err := fetcher.FetchPage(ctx, number)
		if err != nil {
			pagesFetched.WithLabelValues("error").Inc()
			acc.Cause = fmt.Errorf("fetch page %d: %w", number, err)
			return acc
		}
		pagesFetched.WithLabelValues("ok").Inc()

		log.Debug().
			Int("page", number).
			Int("items", len(page.Items)).
			Str("next", page.Next).
			Msg("Page fetched")

		acc.Items = append(acc.Items, page.Items...)
		acc.Pages++

		if opts.MaxItems > 0 && len(acc.Items) >= opts.MaxItems {
			acc.Items = acc.Items[:opts.MaxItems]
			acc.Complete = true
			return acc
		}
		if page.IsLast() {
			acc.Complete = true
			return acc
		}
	}
}
