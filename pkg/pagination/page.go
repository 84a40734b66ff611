package pagination

import (
	"context"
	"errors"
	"fmt"
)

// ErrTooManyPages is the cause of a Partial result when Options.MaxPages is
// reached while the upstream still reports a next page.
var ErrTooManyPages = errors.New("page limit reached before the final page")

// Page is one decoded page of a list endpoint.
type Page[T any] struct {
	// Number is the 1-based page number that was requested.
	Number int
	Items  []T

	// Next is the upstream next-page pointer. Empty marks the final page.
	Next string

	// TotalPages and Count are the upstream totals, zero when not reported.
	TotalPages int
	Count      int
}

// IsLast reports whether p is the final page.
func (p Page[T]) IsLast() bool {
	return p.Next == ""
}

// PageFetcher fetches a single page by its 1-based number.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, number int) (Page[T], error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc[T any] func(ctx context.Context, number int) (Page[T], error)

// FetchPage calls f.
func (f FetcherFunc[T]) FetchPage(ctx context.Context, number int) (Page[T], error) {
	return f(ctx, number)
}

// Result is the outcome of a catalog walk. A Partial result (Complete false)
// still carries every item gathered before the failure, in order.
type Result[T any] struct {
	Items    []T
	Pages    int
	Complete bool

	// Cause is the failure that stopped a Partial walk.
	Cause error
}

// Err returns nil for a Complete result and a *PartialError otherwise.
func (r Result[T]) Err() error {
	if r.Complete {
		return nil
	}
	return &PartialError{Pages: r.Pages, Items: len(r.Items), Cause: r.Cause}
}

// PartialError reports a walk that stopped before the final page.
type PartialError struct {
	Pages int
	Items int
	Cause error
}

// Error implements the error interface.
func (e *PartialError) Error() string {
	return fmt.Sprintf("partial catalog after %d pages (%d items): %v", e.Pages, e.Items, e.Cause)
}

// Unwrap returns the failure that stopped the walk.
func (e *PartialError) Unwrap() error {
	return e.Cause
}
