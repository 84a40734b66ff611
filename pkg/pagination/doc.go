// Package pagination walks page-numbered list endpoints and assembles the full
// catalog in upstream order.
//
// Two strategies share the same PageFetcher and Result types:
//
//   - Walk requests page 1, 2, 3... one at a time and stops when a page has no
//     next pointer, a request fails, or Options.MaxItems is reached.
//   - BatchFetcher reads the page count from page 1 and fetches the remaining
//     pages on a bounded worker pool, reassembling them in page order.
//
// Neither strategy retries. A failure yields a Partial result holding every
// item gathered before the failed page, so callers decide whether a partial
// catalog is acceptable:
//
//	res := pagination.Walk(ctx, fetcher, pagination.DefaultOptions())
//	if err := res.Err(); err != nil {
//		log.Warn().Err(err).Int("items", len(res.Items)).Msg("Catalog incomplete")
//	}
package pagination
