// Package pagination provides parallel scrolling over paginated Intra API
// collections.
//
// The Intra API exposes collections page by page and reports the total item
// count in the X-Total header. This package fans a "fetch all pages" operation
// out across N workers with interleaved page striding: worker i fetches pages
// start+i, start+i+N, ... so workers never duplicate work and need no queue.
//
// Example usage:
//
//	cfg := pagination.DefaultConfig()
//	users, errs := pagination.Scroll(ctx, limiter, cfg, fetcher)
//
// The scroller:
//   - Shares one rate limiter across all workers (every fetch holds a permit)
//   - Stops a worker on the first empty page or when its next page exceeds
//     the lazily-discovered total
//   - Retries the same page after a rate limit rejection
//   - Returns partial results plus per-page error records when a worker hits
//     a terminal error
package pagination
