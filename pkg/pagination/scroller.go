package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/intra42/ftapi/pkg/ratelimit"
)

// Prometheus metrics for scroll operations.
var (
	ftPagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_scroll_pages_fetched_total",
		Help: "Total number of pages fetched by scroll workers",
	})

	ftPageRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_scroll_page_retries_total",
		Help: "Total number of page retries after rate limit rejections",
	})

	ftPageErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_scroll_page_errors_total",
		Help: "Total number of pages abandoned due to terminal errors",
	})

	ftScrollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ft_scroll_duration_seconds",
		Help:    "Wall-clock duration of complete scroll operations",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})
)

// Page is one fetched page of a collection plus the response metadata the
// scroller feeds back into the limiter and the total oracle.
type Page[T any] struct {
	Items []T
	Meta  ratelimit.Metadata
}

// PageFetcher fetches a single page. It encapsulates authentication, URL
// building and transport; the scroller only cares about items, metadata and
// whether a failure was a rate limit rejection.
type PageFetcher[T any] func(ctx context.Context, page int) (*Page[T], error)

// PageError records a page that a worker abandoned due to a terminal error.
// Rate limit rejections are never surfaced here; they are always retried.
type PageError struct {
	Page int
	Err  error
}

func (e PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e PageError) Unwrap() error {
	return e.Err
}

// RateLimitedError marks a fetch failure as a rate limit rejection.
// Fetchers return errors implementing this to request a same-page retry.
type RateLimitedError interface {
	error
	RateLimited() bool
}

// MetadataCarrier is implemented by fetch errors that still carry response
// metadata. Even a rejected response updates the limiter state.
type MetadataCarrier interface {
	ResponseMetadata() ratelimit.Metadata
}

// Config holds scroll configuration.
type Config struct {
	// Concurrency is the number of parallel workers.
	Concurrency int

	// StartPage is the first page to fetch (1-based).
	StartPage int

	// RetryBackoff is slept after a rate limit rejection before retrying the
	// same page, as defense in depth on top of the limiter's own bookkeeping.
	RetryBackoff time.Duration

	// Admission optionally bounds workers across concurrent scroll
	// operations sharing one client. Each worker holds one permit for its
	// whole fetch loop.
	Admission *semaphore.Weighted
}

// DefaultConfig returns a safe default scroll configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:  4,
		StartPage:    1,
		RetryBackoff: time.Second,
	}
}

// Scroll fetches every page of a collection using cfg.Concurrency parallel
// workers sharing one rate limiter. Worker i is assigned the interleaved
// page sequence start+i, start+i+N, start+i+2N, ... so no two workers ever
// fetch the same page.
//
// Scroll blocks until all workers have stopped and returns the concatenation
// of their accumulators plus a record per abandoned page. Item order across
// workers is unspecified; callers needing global order must sort by an
// intrinsic field. Losing a worker to a terminal error does not abort its
// siblings.
func Scroll[T any](ctx context.Context, limiter *ratelimit.Limiter, cfg Config, fetch PageFetcher[T]) ([]T, []PageError) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.StartPage < 1 {
		cfg.StartPage = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}

	start := time.Now()
	defer func() {
		ftScrollDuration.Observe(time.Since(start).Seconds())
	}()

	oracle := &TotalOracle{}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		items    []T
		pageErrs []PageError
	)

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			if cfg.Admission != nil {
				if err := cfg.Admission.Acquire(ctx, 1); err != nil {
					return
				}
				defer cfg.Admission.Release(1)
			}

			acc, errs := scrollWorker(ctx, limiter, cfg, oracle, fetch, workerID)

			mu.Lock()
			items = append(items, acc...)
			pageErrs = append(pageErrs, errs...)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	log.Debug().
		Int("items", len(items)).
		Int("page_errors", len(pageErrs)).
		Dur("duration", time.Since(start)).
		Msg("Scroll complete")

	return items, pageErrs
}

// scrollWorker runs one worker's fetch loop over its assigned page stride.
func scrollWorker[T any](
	ctx context.Context,
	limiter *ratelimit.Limiter,
	cfg Config,
	oracle *TotalOracle,
	fetch PageFetcher[T],
	workerID int,
) ([]T, []PageError) {
	var (
		acc      []T
		pageErrs []PageError
	)

	page := cfg.StartPage + workerID
	for {
		if ctx.Err() != nil {
			log.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopping (context cancelled)")
			return acc, pageErrs
		}

		if !oracle.PageMayExist(page) {
			log.Debug().
				Int("worker_id", workerID).
				Int("page", page).
				Msg("Worker stopping (past known total)")
			return acc, pageErrs
		}

		if err := limiter.Acquire(ctx); err != nil {
			return acc, pageErrs
		}

		result, err := fetch(ctx, page)
		switch outcome := classifyAttempt(limiter, oracle, result, err); outcome {
		case attemptContinue:
			ftPagesFetchedTotal.Inc()
			acc = append(acc, result.Items...)
			page += cfg.Concurrency

		case attemptRetry:
			ftPageRetriesTotal.Inc()
			log.Warn().
				Int("worker_id", workerID).
				Int("page", page).
				Msg("Rate limited, retrying same page")
			if slept := sleepBackoff(ctx, cfg.RetryBackoff); !slept {
				return acc, pageErrs
			}

		case attemptStopEmpty:
			log.Debug().
				Int("worker_id", workerID).
				Int("page", page).
				Msg("Worker stopping (empty page)")
			return acc, pageErrs

		case attemptStopError:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return acc, pageErrs
			}
			ftPageErrorsTotal.Inc()
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", page).
				Msg("Worker stopping (terminal error)")
			pageErrs = append(pageErrs, PageError{Page: page, Err: err})
			return acc, pageErrs
		}
	}
}

// attempt is the outcome of one fetch attempt, driving the per-worker state
// machine: advance, retry the same page, or stop.
type attempt int

const (
	attemptContinue attempt = iota
	attemptRetry
	attemptStopEmpty
	attemptStopError
)

// classifyAttempt syncs response metadata into the limiter and the oracle
// (always, success or failure) and decides the worker's next move.
func classifyAttempt[T any](limiter *ratelimit.Limiter, oracle *TotalOracle, result *Page[T], err error) attempt {
	if err != nil {
		var carrier MetadataCarrier
		if errors.As(err, &carrier) {
			syncMetadata(limiter, oracle, carrier.ResponseMetadata())
		}

		var rl RateLimitedError
		if errors.As(err, &rl) && rl.RateLimited() {
			return attemptRetry
		}
		return attemptStopError
	}

	syncMetadata(limiter, oracle, result.Meta)

	if len(result.Items) == 0 {
		return attemptStopEmpty
	}
	return attemptContinue
}

func syncMetadata(limiter *ratelimit.Limiter, oracle *TotalOracle, meta ratelimit.Metadata) {
	limiter.SyncFromMetadata(meta)
	if meta.Total != nil {
		oracle.Record(*meta.Total)
	}
}

// sleepBackoff waits out the backoff, returning false if ctx was cancelled.
func sleepBackoff(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
