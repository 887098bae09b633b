package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for limiter activity.
var (
	ftPermitsGrantedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_rate_limit_permits_granted_total",
		Help: "Total number of request permits granted by the limiter",
	})

	ftPermitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ft_rate_limit_permit_wait_seconds",
		Help:    "Time callers spent waiting for a permit",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 30, 60},
	})

	ftRetryAfterBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_rate_limit_retry_after_blocks_total",
		Help: "Total number of waits caused by a server Retry-After directive",
	})

	ftSecondlyRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ft_rate_limit_secondly_remaining",
		Help: "Permits remaining in the current per-second window",
	})

	ftHourlyRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ft_rate_limit_hourly_remaining",
		Help: "Permits remaining in the current per-hour window",
	})
)

// Default window periods for the Intra API.
const (
	secondlyPeriod = time.Second
	hourlyPeriod   = time.Hour
)

// Limiter gates outbound requests against the Intra API quota. One Limiter is
// shared by every worker of a client; Acquire blocks the calling goroutine
// until a permit is available from both quota windows and no Retry-After
// directive is active.
type Limiter struct {
	mu         sync.Mutex
	secondly   window
	hourly     window
	retryUntil time.Time

	logger zerolog.Logger
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithPeriods overrides the window durations. Intended for tests that need
// short windows instead of waiting out real seconds and hours.
func WithPeriods(secondly, hourly time.Duration) Option {
	return func(l *Limiter) {
		now := time.Now()
		l.secondly = newWindow(l.secondly.limit, secondly, now)
		l.hourly = newWindow(l.hourly.limit, hourly, now)
	}
}

// WithLogger sets the limiter's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New creates a Limiter with the given per-second and per-hour permit limits.
func New(perSecond, perHour int, opts ...Option) *Limiter {
	if perSecond < 1 {
		perSecond = 1
	}
	if perHour < 1 {
		perHour = 1
	}

	now := time.Now()
	l := &Limiter{
		secondly: newWindow(perSecond, secondlyPeriod, now),
		hourly:   newWindow(perHour, hourlyPeriod, now),
		logger:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// control is the outcome of one locked decision pass in Acquire.
type control int

const (
	controlPermit control = iota
	controlSleep
	controlRecheck
)

// Acquire blocks until a permit is granted or ctx is cancelled. It never
// fails for quota reasons; the only error it returns is ctx.Err().
//
// Each pass decides under the mutex, then sleeps (if needed) outside it so
// that other callers and header syncs are never serialized behind a wait.
// After every sleep the state is re-evaluated from scratch: concurrent
// consumption or a fresh Retry-After may have changed the picture.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()

	for {
		action, deadline := l.decide()

		switch action {
		case controlPermit:
			ftPermitsGrantedTotal.Inc()
			ftPermitWaitSeconds.Observe(time.Since(start).Seconds())
			return nil

		case controlSleep:
			l.logger.Debug().
				Time("deadline", deadline).
				Dur("wait", time.Until(deadline)).
				Msg("Waiting for rate limit permit")

			if err := sleepUntil(ctx, deadline); err != nil {
				return err
			}

		case controlRecheck:
			// Expired Retry-After was just cleared; loop immediately.
		}
	}
}

// decide performs one atomic inspection-and-mutation pass.
// The Retry-After directive strictly dominates window state: while it is
// active no permit is granted even if both windows have quota.
func (l *Limiter) decide() (control, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if !l.retryUntil.IsZero() {
		if now.Before(l.retryUntil) {
			ftRetryAfterBlocksTotal.Inc()
			return controlSleep, l.retryUntil
		}
		l.retryUntil = time.Time{}
		return controlRecheck, time.Time{}
	}

	// Both windows refill before either is taken from, so a denial by one
	// never burns quota in the other.
	secondlyOK := l.secondly.available(now)
	hourlyOK := l.hourly.available(now)

	if secondlyOK && hourlyOK {
		l.secondly.take()
		l.hourly.take()
		ftSecondlyRemaining.Set(float64(l.secondly.remaining))
		ftHourlyRemaining.Set(float64(l.hourly.remaining))
		return controlPermit, time.Time{}
	}

	// Sleep until the earlier reset among the exhausted windows.
	deadline := time.Time{}
	if l.secondly.remaining == 0 {
		deadline = l.secondly.resetAt
	}
	if l.hourly.remaining == 0 {
		if deadline.IsZero() || l.hourly.resetAt.Before(deadline) {
			deadline = l.hourly.resetAt
		}
	}
	return controlSleep, deadline
}

// SyncFromMetadata folds server-reported quota state into the limiter.
// Present remaining counts overwrite the local counters (clamped to the
// configured limits); a present Retry-After starts or extends the block but
// never shortens an existing later deadline. Absent fields change nothing.
func (l *Limiter) SyncFromMetadata(meta Metadata) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if meta.SecondlyRemaining != nil {
		l.secondly.setRemaining(*meta.SecondlyRemaining)
		ftSecondlyRemaining.Set(float64(l.secondly.remaining))
	}
	if meta.HourlyRemaining != nil {
		l.hourly.setRemaining(*meta.HourlyRemaining)
		ftHourlyRemaining.Set(float64(l.hourly.remaining))
	}
	if meta.RetryAfter != nil {
		until := time.Now().Add(*meta.RetryAfter)
		if until.After(l.retryUntil) {
			l.retryUntil = until
			l.logger.Warn().
				Dur("retry_after", *meta.RetryAfter).
				Time("until", until).
				Msg("Server issued Retry-After directive")
		}
	}
}

// sleepUntil waits until the deadline or ctx cancellation, whichever first.
func sleepUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
