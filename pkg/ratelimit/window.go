// Package ratelimit implements the shared request limiter for the 42 Intra API.
// The API enforces two quota windows at once (per-second and per-hour) and may
// additionally issue a Retry-After directive; this package tracks all three and
// gates outbound requests accordingly.
package ratelimit

import (
	"time"
)

// window is a single fixed-duration quota counter. It refills to limit when
// the window boundary passes and counts down as permits are consumed.
//
// All methods must be called with the owning Limiter's mutex held; a window
// has no locking of its own.
type window struct {
	limit     int
	remaining int
	resetAt   time.Time
	period    time.Duration
}

func newWindow(limit int, period time.Duration, now time.Time) window {
	return window{
		limit:     limit,
		remaining: limit,
		resetAt:   now.Add(period),
		period:    period,
	}
}

// refill resets the counter if the window boundary has passed.
func (w *window) refill(now time.Time) {
	if !now.Before(w.resetAt) {
		w.remaining = w.limit
		w.resetAt = now.Add(w.period)
	}
}

// available refills if due, then reports whether a permit is left. On denial
// the caller should wait until resetAt.
func (w *window) available(now time.Time) bool {
	w.refill(now)
	return w.remaining > 0
}

// take consumes one permit. Only valid directly after available returned true.
func (w *window) take() {
	w.remaining--
}

// setRemaining overwrites the counter with a server-reported value,
// clamped to the configured limit. The limit itself never changes.
func (w *window) setRemaining(remaining int) {
	if remaining > w.limit {
		remaining = w.limit
	}
	if remaining < 0 {
		remaining = 0
	}
	w.remaining = remaining
}
