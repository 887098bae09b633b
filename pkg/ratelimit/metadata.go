package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Intra API response headers carrying quota and pagination signals.
const (
	HeaderSecondlyRemaining = "X-Secondly-RateLimit-Remaining"
	HeaderHourlyRemaining   = "X-Hourly-RateLimit-Remaining"
	HeaderRetryAfter        = "Retry-After"
	HeaderTotal             = "X-Total"
)

// Metadata is the quota and pagination state extracted from one response.
// Nil fields mean the server did not send the corresponding header; syncing
// a nil field is a no-op, never a reset to defaults.
type Metadata struct {
	// SecondlyRemaining is the server-reported per-second quota left.
	SecondlyRemaining *int

	// HourlyRemaining is the server-reported per-hour quota left.
	HourlyRemaining *int

	// RetryAfter is a server directive to wait before the next request.
	RetryAfter *time.Duration

	// Total is the total number of items in the paginated collection.
	Total *int
}

// ParseHeaders extracts rate-limit and pagination metadata from response
// headers. A header that is present but unparsable is treated as absent and
// logged at warn level; malformed metadata is never fatal. This runs on every
// response, success or error, since even error responses carry quota headers.
func ParseHeaders(headers http.Header, logger zerolog.Logger) Metadata {
	var meta Metadata

	if v := parseIntHeader(headers, HeaderSecondlyRemaining, logger); v != nil {
		meta.SecondlyRemaining = v
	}
	if v := parseIntHeader(headers, HeaderHourlyRemaining, logger); v != nil {
		meta.HourlyRemaining = v
	}
	if v := parseIntHeader(headers, HeaderRetryAfter, logger); v != nil {
		d := time.Duration(*v) * time.Second
		meta.RetryAfter = &d
	}
	if v := parseIntHeader(headers, HeaderTotal, logger); v != nil {
		meta.Total = v
	}

	return meta
}

// parseIntHeader returns the header's integer value, or nil if the header is
// missing or malformed.
func parseIntHeader(headers http.Header, name string, logger zerolog.Logger) *int {
	raw := headers.Get(name)
	if raw == "" {
		return nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		logger.Warn().
			Str("header", name).
			Str("value", raw).
			Msg("Ignoring malformed rate limit header")
		return nil
	}

	return &v
}
