package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/intra42/ftapi/pkg/ratelimit"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit rejections.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a failed Intra API request with its classification and any
// rate-limit metadata the error response carried. Rejected responses still
// update limiter state, so the metadata travels with the error.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Meta       ratelimit.Metadata
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("intra %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("intra %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether this failure was a rate limit rejection.
// Satisfies pagination.RateLimitedError.
func (e *APIError) RateLimited() bool {
	return e.Class == ErrorClassRateLimit
}

// ResponseMetadata returns the rate-limit metadata from the error response.
// Satisfies pagination.MetadataCarrier.
func (e *APIError) ResponseMetadata() ratelimit.Metadata {
	return e.Meta
}

// IsRateLimited reports whether err is a rate limit rejection.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.RateLimited()
}

// classifyStatus categorizes an HTTP status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry determines if a token fetch error is worth retrying.
// Client errors mean bad credentials and retrying wastes quota; rate limit
// rejections are the scroller's concern, not the token path's.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
