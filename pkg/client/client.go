// Package client provides the core 42 Intra API HTTP client with shared
// rate limiting, token management, caching, and error classification.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/intra42/ftapi/pkg/cache"
	"github.com/intra42/ftapi/pkg/ratelimit"
)

// Prometheus metrics for Intra API client operations.
var (
	ftRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ft_requests_total",
		Help: "Total Intra API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	ftRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ft_request_duration_seconds",
		Help:    "Intra API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	ftErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ft_errors_total",
		Help: "Total Intra API errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the production Intra API endpoint.
const DefaultBaseURL = "https://api.intra.42.fr"

// Default quota limits for an Intra API application.
const (
	DefaultPerSecondLimit = 2
	DefaultPerHourLimit   = 1200
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Intra API.
	BaseURL string

	// UID and Secret are the OAuth application credentials.
	UID    string
	Secret string

	// UserAgent sent with every request.
	UserAgent string

	// PerPage is the page size requested from paginated endpoints.
	PerPage int

	// PerSecondLimit and PerHourLimit configure the shared rate limiter.
	PerSecondLimit int
	PerHourLimit   int

	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration

	// Cache optionally stores GET page responses. Nil disables caching.
	Cache *cache.Manager

	// CacheTTL is how long cached pages stay fresh. The Intra API sends no
	// expiry header, so freshness is the caller's policy.
	CacheTTL time.Duration

	// Retry configures backoff for token fetches.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration for the given
// application credentials.
func DefaultConfig(uid, secret string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UID:            uid,
		Secret:         secret,
		UserAgent:      "ftapi-go/1.0",
		PerPage:        100,
		PerSecondLimit: DefaultPerSecondLimit,
		PerHourLimit:   DefaultPerHourLimit,
		RequestTimeout: 30 * time.Second,
		CacheTTL:       60 * time.Second,
		Retry:          DefaultRetryConfig(),
	}
}

// Client is the Intra API client. One Client owns one rate limiter shared by
// every request and every scroll worker using it.
type Client struct {
	httpClient *http.Client
	config     Config
	limiter    *ratelimit.Limiter
	tokens     *tokenSource
	cache      *cache.Manager
	logger     zerolog.Logger
}

// New creates a new Intra API client.
func New(cfg Config) (*Client, error) {
	if cfg.UID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("application uid and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 100
	}
	if cfg.PerSecondLimit <= 0 {
		cfg.PerSecondLimit = DefaultPerSecondLimit
	}
	if cfg.PerHourLimit <= 0 {
		cfg.PerHourLimit = DefaultPerHourLimit
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "ft-client").Logger()

	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
	}

	limiter := ratelimit.New(cfg.PerSecondLimit, cfg.PerHourLimit,
		ratelimit.WithLogger(logger))

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		limiter:    limiter,
		tokens:     newTokenSource(httpClient, cfg, logger),
		cache:      cfg.Cache,
		logger:     logger,
	}, nil
}

// Limiter returns the client's shared rate limiter. Scroll operations pass
// it to the pagination package so all workers draw from the same quota.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// PerPage returns the configured page size.
func (c *Client) PerPage() int {
	return c.config.PerPage
}

// GetPage fetches one page of a paginated collection. It does not acquire a
// rate limit permit; permit acquisition belongs to the caller (the scroller
// holds one permit per fetch). Response metadata is parsed on every response
// and, for failures, travels inside the returned *APIError so rejected
// responses still update limiter state.
func (c *Client) GetPage(ctx context.Context, endpoint string, params url.Values, page int) ([]byte, ratelimit.Metadata, error) {
	startTime := time.Now()
	defer func() {
		ftRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	query := url.Values{}
	for k, vs := range params {
		query[k] = vs
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(c.config.PerPage))

	cacheKey := cache.Key{Endpoint: endpoint, QueryParams: query}
	if c.cache != nil {
		if entry, err := c.cache.Get(ctx, cacheKey); err == nil {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Int("page", page).
				Msg("Serving page from cache")
			return entry.Data, ratelimit.Metadata{}, nil
		} else if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		ftErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, ratelimit.Metadata{}, err
	}

	reqURL := c.config.BaseURL + endpoint + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, ratelimit.Metadata{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("page", page).
		Msg("Executing Intra API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		ftErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		ftRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, ratelimit.Metadata{}, &APIError{
			Class:   ErrorClassNetwork,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	// Quota headers arrive on every response, including rejections.
	meta := ratelimit.ParseHeaders(resp.Header, c.logger)

	ftRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		ftErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("page", page).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Intra API request error")

		return nil, meta, &APIError{
			StatusCode: resp.StatusCode,
			Class:      errClass,
			Message:    resp.Status,
			Meta:       meta,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ftErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, meta, &APIError{
			Class:   ErrorClassNetwork,
			Message: "read response body",
			Meta:    meta,
			Err:     err,
		}
	}

	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry := cache.NewEntry(body, resp.StatusCode, c.config.CacheTTL)
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache page")
		}
	}

	return body, meta, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
	c.tokens.httpClient = httpClient
}
