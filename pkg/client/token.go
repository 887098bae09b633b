package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// tokenExpiryMargin is subtracted from the reported lifetime so a token is
// refreshed before the server actually rejects it.
const tokenExpiryMargin = 30 * time.Second

// accessToken is the OAuth token response from /oauth/token.
type accessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	CreatedAt   int64  `json:"created_at"`
}

// tokenSource fetches and caches a client-credentials token. The token is
// reused until shortly before expiry; concurrent callers share one refresh.
type tokenSource struct {
	httpClient *http.Client
	baseURL    string
	uid        string
	secret     string
	retry      RetryConfig
	logger     zerolog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenSource(httpClient *http.Client, cfg Config, logger zerolog.Logger) *tokenSource {
	return &tokenSource{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		uid:        cfg.UID,
		secret:     cfg.Secret,
		retry:      cfg.Retry,
		logger:     logger,
	}
}

// Token returns a valid bearer token, refreshing it if the cached one has
// expired or is about to.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiresAt) {
		return ts.token, nil
	}

	if err := ts.refresh(ctx); err != nil {
		return "", err
	}
	return ts.token, nil
}

// refresh performs the client-credentials exchange. Called with ts.mu held.
// Server and network failures are retried with backoff; credential errors
// are not, since repeating them only burns quota.
func (ts *tokenSource) refresh(ctx context.Context) error {
	var tok accessToken

	err := retryWithBackoff(ctx, ts.retry, func() error {
		return ts.fetch(ctx, &tok)
	}, func(err error) ErrorClass {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.Class
		}
		return ErrorClassNetwork
	})
	if err != nil {
		return fmt.Errorf("fetch access token: %w", err)
	}

	ts.token = tok.AccessToken
	lifetime := time.Duration(tok.ExpiresIn) * time.Second
	if lifetime > tokenExpiryMargin {
		lifetime -= tokenExpiryMargin
	}
	ts.expiresAt = time.Now().Add(lifetime)

	ts.logger.Debug().
		Time("expires_at", ts.expiresAt).
		Msg("Access token refreshed")

	return nil
}

func (ts *tokenSource) fetch(ctx context.Context, tok *accessToken) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", ts.uid)
	form.Set("client_secret", ts.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		ts.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return &APIError{Class: ErrorClassNetwork, Message: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(tok); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("token response contains no access token")
	}
	return nil
}
