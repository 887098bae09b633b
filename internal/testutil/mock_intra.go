// Package testutil provides testing utilities for the Intra API client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// TestToken is the bearer token issued by the mock's /oauth/token endpoint.
const TestToken = "test-access-token"

// MockResponse defines one canned response, typically used to inject
// failures ahead of the normal page body.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockIntra is a configurable mock Intra API server for testing. It issues
// tokens, serves paginated collections, and lets tests inject rate limit
// rejections and errors per page.
type MockIntra struct {
	server *httptest.Server

	mu sync.Mutex

	// pages maps endpoint -> page number -> JSON array body. Pages without
	// an entry are served as "[]".
	pages map[string]map[int]string

	// totals maps endpoint -> X-Total value sent with every page.
	totals map[string]int

	// queued maps endpoint/page -> responses served before the real page.
	queued map[string][]MockResponse

	// defaultHeaders are attached to every collection response.
	defaultHeaders map[string]string

	// Tracking
	TokenRequests int
	RequestCount  int
	PageHits      map[string]int
	LastAuth      string
}

// NewMockIntra creates a new mock Intra API server.
func NewMockIntra() *MockIntra {
	mock := &MockIntra{
		pages:  make(map[string]map[int]string),
		totals: make(map[string]int),
		queued: make(map[string][]MockResponse),
		defaultHeaders: map[string]string{
			"X-Secondly-RateLimit-Remaining": "2",
			"X-Hourly-RateLimit-Remaining":   "1200",
		},
		PageHits: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", mock.tokenHandler)
	mux.HandleFunc("/", mock.collectionHandler)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockIntra) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockIntra) Close() {
	m.server.Close()
}

// SetPages configures an endpoint's collection: pages[i] is the JSON array
// body of page i+1. Pages past the slice are empty.
func (m *MockIntra) SetPages(endpoint string, pages []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPage := make(map[int]string, len(pages))
	for i, body := range pages {
		byPage[i+1] = body
	}
	m.pages[endpoint] = byPage
}

// SetTotal sets the X-Total header value sent with the endpoint's pages.
func (m *MockIntra) SetTotal(endpoint string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[endpoint] = total
}

// SetDefaultHeader sets a header attached to every collection response.
func (m *MockIntra) SetDefaultHeader(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultHeaders[name] = value
}

// QueueResponse enqueues a canned response served for the given endpoint
// and page before the normal page body. Used to inject 429s and errors.
func (m *MockIntra) QueueResponse(endpoint string, page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pageKey(endpoint, page)
	m.queued[key] = append(m.queued[key], resp)
}

// GetRequestCount returns the number of collection requests served.
func (m *MockIntra) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetPageHits returns how often the given endpoint page was requested.
func (m *MockIntra) GetPageHits(endpoint string, page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PageHits[pageKey(endpoint, page)]
}

// GetTokenRequests returns the number of token exchanges served.
func (m *MockIntra) GetTokenRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TokenRequests
}

func (m *MockIntra) tokenHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.TokenRequests++
	m.mu.Unlock()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":%q,"token_type":"bearer","expires_in":7200,"created_at":0}`, TestToken)
}

func (m *MockIntra) collectionHandler(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	m.mu.Lock()
	m.RequestCount++
	m.LastAuth = r.Header.Get("Authorization")
	key := pageKey(r.URL.Path, page)
	m.PageHits[key]++

	// Injected response, if any, wins over the real page.
	if queue := m.queued[key]; len(queue) > 0 {
		resp := queue[0]
		m.queued[key] = queue[1:]
		m.mu.Unlock()

		for name, value := range resp.Headers {
			w.Header().Set(name, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
		return
	}

	body, ok := m.pages[r.URL.Path][page]
	total, hasTotal := m.totals[r.URL.Path]
	headers := make(map[string]string, len(m.defaultHeaders))
	for name, value := range m.defaultHeaders {
		headers[name] = value
	}
	m.mu.Unlock()

	for name, value := range headers {
		w.Header().Set(name, value)
	}
	if hasTotal {
		w.Header().Set("X-Total", strconv.Itoa(total))
	}
	w.Header().Set("Content-Type", "application/json")

	if !ok {
		body = "[]"
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func pageKey(endpoint string, page int) string {
	return fmt.Sprintf("%s#%d", endpoint, page)
}

// NewRateLimitResponse creates a 429 rejection carrying quota headers.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"Too Many Requests"}`,
		Headers: map[string]string{
			"X-Secondly-RateLimit-Remaining": "0",
			"Retry-After":                    retryAfter,
			"Content-Type":                   "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"Internal Server Error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}
