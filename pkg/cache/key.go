package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies one cached Intra API page response.
type Key struct {
	// Endpoint is the API path (e.g., "/v2/campus/69/users").
	Endpoint string

	// QueryParams are the request's query parameters, including pagination.
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: ft:endpoint:query1=val1:query2=val2
//
// Example:
//
//	ft:v2/campus/69/users:page=3:per_page=100
func (k Key) String() string {
	parts := []string{"ft"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism.
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
