package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/intra42/ftapi/pkg/pagination"
)

// Pages adapts one paginated endpoint into a pagination.PageFetcher that
// decodes each page's JSON array body into []T. The fetcher performs no
// permit acquisition of its own; the scroller drives that.
func Pages[T any](c *Client, endpoint string, params url.Values) pagination.PageFetcher[T] {
	return func(ctx context.Context, page int) (*pagination.Page[T], error) {
		body, meta, err := c.GetPage(ctx, endpoint, params, page)
		if err != nil {
			return nil, err
		}

		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode page %d of %s: %w", page, endpoint, err)
		}

		return &pagination.Page[T]{Items: items, Meta: meta}, nil
	}
}

// ScrollAll fetches every page of an endpoint using the client's shared rate
// limiter, returning all decoded items plus a record per abandoned page.
func ScrollAll[T any](ctx context.Context, c *Client, cfg pagination.Config, endpoint string, params url.Values) ([]T, []pagination.PageError) {
	return pagination.Scroll(ctx, c.Limiter(), cfg, Pages[T](c, endpoint, params))
}
