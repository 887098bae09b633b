// Package integration exercises the full stack end to end: OAuth token
// exchange, rate-limited page fetching, and concurrent scrolling against a
// mock Intra API server.
package integration

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/intra42/ftapi/internal/testutil"
	"github.com/intra42/ftapi/pkg/client"
	"github.com/intra42/ftapi/pkg/models"
	"github.com/intra42/ftapi/pkg/pagination"
)

func newClient(t *testing.T, mock *testutil.MockIntra) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig("it-uid", "it-secret")
	cfg.BaseURL = mock.URL()
	cfg.PerPage = 3
	cfg.PerSecondLimit = 1000
	cfg.PerHourLimit = 100000
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return c
}

// userPages builds n pages of 3 users each, ids dense from 1.
func userPages(n int) []string {
	pages := make([]string, n)
	id := 0
	for p := range pages {
		page := "["
		for i := 0; i < 3; i++ {
			id++
			if i > 0 {
				page += ","
			}
			page += fmt.Sprintf(`{"id":%d,"login":"user%d","kind":"student","active?":true}`, id, id)
		}
		pages[p] = page + "]"
	}
	return pages
}

func TestScroll_EndToEnd(t *testing.T) {
	mock := testutil.NewMockIntra()
	defer mock.Close()

	mock.SetPages("/v2/campus/1/users", userPages(5))
	mock.SetTotal("/v2/campus/1/users", 15)

	c := newClient(t, mock)
	defer c.Close()

	cfg := pagination.DefaultConfig()
	cfg.Concurrency = 3

	users, errs := client.ScrollAll[models.User](context.Background(), c, cfg, "/v2/campus/1/users", nil)
	if len(errs) != 0 {
		t.Fatalf("scroll errors: %v", errs)
	}
	if len(users) != 15 {
		t.Fatalf("len(users) = %d, want 15", len(users))
	}

	ids := make([]int, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	sort.Ints(ids)
	for i, id := range ids {
		if id != i+1 {
			t.Fatalf("ids = %v, want 1..15 without gaps or duplicates", ids)
		}
	}

	// One token exchange serves the whole scroll.
	if n := mock.GetTokenRequests(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
}

func TestScroll_TotalHeaderPreventsOverscan(t *testing.T) {
	mock := testutil.NewMockIntra()
	defer mock.Close()

	mock.SetPages("/v2/campus/1/users", []string{
		`[{"id":1,"login":"u1"}]`,
		`[{"id":2,"login":"u2"}]`,
	})
	mock.SetTotal("/v2/campus/1/users", 2)

	c := newClient(t, mock)
	defer c.Close()

	cfg := pagination.DefaultConfig()
	cfg.Concurrency = 1

	users, errs := client.ScrollAll[models.User](context.Background(), c, cfg, "/v2/campus/1/users", nil)
	if len(errs) != 0 {
		t.Fatalf("scroll errors: %v", errs)
	}
	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2", len(users))
	}

	// X-Total: 2 bounds the scan; the worker must stop after page 2
	// without probing page 3 for emptiness.
	if hits := mock.GetPageHits("/v2/campus/1/users", 3); hits != 0 {
		t.Errorf("page 3 fetched %d times despite known total", hits)
	}
	if n := mock.GetRequestCount(); n != 2 {
		t.Errorf("collection requests = %d, want 2", n)
	}
}

func TestScroll_RateLimitRecovery(t *testing.T) {
	mock := testutil.NewMockIntra()
	defer mock.Close()

	mock.SetPages("/v2/scale_teams", []string{
		`[{"id":1,"scale_id":10}]`,
		`[{"id":2,"scale_id":10}]`,
		`[{"id":3,"scale_id":10}]`,
	})
	mock.QueueResponse("/v2/scale_teams", 2, testutil.NewRateLimitResponse("0"))
	mock.QueueResponse("/v2/scale_teams", 3, testutil.NewRateLimitResponse("0"))

	c := newClient(t, mock)
	defer c.Close()

	cfg := pagination.DefaultConfig()
	cfg.Concurrency = 3
	cfg.RetryBackoff = 20 * time.Millisecond

	evals, errs := client.ScrollAll[models.ScaleTeam](context.Background(), c, cfg, "/v2/scale_teams", nil)
	if len(errs) != 0 {
		t.Fatalf("scroll errors: %v", errs)
	}
	if len(evals) != 3 {
		t.Fatalf("len(evals) = %d, want 3 (rejected pages retried)", len(evals))
	}

	if hits := mock.GetPageHits("/v2/scale_teams", 2); hits != 2 {
		t.Errorf("page 2 hits = %d, want 2", hits)
	}
	if hits := mock.GetPageHits("/v2/scale_teams", 3); hits != 2 {
		t.Errorf("page 3 hits = %d, want 2", hits)
	}
}

func TestScroll_TerminalErrorIsIsolated(t *testing.T) {
	mock := testutil.NewMockIntra()
	defer mock.Close()

	mock.SetPages("/v2/projects_users", []string{
		`[{"id":1,"status":"finished"}]`,
		`[{"id":2,"status":"finished"}]`,
		`[{"id":3,"status":"finished"}]`,
		`[{"id":4,"status":"finished"}]`,
	})
	mock.QueueResponse("/v2/projects_users", 2, testutil.NewServerErrorResponse())

	c := newClient(t, mock)
	defer c.Close()

	cfg := pagination.DefaultConfig()
	cfg.Concurrency = 2

	items, errs := client.ScrollAll[models.ProjectsUser](context.Background(), c, cfg, "/v2/projects_users", nil)

	if len(errs) != 1 {
		t.Fatalf("errs = %v, want exactly one failed page", errs)
	}
	if errs[0].Page != 2 {
		t.Errorf("failed page = %d, want 2", errs[0].Page)
	}

	// Worker for pages 1,3 kept going; only page 2's worker stopped, so
	// pages 1 and 3 are present. Page 4 belonged to the dead worker.
	if len(items) < 2 {
		t.Errorf("len(items) = %d, want at least pages 1 and 3", len(items))
	}
	for _, it := range items {
		if it.ID == 2 {
			t.Error("failed page's items leaked into results")
		}
	}
}

func TestScroll_ContextCancellation(t *testing.T) {
	mock := testutil.NewMockIntra()
	defer mock.Close()

	mock.SetPages("/v2/campus/1/users", userPages(50))

	c := newClient(t, mock)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := pagination.DefaultConfig()
	cfg.Concurrency = 4

	users, _ := client.ScrollAll[models.User](ctx, c, cfg, "/v2/campus/1/users", nil)
	if len(users) != 0 {
		t.Errorf("len(users) = %d after pre-cancelled ctx, want 0", len(users))
	}
}
