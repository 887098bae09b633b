package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

// Windows are shortened via WithPeriods so tests exercise real waits without
// waiting out real seconds and hours.

func intPtr(v int) *int { return &v }

func durPtr(d time.Duration) *time.Duration { return &d }

func TestAcquire_WithinLimitNoWait(t *testing.T) {
	limiter := New(5, 100, WithPeriods(time.Second, time.Hour))

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("5 acquires within limit took %v, want no wait", elapsed)
	}
}

func TestAcquire_WaitsForSecondlyReset(t *testing.T) {
	const window = 250 * time.Millisecond
	limiter := New(3, 100, WithPeriods(window, time.Hour))

	for i := 0; i < 3; i++ {
		if err := limiter.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	// Fourth permit must wait for the window boundary.
	start := time.Now()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < window-50*time.Millisecond {
		t.Errorf("4th Acquire() returned after %v, want >= %v", elapsed, window)
	}
	if elapsed > window+200*time.Millisecond {
		t.Errorf("4th Acquire() returned after %v, want close to %v", elapsed, window)
	}
}

func TestAcquire_WaitsForHourlyReset(t *testing.T) {
	const hourWindow = 400 * time.Millisecond
	limiter := New(100, 2, WithPeriods(50*time.Millisecond, hourWindow))

	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	start := time.Now()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < hourWindow-50*time.Millisecond {
		t.Errorf("Acquire() past hourly limit returned after %v, want >= %v", elapsed, hourWindow)
	}
}

func TestAcquire_RetryAfterOverridesAvailableQuota(t *testing.T) {
	const retryAfter = 400 * time.Millisecond
	limiter := New(5, 100, WithPeriods(100*time.Millisecond, time.Hour))

	// Quota is abundant, but the server directive must still win.
	limiter.SyncFromMetadata(Metadata{RetryAfter: durPtr(retryAfter)})

	start := time.Now()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < retryAfter-50*time.Millisecond {
		t.Errorf("Acquire() returned after %v, want >= %v (Retry-After precedence)", elapsed, retryAfter)
	}
}

func TestAcquire_RetryAfterOutlivesWindowReset(t *testing.T) {
	const (
		window     = 100 * time.Millisecond
		retryAfter = 350 * time.Millisecond
	)
	limiter := New(2, 100, WithPeriods(window, time.Hour))

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	limiter.SyncFromMetadata(Metadata{RetryAfter: durPtr(retryAfter)})

	// Several window resets pass while the directive is active; none of them
	// may release the caller early.
	start := time.Now()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < retryAfter-50*time.Millisecond {
		t.Errorf("Acquire() returned after %v, want >= %v", elapsed, retryAfter)
	}
}

func TestSyncFromMetadata_RemainingZeroForcesWait(t *testing.T) {
	const window = 300 * time.Millisecond
	limiter := New(2, 100, WithPeriods(window, time.Hour))

	// No local consumption, but the server says the window is exhausted.
	limiter.SyncFromMetadata(Metadata{SecondlyRemaining: intPtr(0)})

	start := time.Now()
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < window-50*time.Millisecond {
		t.Errorf("Acquire() returned after %v, want >= %v (synced remaining=0)", elapsed, window)
	}
}

func TestSyncFromMetadata_ClampsToLimit(t *testing.T) {
	limiter := New(3, 100, WithPeriods(time.Hour, time.Hour))

	// Server reports more quota than the configured limit; the limit wins.
	limiter.SyncFromMetadata(Metadata{SecondlyRemaining: intPtr(50)})

	limiter.mu.Lock()
	remaining := limiter.secondly.remaining
	limiter.mu.Unlock()

	if remaining != 3 {
		t.Errorf("secondly remaining = %d, want 3 (clamped)", remaining)
	}
}

func TestSyncFromMetadata_AbsentFieldsAreNoops(t *testing.T) {
	limiter := New(3, 100, WithPeriods(time.Hour, time.Hour))
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	limiter.SyncFromMetadata(Metadata{})

	limiter.mu.Lock()
	secRemaining := limiter.secondly.remaining
	retryUntil := limiter.retryUntil
	limiter.mu.Unlock()

	if secRemaining != 2 {
		t.Errorf("secondly remaining = %d, want 2 (empty sync must not reset)", secRemaining)
	}
	if !retryUntil.IsZero() {
		t.Errorf("retryUntil = %v, want zero", retryUntil)
	}
}

func TestSyncFromMetadata_RetryAfterNeverShortens(t *testing.T) {
	limiter := New(5, 100, WithPeriods(time.Second, time.Hour))

	limiter.SyncFromMetadata(Metadata{RetryAfter: durPtr(500 * time.Millisecond)})
	limiter.mu.Lock()
	first := limiter.retryUntil
	limiter.mu.Unlock()

	limiter.SyncFromMetadata(Metadata{RetryAfter: durPtr(10 * time.Millisecond)})
	limiter.mu.Lock()
	second := limiter.retryUntil
	limiter.mu.Unlock()

	if second.Before(first) {
		t.Errorf("retryUntil shortened from %v to %v", first, second)
	}
}

func TestAcquire_ConcurrentCallersNeverExceedWindowLimit(t *testing.T) {
	const (
		limit   = 5
		window  = 200 * time.Millisecond
		callers = 20
	)
	limiter := New(limit, 1000, WithPeriods(window, time.Hour))

	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(grants) != callers {
		t.Fatalf("granted %d permits, want %d", len(grants), callers)
	}

	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })

	// In any span of limit+1 consecutive grants, the first and last must be
	// at least one window apart, otherwise more than `limit` permits were
	// granted inside a single window.
	for i := 0; i+limit < len(grants); i++ {
		gap := grants[i+limit].Sub(grants[i])
		if gap < window-50*time.Millisecond {
			t.Errorf("grants %d..%d only %v apart, want >= %v", i, i+limit, gap, window)
		}
	}
}

func TestAcquire_ContextCancellation(t *testing.T) {
	limiter := New(1, 100, WithPeriods(time.Hour, time.Hour))
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx)
	if err == nil {
		t.Fatal("Acquire() = nil, want context error while window exhausted")
	}
	if err != context.DeadlineExceeded {
		t.Errorf("Acquire() error = %v, want %v", err, context.DeadlineExceeded)
	}
}
