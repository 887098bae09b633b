package pagination

import (
	"sync"
)

// TotalOracle is the shared, lazily-discovered upper bound on the page range
// of one scroll operation. It starts unknown (treated as unbounded) and is
// set at most once from response metadata; the first authoritative value
// wins so that per-worker skew cannot make the bound oscillate.
type TotalOracle struct {
	mu    sync.Mutex
	known bool
	total int
}

// Record stores the total if no value has been recorded yet.
func (o *TotalOracle) Record(total int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.known {
		return
	}
	o.known = true
	o.total = total
}

// PageMayExist reports whether the given page could still hold items.
// While the total is unknown every page may exist. The total is a best-effort
// hint; the empty-page check remains the authoritative end-of-collection
// signal.
func (o *TotalOracle) PageMayExist(page int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.known {
		return true
	}
	return page <= o.total
}

// Total returns the recorded value and whether one has been recorded.
func (o *TotalOracle) Total() (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.total, o.known
}
