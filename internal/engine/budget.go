package engine

import "sync"

// Budget enforces the max-items cap. A slot is acquired when a product
// request is enqueued, released if that request fails for good, and
// converted to an emission when a record is written. Gating at enqueue
// rather than at emit keeps a crawl with max items 1 from fanning out
// over an entire listing page.
type Budget struct {
	mu       sync.Mutex
	max      int
	acquired int
	emitted  int
}

// NewBudget creates a budget for the given item cap.
func NewBudget(maxItems int) *Budget {
	return &Budget{max: maxItems}
}

// TryAcquire claims a slot for a prospective product. Returns false when
// every slot is already held by an in-flight request or an emitted
// record.
func (b *Budget) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.acquired >= b.max {
		return false
	}
	b.acquired++
	return true
}

// Release returns a slot after a product request fails permanently, so
// later discoveries can still fill the quota.
func (b *Budget) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.acquired > 0 {
		b.acquired--
	}
}

// RecordEmit counts one emitted record against the cap.
func (b *Budget) RecordEmit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitted++
}

// Emitted returns how many records have been written.
func (b *Budget) Emitted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.emitted
}

// Filled reports whether the emission target has been reached.
func (b *Budget) Filled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.emitted >= b.max
}
