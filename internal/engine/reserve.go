package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Reservations tracks which URLs the crawl has claimed, keyed by a
// canonical form the caller supplies (types.DedupKey for products,
// types.RequestKey for listing and search pages). The check and the
// mark happen under one lock, so for any set of concurrent claims on
// equivalent URLs exactly one caller wins.
type Reservations struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewReservations creates an empty reservation set.
func NewReservations(estimatedCapacity int) *Reservations {
	return &Reservations{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

// TryReserve atomically claims a canonical key. Returns true for the
// first caller, false for every later one.
func (r *Reservations) TryReserve(canonical string) bool {
	key := hashKey(canonical)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	return true
}

// IsReserved reports whether a canonical key has already been claimed.
func (r *Reservations) IsReserved(canonical string) bool {
	key := hashKey(canonical)

	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[key]
	return ok
}

// Count returns the number of distinct reserved keys.
func (r *Reservations) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// hashKey compacts a canonical URL to a 128-bit hex digest.
func hashKey(canonical string) string {
	h := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(h[:16])
}
