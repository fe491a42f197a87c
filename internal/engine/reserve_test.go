package engine

import (
	"sync"
	"testing"

	"github.com/stackhound/stackhound/internal/types"
)

func TestTryReserveEquivalentForms(t *testing.T) {
	r := NewReservations(16)

	if !r.TryReserve(types.DedupKey("https://sdbullion.com/silver-eagle")) {
		t.Fatal("first reservation should win")
	}

	// Every equivalent spelling must lose.
	equivalents := []string{
		"https://sdbullion.com/silver-eagle",
		"https://sdbullion.com/silver-eagle/",
		"https://www.sdbullion.com/silver-eagle",
		"HTTPS://sdbullion.com/silver-eagle#tab-reviews",
		"https://sdbullion.com/silver-eagle?utm_source=feed",
	}
	for _, u := range equivalents {
		if r.TryReserve(types.DedupKey(u)) {
			t.Errorf("TryReserve(%q) won, want loss against prior claim", u)
		}
	}

	if !r.TryReserve(types.DedupKey("https://sdbullion.com/gold-maple")) {
		t.Error("distinct URL should reserve")
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
}

func TestTryReserveConcurrentSingleWinner(t *testing.T) {
	r := NewReservations(16)

	forms := []string{
		"https://sdbullion.com/silver-eagle",
		"https://sdbullion.com/silver-eagle/",
		"https://www.sdbullion.com/silver-eagle",
	}

	const goroutines = 60
	var wg sync.WaitGroup
	wins := make(chan bool, goroutines)
	for i := 0; i < goroutines; i++ {
		form := forms[i%len(forms)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- r.TryReserve(types.DedupKey(form))
		}()
	}
	wg.Wait()
	close(wins)

	var won int
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Errorf("%d concurrent reservations won, want exactly 1", won)
	}
	if !r.IsReserved(types.DedupKey("https://sdbullion.com/silver-eagle")) {
		t.Error("URL should report reserved after the race")
	}
}

func TestRequestKeyReservationsKeepSearchPagesDistinct(t *testing.T) {
	r := NewReservations(16)

	if !r.TryReserve(types.RequestKey("https://sdbullion.com/catalogsearch/result/?q=silver")) {
		t.Fatal("search seed should reserve")
	}
	if !r.TryReserve(types.RequestKey("https://sdbullion.com/catalogsearch/result/?q=silver&p=2")) {
		t.Error("pagination of the same search should reserve separately")
	}
	if r.TryReserve(types.RequestKey("https://sdbullion.com/catalogsearch/result?p=2&q=silver")) {
		t.Error("reordered query should collide with the reserved page")
	}
}
