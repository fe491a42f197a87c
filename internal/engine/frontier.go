package engine

import (
	"container/heap"
	"sync"

	"github.com/stackhound/stackhound/internal/types"
)

// Frontier is a thread-safe priority queue of crawl requests. Lower
// priority values dequeue first, so seeds beat discovered pages and
// fresh work beats retries.
type Frontier struct {
	mu     sync.Mutex
	pq     priorityQueue
	closed bool
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	f := &Frontier{pq: make(priorityQueue, 0, 256)}
	heap.Init(&f.pq)
	return f
}

// Push adds a request. Pushes after Close are dropped.
func (f *Frontier) Push(req *types.CrawlRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	heap.Push(&f.pq, &pqItem{request: req, priority: req.Priority})
}

// TryPop attempts a non-blocking dequeue. Returns nil if empty.
func (f *Frontier) TryPop() *types.CrawlRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pq.Len() == 0 {
		return nil
	}
	item := heap.Pop(&f.pq).(*pqItem)
	return item.request
}

// Len returns the number of queued requests.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pq.Len()
}

// Close stops the frontier. Workers polling TryPop observe IsClosed and
// exit once the queue drains.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// IsClosed reports whether the frontier has been closed.
func (f *Frontier) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Drain removes and returns all remaining requests.
func (f *Frontier) Drain() []*types.CrawlRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	requests := make([]*types.CrawlRequest, 0, f.pq.Len())
	for f.pq.Len() > 0 {
		item := heap.Pop(&f.pq).(*pqItem)
		requests = append(requests, item.request)
	}
	return requests
}

type pqItem struct {
	request  *types.CrawlRequest
	priority int
	index    int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].priority < pq[j].priority
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pqItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
