package core

import "sync"

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Shrink when a batch used less than cap/4
)

// postQueue is the unbounded FIFO of callbacks posted to an EventLoop.
// Pushing never blocks on the consumer; the consumer takes whole batches and
// hands back the previous batch buffer for reuse.
type postQueue struct {
	mu    sync.Mutex
	items []func()
}

func newPostQueue() *postQueue {
	return &postQueue{
		items: make([]func(), 0, defaultQueueCap),
	}
}

// Push appends fn and returns the queue length afterwards.
func (q *postQueue) Push(fn func()) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, fn)
	return len(q.items)
}

// Swap takes every queued callback and installs spare as the new backing
// buffer. spare must not be used by the caller afterwards.
func (q *postQueue) Swap(spare []func()) []func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := q.items
	q.items = spare[:0]
	return batch
}

func (q *postQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every queued callback and releases their references.
func (q *postQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]func(), 0, defaultQueueCap)
}

// recycle zeroes a consumed batch so it can be handed back through Swap,
// shrinking it when a burst left it mostly unused.
func recycle(batch []func()) []func() {
	n := len(batch)
	c := cap(batch)
	if c >= compactMinCap && n*compactShrinkFactor < c {
		return make([]func(), 0, max(c/2, defaultQueueCap))
	}
	clear(batch)
	return batch[:0]
}
