package core

import (
	"context"
	"sync/atomic"
)

// closedNode is stored in Queue.tail once the queue is closed. Its address is
// never a live node, and its next field is never written.
var closedNode = &taskNode{}

// Queue is a lock-free multi-producer single-consumer task queue built from a
// chain of taskNodes.
//
// The chain always holds at least one node: head is the node that ran last (an
// empty sentinel initially), and every pending node hangs off head.next. Any
// goroutine may enqueue; only the consumer drains and moves head. Producers
// read head solely to detect that the consumer has caught up.
type Queue struct {
	head    atomic.Pointer[taskNode]
	tail    atomic.Pointer[taskNode]
	pending atomic.Int64
}

// NewQueue creates an empty, open Queue.
func NewQueue() *Queue {
	q := &Queue{}
	sentinel := &taskNode{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// enqueue appends n. ok is false when the queue is closed, in which case n has
// been disposed and will never run. wasEmpty is true when the consumer had
// already caught up with the tail n was linked behind: exactly that producer
// is responsible for requesting a drain.
func (q *Queue) enqueue(n *taskNode) (wasEmpty bool, ok bool) {
	var pivot *taskNode
	for {
		pivot = q.tail.Load()
		if pivot == closedNode {
			n.Dispose()
			return false, false
		}
		if pivot.next.CompareAndSwap(nil, n) {
			break
		}
		// Another producer linked first but has not advanced tail yet.
		if next := pivot.next.Load(); next != nil {
			q.tail.CompareAndSwap(pivot, next)
		}
	}
	// Fails harmlessly if a racing producer already advanced tail, or if the
	// queue was closed in between.
	q.tail.CompareAndSwap(pivot, n)

	if q.tail.Load() == closedNode {
		// close may have walked the chain before n was linked.
		n.Dispose()
		return false, false
	}
	q.pending.Add(1)
	return pivot == q.head.Load(), true
}

// drain runs every pending node in order and returns how many actions ran.
// It must only be called by the consumer, never concurrently with itself.
// Nodes appended while draining are picked up by the same pass. If an action
// panics, head still moves past it before the panic propagates.
func (q *Queue) drain(ctx context.Context, run func(context.Context, *taskNode) bool) int {
	executed := 0
	for next := q.head.Load().next.Load(); next != nil; next = next.next.Load() {
		if q.IsClosed() {
			break
		}
		if q.step(ctx, next, run) {
			executed++
		}
	}
	return executed
}

func (q *Queue) step(ctx context.Context, n *taskNode, run func(context.Context, *taskNode) bool) bool {
	defer func() {
		q.pending.Add(-1)
		q.head.Store(n)
	}()
	return run(ctx, n)
}

// hasPending reports whether the consumer is behind the tail.
func (q *Queue) hasPending() bool {
	return q.head.Load().next.Load() != nil
}

// close marks the queue closed and disposes every node still linked from head.
// It returns false if the queue was already closed. It does not wait for a
// drain in progress; that drain stops at its next node.
func (q *Queue) close() bool {
	if q.tail.Swap(closedNode) == closedNode {
		return false
	}
	for n := q.head.Load(); n != nil; n = n.next.Load() {
		n.Dispose()
	}
	return true
}

// IsClosed reports whether close has been called.
func (q *Queue) IsClosed() bool {
	return q.tail.Load() == closedNode
}

// Len returns an estimate of the number of linked nodes not yet consumed,
// including disposed ones. A closed queue has none.
func (q *Queue) Len() int {
	if q.IsClosed() {
		return 0
	}
	if n := q.pending.Load(); n > 0 {
		return int(n)
	}
	return 0
}
