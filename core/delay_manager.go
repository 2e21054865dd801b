package core

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// delayedEntry is one armed timer in a DelayManager.
type delayedEntry struct {
	runAt  time.Time
	period time.Duration // zero for one-shot entries
	fn     func()
	index  int // for heap interface, -1 once removed
}

// delayedEntryHeap implements heap.Interface
type delayedEntryHeap []*delayedEntry

func (h delayedEntryHeap) Len() int           { return len(h) }
func (h delayedEntryHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h delayedEntryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedEntryHeap) Push(x any) {
	n := len(*h)
	item := x.(*delayedEntry)
	item.index = n
	*h = append(*h, item)
}

func (h *delayedEntryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *delayedEntryHeap) Peek() *delayedEntry {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// DelayManager is a Timer that multiplexes every armed timer onto a single
// goroutine and a min-heap of deadlines. It suits hosts with many short-lived
// delayed tasks, where SystemTimer would arm one runtime timer (and, for
// periodic schedules, one goroutine) each.
type DelayManager struct {
	pq     delayedEntryHeap
	mu     sync.Mutex
	wakeup chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Timer = (*DelayManager)(nil)

// NewDelayManager creates a DelayManager and starts its timer goroutine.
// Call Stop to release it.
func NewDelayManager() *DelayManager {
	ctx, cancel := context.WithCancel(context.Background())
	dm := &DelayManager{
		pq:     make(delayedEntryHeap, 0),
		wakeup: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	heap.Init(&dm.pq)
	go dm.loop()
	return dm
}

// AfterFunc calls fn once after d.
func (dm *DelayManager) AfterFunc(d time.Duration, fn func()) CancelFunc {
	return dm.add(d, 0, fn)
}

// Every calls fn after initialDelay and then every period. Deadlines advance
// by period from the previous deadline, so a late firing does not shift the
// following ones.
func (dm *DelayManager) Every(initialDelay, period time.Duration, fn func()) CancelFunc {
	return dm.add(initialDelay, period, fn)
}

// MaxDelay returns DefaultMaxDelay.
func (dm *DelayManager) MaxDelay() time.Duration {
	return DefaultMaxDelay
}

func (dm *DelayManager) add(delay, period time.Duration, fn func()) CancelFunc {
	item := &delayedEntry{
		runAt:  time.Now().Add(delay),
		period: period,
		fn:     fn,
	}

	dm.mu.Lock()
	if dm.ctx.Err() != nil {
		dm.mu.Unlock()
		return func() {}
	}
	heap.Push(&dm.pq, item)
	first := item.index == 0
	dm.mu.Unlock()

	if first {
		dm.wake()
	}

	return func() { dm.remove(item) }
}

func (dm *DelayManager) remove(item *delayedEntry) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	// A periodic entry being fired is off the heap; clearing period stops the re-push.
	item.period = 0
	if item.index >= 0 {
		heap.Remove(&dm.pq, item.index)
	}
}

func (dm *DelayManager) wake() {
	select {
	case dm.wakeup <- struct{}{}:
	default:
	}
}

func (dm *DelayManager) loop() {
	defer close(dm.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		nextRun, ok := dm.calculateNextRun()
		if !ok {
			// No timers armed, wait for AfterFunc/Every to wake us.
			nextRun = time.Hour
		}
		timer.Reset(nextRun)

		select {
		case <-dm.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			dm.processExpired()
		case <-dm.wakeup:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// calculateNextRun returns how long until the earliest deadline, or false
// when nothing is armed.
func (dm *DelayManager) calculateNextRun() (time.Duration, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := dm.pq.Peek()
	if item == nil {
		return 0, false
	}
	d := time.Until(item.runAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// processExpired fires every entry whose deadline has passed. Callbacks run
// outside the lock so they may arm or cancel timers themselves.
func (dm *DelayManager) processExpired() {
	dm.mu.Lock()

	now := time.Now()
	var expired []*delayedEntry
	for dm.pq.Len() > 0 {
		item := dm.pq.Peek()
		if item.runAt.After(now) {
			break
		}
		heap.Pop(&dm.pq)
		expired = append(expired, item)
	}

	dm.mu.Unlock()

	for _, item := range expired {
		item.fn()

		dm.mu.Lock()
		if item.period > 0 && dm.ctx.Err() == nil {
			item.runAt = item.runAt.Add(item.period)
			heap.Push(&dm.pq, item)
		}
		dm.mu.Unlock()
	}
}

// Stop cancels every armed timer and waits for the timer goroutine to exit.
func (dm *DelayManager) Stop() {
	dm.mu.Lock()
	dm.cancel()
	// Clear pq to release all callback references
	dm.pq = make(delayedEntryHeap, 0)
	heap.Init(&dm.pq)
	dm.mu.Unlock()

	<-dm.done
}

// TimerCount returns the number of armed timers.
func (dm *DelayManager) TimerCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}
