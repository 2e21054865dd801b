package core

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// EventLoop binds a dedicated goroutine that runs posted callbacks one at a
// time, in posting order. It is the UI thread of a Go program: it implements
// Dispatcher, so Workers can drain on it.
//
// Key differences from a plain channel loop:
// - Post never blocks, however far behind the loop is
// - IsDispatchThread identifies the loop goroutine, which lets a Worker drain
//   inline instead of posting to itself
// - a panicking callback is recovered and reported, and the loop keeps going
type EventLoop struct {
	name  string
	queue *postQueue

	signal chan struct{}

	// Lifecycle control
	ctx          context.Context
	cancel       context.CancelFunc
	stopped      chan struct{}
	shutdownOnce sync.Once
	closed       atomic.Bool
	loopID       atomic.Uint64

	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
	history      executionHistory

	executed atomic.Int64
	panicked atomic.Int64
	rejected atomic.Int64
}

var _ Dispatcher = (*EventLoop)(nil)

// NewEventLoop creates and starts a new EventLoop.
// It immediately spawns the dedicated goroutine.
func NewEventLoop(config *EventLoopConfig) *EventLoop {
	cfg := config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	l := &EventLoop{
		name:         cfg.Name,
		queue:        newPostQueue(),
		signal:       make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		panicHandler: cfg.PanicHandler,
		history:      newExecutionHistory(cfg.HistoryCapacity),
	}

	go l.runLoop()

	return l
}

// Name returns the name of the loop
func (l *EventLoop) Name() string {
	return l.name
}

// Post queues fn to run on the loop goroutine. Callbacks posted after Shutdown
// are dropped.
func (l *EventLoop) Post(fn func()) {
	if fn == nil {
		return
	}
	if l.closed.Load() {
		l.rejected.Add(1)
		l.metrics.RecordTaskRejected(l.name, RejectReasonClosed)
		l.logger.Debug("post rejected", F("loop", l.name), F("reason", RejectReasonClosed))
		return
	}

	l.queue.Push(fn)

	select {
	case l.signal <- struct{}{}:
	default:
		// A wakeup is already pending; the loop takes the whole batch.
	}
}

// IsDispatchThread reports whether the caller is the loop goroutine.
func (l *EventLoop) IsDispatchThread() bool {
	id := l.loopID.Load()
	return id != 0 && goroutineID() == id
}

// runLoop is the core of this loop, it occupies a dedicated goroutine
func (l *EventLoop) runLoop() {
	defer close(l.stopped)

	l.loopID.Store(goroutineID())
	l.logger.Info("event loop started", F("loop", l.name))

	spare := make([]func(), 0, defaultQueueCap)
	for {
		batch := l.queue.Swap(spare)
		if len(batch) == 0 {
			spare = batch
			select {
			case <-l.signal:
				continue
			case <-l.ctx.Done():
				l.logger.Info("event loop stopped",
					F("loop", l.name),
					F("executed", l.executed.Load()),
					F("panicked", l.panicked.Load()))
				return
			}
		}

		for _, fn := range batch {
			if l.ctx.Err() != nil {
				// Shut down mid-batch: the rest is dropped like the queue.
				break
			}
			l.execute(fn)
		}
		l.metrics.RecordQueueDepth(l.name, l.queue.Len())
		spare = recycle(batch)
	}
}

func (l *EventLoop) execute(fn func()) {
	startedAt := time.Now()
	panicked := false

	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			l.panicked.Add(1)
			l.metrics.RecordTaskPanic(l.name, rec)
			l.panicHandler.HandlePanic(l.name, rec, debug.Stack())
		}

		finishedAt := time.Now()
		l.executed.Add(1)
		l.metrics.RecordTaskDuration(l.name, finishedAt.Sub(startedAt))
		l.history.Add(TaskExecutionRecord{
			Name:       funcName(fn),
			LoopName:   l.name,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Duration:   finishedAt.Sub(startedAt),
			Panicked:   panicked,
		})
	}()

	fn()
}

// Shutdown marks the loop as closed and lets the loop goroutine exit.
// It does not wait, so it may be called from a callback on the loop itself.
//
// After calling Shutdown():
// - IsClosed() returns true
// - Post drops new callbacks
// - Callbacks still queued are dropped; the running one completes
func (l *EventLoop) Shutdown() {
	l.shutdownOnce.Do(func() {
		l.closed.Store(true)
		l.cancel()
		l.queue.Clear()
	})
}

// Stop shuts the loop down and waits for the loop goroutine to exit. Called
// from the loop goroutine it behaves like Shutdown.
func (l *EventLoop) Stop() {
	l.Shutdown()
	if l.IsDispatchThread() {
		return
	}
	<-l.stopped
}

// Done is closed once the loop goroutine has exited.
func (l *EventLoop) Done() <-chan struct{} {
	return l.stopped
}

// IsClosed returns true once Shutdown or Stop has been called.
func (l *EventLoop) IsClosed() bool {
	return l.closed.Load()
}

// WaitIdle blocks until every callback posted before the call has run.
// It posts a barrier callback and waits for it.
//
// Returns error if:
// - ctx is cancelled or its deadline exceeded
// - the loop is closed before the barrier runs
// - it is called from the loop goroutine, where it could never return
func (l *EventLoop) WaitIdle(ctx context.Context) error {
	if l.IsClosed() {
		return ErrLoopClosed
	}
	if l.IsDispatchThread() {
		return fmt.Errorf("event loop %s: WaitIdle called on the loop goroutine", l.name)
	}

	done := make(chan struct{})
	l.Post(func() { close(done) })

	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecentTasks returns up to limit execution records, newest first.
func (l *EventLoop) RecentTasks(limit int) []TaskExecutionRecord {
	return l.history.Recent(limit)
}

// Stats returns a snapshot of the loop state.
func (l *EventLoop) Stats() LoopStats {
	stats := LoopStats{
		Name:     l.name,
		Pending:  l.queue.Len(),
		Executed: l.executed.Load(),
		Panicked: l.panicked.Load(),
		Rejected: l.rejected.Load(),
		Closed:   l.IsClosed(),
	}
	if last, ok := l.history.Last(); ok {
		stats.LastTask = last.Name
		stats.LastAt = last.FinishedAt
	}
	return stats
}

// goroutineID returns the current goroutine's ID, parsed from the
// "goroutine N [running]:" header of its stack trace.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
