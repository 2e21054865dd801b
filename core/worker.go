package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Worker executes scheduled tasks, in order, on the UI thread of a Dispatcher.
//
// Any goroutine may schedule. Scheduling never blocks: tasks are linked into a
// lock-free Queue and the producer that finds the queue drained requests a
// single drain turn from the Dispatcher. A task that schedules more work on
// its own Worker simply appends to the queue; the running drain picks it up.
//
// A Worker is either active or disposed. Dispose is one-way and may be called
// from any goroutine, including while a drain is running.
type Worker struct {
	name    string
	queue   *Queue
	trigger *dispatchTrigger
	timer   Timer
	logger  Logger
	metrics Metrics
	ctx     context.Context

	// armed timers, so Dispose can stop them
	timers sync.Map // map[*timerToken]struct{}

	executed atomic.Int64
	rejected atomic.Int64
}

// NewWorker creates an active Worker draining on dispatcher. A nil timer means
// SystemTimer; a nil config means DefaultWorkerConfig.
func NewWorker(dispatcher Dispatcher, timer Timer, config *WorkerConfig) *Worker {
	if dispatcher == nil {
		panic("core: NewWorker requires a Dispatcher")
	}
	if timer == nil {
		timer = SystemTimer{}
	}
	cfg := config.withDefaults()

	w := &Worker{
		name:    cfg.Name,
		queue:   NewQueue(),
		timer:   timer,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	w.ctx = context.WithValue(context.Background(), workerKey, w)
	w.trigger = &dispatchTrigger{
		dispatcher: dispatcher,
		drain:      w.drain,
		name:       w.name,
		metrics:    w.metrics,
	}
	return w
}

// Name returns the name of the worker
func (w *Worker) Name() string {
	return w.name
}

// Schedule queues task for execution on the UI thread and returns a token that
// cancels it if disposed before it runs.
//
// On a disposed Worker the task is rejected: the returned token is already
// disposed and the task never runs. When called on the UI thread with nothing
// pending, the task runs before Schedule returns.
func (w *Worker) Schedule(task Task) Disposable {
	if task == nil {
		return Disposed()
	}
	if w.IsDisposed() {
		w.reject()
		return Disposed()
	}
	return w.schedule(newTaskNode(task))
}

func (w *Worker) schedule(n *taskNode) Disposable {
	wasEmpty, ok := w.queue.enqueue(n)
	if !ok {
		w.reject()
		return Disposed()
	}
	if wasEmpty {
		w.trigger.fire()
	}
	return n
}

// ScheduleDelayed queues task after delay. The token works before the delay
// elapses: disposing it stops the timer and the task never runs.
//
// delay must lie in [0, Timer.MaxDelay()], otherwise ErrInvalidArgument is
// returned and nothing is armed. A zero delay schedules immediately.
func (w *Worker) ScheduleDelayed(task Task, delay time.Duration) (Disposable, error) {
	if err := checkDelay(w.timer, "delay", delay); err != nil {
		return Disposed(), err
	}
	if delay == 0 {
		return w.Schedule(task), nil
	}
	if task == nil {
		return Disposed(), nil
	}
	if w.IsDisposed() {
		w.reject()
		return Disposed(), nil
	}

	node := newTaskNode(task)
	tok := &timerToken{node: node, onDone: w.untrack}
	w.track(tok)
	tok.arm(w.timer.AfterFunc(delay, func() {
		w.untrack(tok)
		w.schedule(node)
	}))
	return tok, nil
}

// SchedulePeriodic queues a fresh execution of task after initialDelay and then
// once per period, until the token or the Worker is disposed.
//
// Disposing the token stops future firings only: a firing already queued but
// not yet drained still runs.
//
// initialDelay must lie in [0, Timer.MaxDelay()] and period in
// (0, Timer.MaxDelay()], otherwise ErrInvalidArgument is returned.
func (w *Worker) SchedulePeriodic(task Task, initialDelay, period time.Duration) (Disposable, error) {
	if err := checkDelay(w.timer, "initial delay", initialDelay); err != nil {
		return Disposed(), err
	}
	if err := checkPeriod(w.timer, period); err != nil {
		return Disposed(), err
	}
	if task == nil {
		return Disposed(), nil
	}
	if w.IsDisposed() {
		w.reject()
		return Disposed(), nil
	}

	tok := &timerToken{onDone: w.untrack}
	w.track(tok)
	tok.arm(w.timer.Every(initialDelay, period, func() {
		if tok.IsDisposed() {
			return
		}
		w.schedule(newTaskNode(task))
	}))
	return tok, nil
}

// Dispose closes the Worker. Tasks scheduled afterwards are rejected, tasks
// still queued are cancelled and armed timers are stopped. Dispose does not
// wait for a drain in progress; that drain stops before its next task.
func (w *Worker) Dispose() {
	if !w.queue.close() {
		return
	}
	w.timers.Range(func(key, _ any) bool {
		key.(*timerToken).Dispose()
		return true
	})
	w.logger.Debug("worker disposed",
		F("worker", w.name),
		F("executed", w.executed.Load()),
		F("rejected", w.rejected.Load()))
}

// IsDisposed reports whether Dispose has been called.
func (w *Worker) IsDisposed() bool {
	return w.queue.IsClosed()
}

// drain runs on the UI thread. It is the callback posted by the dispatch
// trigger, or invoked inline when the producer is on the UI thread.
func (w *Worker) drain() {
	defer func() {
		if r := recover(); r != nil {
			// head has moved past the panicking task; make sure the rest
			// of the queue still gets a turn before unwinding.
			if w.queue.hasPending() && !w.IsDisposed() {
				w.trigger.post()
			}
			panic(r)
		}
	}()

	n := w.queue.drain(w.ctx, w.runNode)
	w.executed.Add(int64(n))
	w.metrics.RecordQueueDepth(w.name, w.queue.Len())
}

func (w *Worker) runNode(ctx context.Context, n *taskNode) bool {
	start := time.Now()
	ran := n.run(ctx)
	if ran {
		w.metrics.RecordTaskDuration(w.name, time.Since(start))
	}
	return ran
}

func (w *Worker) reject() {
	w.rejected.Add(1)
	w.metrics.RecordTaskRejected(w.name, RejectReasonDisposed)
	w.logger.Debug("schedule rejected", F("worker", w.name), F("reason", RejectReasonDisposed))
}

func (w *Worker) track(tok *timerToken) {
	w.timers.Store(tok, struct{}{})
	// Dispose may have ranged over timers before tok was stored.
	if w.IsDisposed() {
		tok.Dispose()
	}
}

func (w *Worker) untrack(tok *timerToken) {
	w.timers.Delete(tok)
}

// Stats returns a snapshot of the worker state.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Name:     w.name,
		Pending:  w.queue.Len(),
		Executed: w.executed.Load(),
		Rejected: w.rejected.Load(),
		Disposed: w.IsDisposed(),
	}
}
