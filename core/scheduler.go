package core

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Scheduler hands out work to run on a UI thread.
type Scheduler interface {
	Schedule(task Task) Disposable
}

var (
	_ Scheduler = (*Worker)(nil)
	_ Scheduler = (*QueuedScheduler)(nil)
	_ Scheduler = (*ExecutorScheduler)(nil)
)

// QueuedScheduler creates Workers that share one Dispatcher and Timer. Each
// Worker is an independent queue with its own disposal lifecycle; workers
// created from the same scheduler interleave on the UI thread but keep their
// own FIFO order.
type QueuedScheduler struct {
	dispatcher Dispatcher
	timer      Timer
	config     WorkerConfig
	seq        atomic.Uint64
}

// NewQueuedScheduler creates a QueuedScheduler. A nil timer means SystemTimer;
// a nil config means DefaultWorkerConfig, whose Name prefixes worker names.
func NewQueuedScheduler(dispatcher Dispatcher, timer Timer, config *WorkerConfig) *QueuedScheduler {
	if dispatcher == nil {
		panic("core: NewQueuedScheduler requires a Dispatcher")
	}
	if timer == nil {
		timer = SystemTimer{}
	}
	return &QueuedScheduler{
		dispatcher: dispatcher,
		timer:      timer,
		config:     config.withDefaults(),
	}
}

// CreateWorker returns a new active Worker.
func (s *QueuedScheduler) CreateWorker() *Worker {
	cfg := s.config
	cfg.Name = fmt.Sprintf("%s-%d", s.config.Name, s.seq.Add(1))
	return NewWorker(s.dispatcher, s.timer, &cfg)
}

// Schedule runs task through a fresh single-use Worker.
func (s *QueuedScheduler) Schedule(task Task) Disposable {
	return s.CreateWorker().Schedule(task)
}

// ExecutorScheduler posts every task straight to the Dispatcher, one UI turn
// per task, with no queue of its own. It is the baseline the queued Worker is
// measured against.
type ExecutorScheduler struct {
	dispatcher Dispatcher
	ctx        context.Context
}

// NewExecutorScheduler creates an ExecutorScheduler on dispatcher.
func NewExecutorScheduler(dispatcher Dispatcher) *ExecutorScheduler {
	if dispatcher == nil {
		panic("core: NewExecutorScheduler requires a Dispatcher")
	}
	return &ExecutorScheduler{
		dispatcher: dispatcher,
		ctx:        context.Background(),
	}
}

// Schedule posts task; the token cancels it if it has not run yet.
func (s *ExecutorScheduler) Schedule(task Task) Disposable {
	if task == nil {
		return Disposed()
	}
	n := newTaskNode(task)
	s.dispatcher.Post(func() { n.run(s.ctx) })
	return n
}
