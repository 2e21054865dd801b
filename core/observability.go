package core

import "time"

// TaskExecutionRecord captures one callback executed by an EventLoop.
type TaskExecutionRecord struct {
	Name       string
	LoopName   string
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// WorkerStats represents runtime observability state for a Worker.
type WorkerStats struct {
	Name     string
	Pending  int
	Executed int64
	Rejected int64
	Disposed bool
}

// LoopStats represents runtime observability state for an EventLoop.
type LoopStats struct {
	Name     string
	Pending  int
	Executed int64
	Panicked int64
	Rejected int64
	Closed   bool
	LastTask string
	LastAt   time.Time
}
