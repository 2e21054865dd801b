package uischeduler

import "github.com/Swind/go-ui-scheduler/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the uischeduler package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// Disposable cancels scheduled work that has not run yet
type Disposable = core.Disposable

// Worker runs scheduled tasks in order on the UI thread
type Worker = core.Worker

// Dispatcher is the host's UI thread
type Dispatcher = core.Dispatcher

// Timer is the host's timer primitive
type Timer = core.Timer

// EventLoop is a dedicated goroutine acting as UI thread
type EventLoop = core.EventLoop

// Scheduler hands out work to run on a UI thread
type Scheduler = core.Scheduler

// TaskWithResult and ReplyWithResult for generic PostTaskAndReply pattern
type TaskWithResult[T any] = core.TaskWithResult[T]
type ReplyWithResult[T any] = core.ReplyWithResult[T]

// ErrInvalidArgument is returned for out-of-range delays and periods
var ErrInvalidArgument = core.ErrInvalidArgument

// GetCurrentWorker retrieves the Worker running the current task from context
var GetCurrentWorker = core.GetCurrentWorker

// Disposed returns an already disposed token
var Disposed = core.Disposed
