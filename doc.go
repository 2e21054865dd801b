// Package uischeduler runs work posted from any goroutine, in order, on a
// single designated UI goroutine.
//
// The central type is the Worker: a lock-free multi-producer single-consumer
// task queue plus a dispatch trigger that asks the UI thread for exactly one
// drain turn whenever the queue goes from empty to non-empty. Workers also
// support delayed, periodic and cron schedules through a pluggable Timer, and
// can be disposed from any goroutine while a drain is running.
//
// # Quick Start
//
// Start the process-wide UI thread at application startup:
//
//	uischeduler.InitUIThread(nil)
//	defer uischeduler.ShutdownUIThread()
//
// Create a Worker and schedule work on it:
//
//	worker := uischeduler.NewWorker(nil)
//	defer worker.Dispose()
//
//	worker.Schedule(func(ctx context.Context) {
//		// runs on the UI thread
//	})
//
// # Key Concepts
//
// Worker: owns one queue and one disposal lifecycle. Tasks scheduled on a
// Worker run in submission order; a task may schedule more work on its own
// Worker (see core.GetCurrentWorker) without growing the call stack.
//
// Disposable: the token returned by every scheduling call. Disposing it before
// the task runs cancels the task; disposing it afterwards does nothing.
//
// Dispatcher: the host's "run later on the UI thread" and "am I on the UI
// thread" primitives. core.EventLoop provides one for programs without a
// toolkit of their own; core.DispatcherFuncs wraps an existing toolkit's.
//
// Timer: the host's one-shot and repeating timer primitive. core.SystemTimer
// uses runtime timers; core.DelayManager multiplexes all timers on one goroutine.
//
// # Lifecycle
//
// The process-wide UI thread is explicit state: InitUIThread creates it once,
// UIThread and UIScheduler return it for injection into the components that
// need it, and ShutdownUIThread tears it down. Nothing in core reads it
// implicitly.
//
// # Example
//
//	import (
//		"context"
//		uischeduler "github.com/Swind/go-ui-scheduler"
//	)
//
//	func main() {
//		uischeduler.InitUIThread(nil)
//		defer uischeduler.ShutdownUIThread()
//
//		worker := uischeduler.NewWorker(nil)
//
//		worker.Schedule(func(ctx context.Context) {
//			println("Task 1")
//		})
//		worker.ScheduleDelayed(func(ctx context.Context) {
//			println("Task 2 - delayed")
//		}, time.Second)
//	}
package uischeduler
