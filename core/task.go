package core

import (
	"context"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// TaskWithResult is a task that produces a value for a reply.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// ReplyWithResult consumes the value produced by a TaskWithResult.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// =============================================================================
// Context Helper
// =============================================================================
type workerKeyType struct{}

var workerKey workerKeyType

// GetCurrentWorker returns the Worker whose drain is running the current task,
// or nil when ctx was not produced by a Worker.
func GetCurrentWorker(ctx context.Context) *Worker {
	if v := ctx.Value(workerKey); v != nil {
		return v.(*Worker)
	}
	return nil
}
