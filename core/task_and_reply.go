package core

import (
	"context"
)

const (
	stepTask = iota
	stepReply
)

// =============================================================================
// Task and Reply
// =============================================================================

// PostTaskAndReply schedules task on target and, once task returns, schedules
// reply on replyTo. The usual pairing is a background Worker as target and the
// UI Worker as replyTo: toolkit callbacks hop off the UI thread and back.
//
// If task panics the panic propagates on target and reply never runs.
// Disposing the returned token cancels whichever step has not run yet.
func PostTaskAndReply(target Scheduler, task Task, reply Task, replyTo Scheduler) Disposable {
	if replyTo == nil {
		return target.Schedule(task)
	}

	h := &chainToken{}
	h.set(stepTask, target.Schedule(func(ctx context.Context) {
		task(ctx)
		if h.IsDisposed() {
			return
		}
		h.set(stepReply, replyTo.Schedule(reply))
	}))
	return h
}

// PostTaskAndReplyWithResult executes a task that returns a result of type T and an error,
// then passes that result to a reply callback scheduled on replyTo.
//
// The result is captured by the closure, so the reply always observes the
// values the task returned.
//
// Example:
//
//	PostTaskAndReplyWithResult(
//	    background,
//	    func(ctx context.Context) (int, error) {
//	        return len("Hello"), nil
//	    },
//	    func(ctx context.Context, length int, err error) {
//	        label.SetText(strconv.Itoa(length))
//	    },
//	    ui,
//	)
func PostTaskAndReplyWithResult[T any](
	target Scheduler,
	task TaskWithResult[T],
	reply ReplyWithResult[T],
	replyTo Scheduler,
) Disposable {
	var result T
	var err error

	return PostTaskAndReply(
		target,
		func(ctx context.Context) {
			result, err = task(ctx)
		},
		func(ctx context.Context) {
			reply(ctx, result, err)
		},
		replyTo,
	)
}
