package core

import (
	"context"
	"sync/atomic"
)

// taskNode is one link of a Queue. It doubles as the Disposable returned by
// Worker.Schedule: disposing it clears the action so the consumer skips it.
//
// action is cleared exactly once, either by Dispose or by run. next is written
// at most once, from nil to the successor.
type taskNode struct {
	action atomic.Pointer[Task]
	next   atomic.Pointer[taskNode]
}

func newTaskNode(task Task) *taskNode {
	n := &taskNode{}
	if task != nil {
		n.action.Store(&task)
	}
	return n
}

// Dispose prevents the action from running. It is a no-op once the action ran.
func (n *taskNode) Dispose() {
	n.action.Store(nil)
}

// IsDisposed reports whether the action was cancelled or has already run.
func (n *taskNode) IsDisposed() bool {
	return n.action.Load() == nil
}

// run executes the action unless the node was disposed. The action is taken
// before it is invoked, so a node never runs twice.
func (n *taskNode) run(ctx context.Context) bool {
	task := n.action.Swap(nil)
	if task == nil {
		return false
	}
	(*task)(ctx)
	return true
}
