package uischeduler

import (
	"sync"

	"github.com/Swind/go-ui-scheduler/core"
)

// =============================================================================
// Process-wide UI thread
// =============================================================================

var (
	globalLoop      *core.EventLoop
	globalScheduler *core.QueuedScheduler
	globalMu        sync.Mutex
)

// InitUIThread starts the process-wide UI thread. It is meant to be called once
// at startup; later calls are no-ops until ShutdownUIThread.
func InitUIThread(config *core.EventLoopConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLoop != nil {
		return // Already initialized
	}

	globalLoop = core.NewEventLoop(config)
	globalScheduler = core.NewQueuedScheduler(globalLoop, nil, &core.WorkerConfig{Name: globalLoop.Name()})
}

// UIThread returns the process-wide UI thread.
// It panics if InitUIThread has not been called.
func UIThread() *core.EventLoop {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLoop == nil {
		panic("UI thread not initialized. Call InitUIThread() first.")
	}
	return globalLoop
}

// UIScheduler returns the scheduler creating Workers on the process-wide UI
// thread. It panics if InitUIThread has not been called.
func UIScheduler() *core.QueuedScheduler {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler == nil {
		panic("UI thread not initialized. Call InitUIThread() first.")
	}
	return globalScheduler
}

// ShutdownUIThread stops the process-wide UI thread and waits for its
// goroutine to exit. Workers created on it stop receiving drain turns.
func ShutdownUIThread() {
	globalMu.Lock()
	loop := globalLoop
	globalLoop = nil
	globalScheduler = nil
	globalMu.Unlock()

	if loop != nil {
		loop.Stop()
	}
}

// NewWorker creates a Worker on the process-wide UI thread with the given
// config. A nil config names it after the UI thread.
func NewWorker(config *core.WorkerConfig) *core.Worker {
	if config == nil {
		return UIScheduler().CreateWorker()
	}
	return core.NewWorker(UIThread(), nil, config)
}

// NewEventLoop creates a standalone UI thread, for hosts that need more than one.
func NewEventLoop(config *core.EventLoopConfig) *core.EventLoop {
	return core.NewEventLoop(config)
}

// PostTaskAndReply runs task on target, then reply on replyTo.
func PostTaskAndReply(target, replyTo core.Scheduler, task, reply Task) Disposable {
	return core.PostTaskAndReply(target, task, reply, replyTo)
}
