package core

// Dispatcher is the host's UI thread as seen by a Worker.
//
// Implementations must be safe for concurrent use. Post must not block and
// must run fn on the UI thread at some later turn.
type Dispatcher interface {
	// Post runs fn later on the UI thread.
	Post(fn func())

	// IsDispatchThread reports whether the caller is running on the UI thread.
	IsDispatchThread() bool
}

// DispatcherFuncs adapts a pair of functions into a Dispatcher, for hosts that
// already expose "run later" and "is UI thread" primitives.
type DispatcherFuncs struct {
	PostFunc             func(fn func())
	IsDispatchThreadFunc func() bool
}

func (d DispatcherFuncs) Post(fn func()) {
	d.PostFunc(fn)
}

func (d DispatcherFuncs) IsDispatchThread() bool {
	if d.IsDispatchThreadFunc == nil {
		return false
	}
	return d.IsDispatchThreadFunc()
}

// dispatchTrigger requests a drain of one Worker's queue on the UI thread.
// It is fired only by the producer whose enqueue found the queue caught up,
// so at most one turn is pending per empty to non-empty transition.
type dispatchTrigger struct {
	dispatcher Dispatcher
	drain      func()
	name       string
	metrics    Metrics
}

// fire drains immediately when already on the UI thread, saving a turn of
// latency, and posts a drain otherwise.
func (t *dispatchTrigger) fire() {
	if t.dispatcher.IsDispatchThread() {
		t.metrics.RecordDispatch(t.name, true)
		t.drain()
		return
	}
	t.post()
}

// post always defers the drain to a later turn.
func (t *dispatchTrigger) post() {
	t.metrics.RecordDispatch(t.name, false)
	t.dispatcher.Post(t.drain)
}
