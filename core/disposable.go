package core

import (
	"sync/atomic"
)

// Disposable is the handle returned by every scheduling call. Disposing it
// before the work runs prevents the work from running; disposing it afterwards
// has no effect.
type Disposable interface {
	Dispose()
	IsDisposed() bool
}

type disposedToken struct{}

func (disposedToken) Dispose()         {}
func (disposedToken) IsDisposed() bool { return true }

// Disposed returns a token that is already disposed. Schedule calls rejected by
// a disposed Worker return it.
func Disposed() Disposable {
	return disposedToken{}
}

// timerToken is the handle for work driven by a Timer: delayed, periodic and
// cron schedules. The cancel function may be installed after the token has
// been handed out, and may be replaced when a schedule re-arms itself.
type timerToken struct {
	node     *taskNode // nil for repeating schedules
	cancel   atomic.Pointer[CancelFunc]
	disposed atomic.Bool
	onDone   func(*timerToken)
}

func (t *timerToken) Dispose() {
	if !t.disposed.CompareAndSwap(false, true) {
		return
	}
	if t.node != nil {
		t.node.Dispose()
	}
	if c := t.cancel.Load(); c != nil {
		(*c)()
	}
	if t.onDone != nil {
		t.onDone(t)
	}
}

func (t *timerToken) IsDisposed() bool {
	if t.node != nil {
		return t.node.IsDisposed()
	}
	return t.disposed.Load()
}

// arm installs the cancel function of the currently armed timer. A token
// disposed concurrently still gets its timer stopped.
func (t *timerToken) arm(cancel CancelFunc) {
	t.cancel.Store(&cancel)
	if t.disposed.Load() {
		cancel()
	}
}

// chainToken covers a chain of scheduled steps whose tokens only become known
// as the chain advances. Disposing it disposes every step set so far and any
// step set later.
type chainToken struct {
	disposed atomic.Bool
	steps    [2]atomic.Pointer[Disposable]
}

func (c *chainToken) set(step int, d Disposable) {
	c.steps[step].Store(&d)
	if c.disposed.Load() {
		d.Dispose()
	}
}

func (c *chainToken) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	for i := range c.steps {
		if d := c.steps[i].Load(); d != nil {
			(*d).Dispose()
		}
	}
}

func (c *chainToken) IsDisposed() bool {
	return c.disposed.Load()
}
