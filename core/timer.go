package core

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultMaxDelay is the longest delay a host timer accepts: the range of a
// signed 32-bit millisecond count.
const DefaultMaxDelay = time.Duration(math.MaxInt32) * time.Millisecond

// CancelFunc stops an armed timer. It is safe to call more than once and from
// any goroutine.
type CancelFunc func()

// Timer is the host timer primitive used for delayed and periodic scheduling.
// Callbacks may run on any goroutine; Workers only ever call Schedule from them.
type Timer interface {
	// AfterFunc calls fn once after d.
	AfterFunc(d time.Duration, fn func()) CancelFunc

	// Every calls fn after initialDelay and then every period until cancelled.
	Every(initialDelay, period time.Duration, fn func()) CancelFunc

	// MaxDelay is the largest delay or period the timer can represent.
	MaxDelay() time.Duration
}

// SystemTimer implements Timer on the runtime timers. It is independent of
// any Dispatcher, so timers keep firing under UI load.
type SystemTimer struct{}

var _ Timer = SystemTimer{}

// AfterFunc arms a one-shot runtime timer.
func (SystemTimer) AfterFunc(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Every starts a goroutine that waits initialDelay, calls fn, then calls fn on
// every tick of a period ticker. The goroutine exits when cancelled.
func (SystemTimer) Every(initialDelay, period time.Duration, fn func()) CancelFunc {
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		first := time.NewTimer(initialDelay)
		defer first.Stop()

		select {
		case <-stop:
			return
		case <-first.C:
		}
		fn()

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return func() {
		once.Do(func() { close(stop) })
	}
}

// MaxDelay returns DefaultMaxDelay.
func (SystemTimer) MaxDelay() time.Duration {
	return DefaultMaxDelay
}

// checkDelay validates a delay against the timer's range.
func checkDelay(timer Timer, what string, d time.Duration) error {
	if d < 0 || d > timer.MaxDelay() {
		return fmt.Errorf("%s %v outside [0, %v]: %w", what, d, timer.MaxDelay(), ErrInvalidArgument)
	}
	return nil
}

// checkPeriod validates a repeat period; a period must be positive.
func checkPeriod(timer Timer, d time.Duration) error {
	if d <= 0 || d > timer.MaxDelay() {
		return fmt.Errorf("period %v outside (0, %v]: %w", d, timer.MaxDelay(), ErrInvalidArgument)
	}
	return nil
}
