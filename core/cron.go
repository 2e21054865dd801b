package core

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard five-field specs, an optional leading seconds
// field, and descriptors such as "@hourly" or "@every 5m".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ScheduleCron queues a fresh execution of task at every activation of the
// cron spec, until the token or the Worker is disposed. Each activation arms a
// one-shot timer for the next one, so activations never pile up behind a slow
// UI thread.
//
// An unparsable spec returns ErrInvalidArgument.
func (w *Worker) ScheduleCron(task Task, spec string) (Disposable, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return Disposed(), fmt.Errorf("cron spec %q: %w: %w", spec, ErrInvalidArgument, err)
	}
	if task == nil {
		return Disposed(), nil
	}
	if w.IsDisposed() {
		w.reject()
		return Disposed(), nil
	}

	tok := &timerToken{onDone: w.untrack}
	w.track(tok)
	w.armCron(tok, schedule, task, time.Now())
	return tok, nil
}

// armCron arms the timer for the first activation after from. Activations
// further out than the timer can represent are reached in MaxDelay hops.
func (w *Worker) armCron(tok *timerToken, schedule cron.Schedule, task Task, from time.Time) {
	if tok.IsDisposed() {
		return
	}
	next := schedule.Next(from)
	if next.IsZero() {
		// The spec has no further activations.
		tok.Dispose()
		return
	}

	delay := time.Until(next)
	hop := false
	if delay < 0 {
		delay = 0
	} else if delay > w.timer.MaxDelay() {
		delay = w.timer.MaxDelay()
		hop = true
	}

	tok.arm(w.timer.AfterFunc(delay, func() {
		if tok.IsDisposed() {
			return
		}
		if hop {
			w.armCron(tok, schedule, task, from)
			return
		}
		w.schedule(newTaskNode(task))
		w.armCron(tok, schedule, task, next)
	}))
}
