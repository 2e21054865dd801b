package core

import (
	"context"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Ordering and dispatch
// =============================================================================

// TestWorker_BurstDrainsInOneTurn verifies one drain request per burst
// Given: A Worker on a dispatcher that only runs posts when told to
// When: A, B, C are scheduled from a non-UI goroutine before the UI runs
// Then: Exactly one drain is posted and it runs A, B, C in order
func TestWorker_BurstDrainsInOneTurn(t *testing.T) {
	// Arrange
	d := &manualDispatcher{}
	metrics := &recordingMetrics{}
	w := NewWorker(d, nil, &WorkerConfig{Name: "burst", Metrics: metrics})
	rec := &recorder{}

	// Act
	for _, s := range []string{"A", "B", "C"} {
		w.Schedule(func(ctx context.Context) { rec.add(s) })
	}

	// Assert
	require.Equal(t, 1, d.Pending(), "one drain turn should be requested for the burst")
	assert.Equal(t, 1, d.RunPending())
	assert.Equal(t, []string{"A", "B", "C"}, rec.get())
	assert.Equal(t, int64(1), metrics.posted.Load())
	assert.Equal(t, int64(3), metrics.durations.Load())
	assert.Equal(t, int64(3), w.Stats().Executed)
}

// TestWorker_NewBurstAfterDrainRequestsAnotherTurn verifies re-arming
// Given: A Worker whose first burst has been drained
// When: Another task is scheduled
// Then: A new drain turn is posted
func TestWorker_NewBurstAfterDrainRequestsAnotherTurn(t *testing.T) {
	d := &manualDispatcher{}
	w := NewWorker(d, nil, nil)
	var ran atomic.Int32

	w.Schedule(func(ctx context.Context) { ran.Add(1) })
	d.RunPending()
	w.Schedule(func(ctx context.Context) { ran.Add(1) })

	if got := d.Pending(); got != 1 {
		t.Fatalf("posted drains = %d, want 1", got)
	}
	d.RunPending()
	if got := ran.Load(); got != 2 {
		t.Errorf("ran = %d, want 2", got)
	}
}

// TestWorker_ScheduleOnUIThreadRunsInline verifies the synchronous drain
// Given: A Worker with an empty queue
// When: Schedule is called from the UI thread
// Then: The task runs before Schedule returns and nothing is posted
func TestWorker_ScheduleOnUIThreadRunsInline(t *testing.T) {
	d := &manualDispatcher{}
	metrics := &recordingMetrics{}
	w := NewWorker(d, nil, &WorkerConfig{Metrics: metrics})
	rec := &recorder{}

	d.OnUI(func() {
		w.Schedule(func(ctx context.Context) { rec.add("task") })
		rec.add("after schedule")
	})

	assert.Equal(t, []string{"task", "after schedule"}, rec.get())
	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, int64(1), metrics.inline.Load())
}

// TestWorker_SelfSchedulingDoesNotRecurse verifies re-entrant scheduling
// Given: A task that schedules itself on its own Worker 10000 times
// When: The drain runs
// Then: Every step runs in the same turn, in order, on a flat call stack
func TestWorker_SelfSchedulingDoesNotRecurse(t *testing.T) {
	const depth = 10000

	d := &manualDispatcher{}
	w := NewWorker(d, nil, nil)
	var steps []int

	var step func(i int) Task
	step = func(i int) Task {
		return func(ctx context.Context) {
			steps = append(steps, i)
			if i+1 < depth {
				GetCurrentWorker(ctx).Schedule(step(i + 1))
			}
		}
	}

	d.OnUI(func() { w.Schedule(step(0)) })

	require.Len(t, steps, depth)
	assert.True(t, slices.IsSorted(steps))
	assert.Equal(t, 0, d.Pending(), "self-scheduling should not post further drains")
}

// TestWorker_PerProducerFIFO verifies ordering across concurrent producers
// Given: A Worker on a running EventLoop and 8 producer goroutines
// When: Each producer schedules 1000 numbered tasks
// Then: Every task runs exactly once and each producer's tasks run in order
func TestWorker_PerProducerFIFO(t *testing.T) {
	const producers = 8
	const perProducer = 1000

	loop := NewEventLoop(&EventLoopConfig{Name: "fifo", Logger: NewNoOpLogger()})
	defer loop.Stop()
	w := NewWorker(loop, nil, &WorkerConfig{Name: "fifo"})

	seen := make([][]int, producers) // written only on the loop goroutine
	var total atomic.Int64
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				w.Schedule(func(ctx context.Context) {
					seen[p] = append(seen[p], i)
					total.Add(1)
				})
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return total.Load() == producers*perProducer },
		5*time.Second, 5*time.Millisecond)
	require.NoError(t, loop.WaitIdle(context.Background()))

	for p := range producers {
		require.Len(t, seen[p], perProducer, "producer %d", p)
		assert.True(t, slices.IsSorted(seen[p]), "producer %d ran out of order", p)
	}
}

// =============================================================================
// Disposal
// =============================================================================

// TestWorker_DisposeTokenBeforeRun verifies task cancellation
// Given: Tasks A and B scheduled but not yet drained
// When: B's token is disposed and the drain runs
// Then: Only A runs, and B's token reports disposed
func TestWorker_DisposeTokenBeforeRun(t *testing.T) {
	d := &manualDispatcher{}
	w := NewWorker(d, nil, nil)
	rec := &recorder{}

	w.Schedule(func(ctx context.Context) { rec.add("A") })
	tokB := w.Schedule(func(ctx context.Context) { rec.add("B") })
	assert.False(t, tokB.IsDisposed())

	tokB.Dispose()
	tokB.Dispose() // idempotent
	d.RunPending()

	assert.Equal(t, []string{"A"}, rec.get())
	assert.True(t, tokB.IsDisposed())
}

// TestWorker_DisposeTokenAfterRunIsNoop verifies late disposal
// Given: A task that has already run
// When: Its token is disposed
// Then: Nothing happens and the token reports disposed
func TestWorker_DisposeTokenAfterRunIsNoop(t *testing.T) {
	d := &manualDispatcher{}
	w := NewWorker(d, nil, nil)
	var ran atomic.Int32

	tok := w.Schedule(func(ctx context.Context) { ran.Add(1) })
	d.RunPending()
	tok.Dispose()

	assert.Equal(t, int32(1), ran.Load())
	assert.True(t, tok.IsDisposed())
	assert.False(t, w.IsDisposed())
}

// TestWorker_DisposeCancelsQueuedAndRejectsNew verifies Worker disposal
// Given: A Worker with two queued tasks
// When: The Worker is disposed, a task is scheduled, and the posted drain runs
// Then: No task runs and the new schedule returns an already disposed token
func TestWorker_DisposeCancelsQueuedAndRejectsNew(t *testing.T) {
	d := &manualDispatcher{}
	metrics := &recordingMetrics{}
	logger := &recordingLogger{}
	w := NewWorker(d, nil, &WorkerConfig{Name: "doomed", Metrics: metrics, Logger: logger})
	var ran atomic.Int32

	t1 := w.Schedule(func(ctx context.Context) { ran.Add(1) })
	t2 := w.Schedule(func(ctx context.Context) { ran.Add(1) })

	w.Dispose()
	w.Dispose()
	late := w.Schedule(func(ctx context.Context) { ran.Add(1) })
	d.RunPending()

	assert.Equal(t, int32(0), ran.Load())
	assert.True(t, w.IsDisposed())
	assert.True(t, t1.IsDisposed())
	assert.True(t, t2.IsDisposed())
	assert.True(t, late.IsDisposed())
	assert.Equal(t, int64(1), metrics.rejected.Load())

	stats := w.Stats()
	assert.Equal(t, WorkerStats{Name: "doomed", Rejected: 1, Disposed: true}, stats)
	assert.Contains(t, logger.messages(), "DEBUG worker disposed")
}

// TestWorker_DisposeFromRunningTask verifies disposal during a drain
// Given: Tasks A, B, C where A disposes the Worker
// When: The drain runs
// Then: A completes and neither B nor C runs
func TestWorker_DisposeFromRunningTask(t *testing.T) {
	d := &manualDispatcher{}
	w := NewWorker(d, nil, nil)
	rec := &recorder{}

	w.Schedule(func(ctx context.Context) {
		GetCurrentWorker(ctx).Dispose()
		rec.add("A")
	})
	w.Schedule(func(ctx context.Context) { rec.add("B") })
	w.Schedule(func(ctx context.Context) { rec.add("C") })
	d.RunPending()

	assert.Equal(t, []string{"A"}, rec.get())
}

// TestWorker_ConcurrentDisposeAndSchedule verifies disposal races
// Given: Producers scheduling while another goroutine disposes the Worker
// When: Everything settles and pending drains run
// Then: No task runs after Dispose returned, and rejected tokens are disposed
func TestWorker_ConcurrentDisposeAndSchedule(t *testing.T) {
	d := &manualDispatcher{}
	w := NewWorker(d, nil, nil)
	var disposed atomic.Bool
	var lateRuns atomic.Int32

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				w.Schedule(func(ctx context.Context) {
					if disposed.Load() {
						lateRuns.Add(1)
					}
				})
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Dispose()
		disposed.Store(true)
	}()
	wg.Wait()
	d.RunPending()

	assert.Equal(t, int32(0), lateRuns.Load())
	assert.True(t, w.Schedule(func(ctx context.Context) {}).IsDisposed())
}

// =============================================================================
// Panics and nil tasks
// =============================================================================

// TestWorker_PanicPropagatesAndQueueSurvives verifies panic handling
// Given: Tasks A (panics), B, C
// When: The UI thread runs the drain
// Then: The panic reaches the UI thread, and B and C run on a follow-up turn
func TestWorker_PanicPropagatesAndQueueSurvives(t *testing.T) {
	d := &manualDispatcher{}
	w := NewWorker(d, nil, nil)
	rec := &recorder{}

	w.Schedule(func(ctx context.Context) { panic("boom") })
	w.Schedule(func(ctx context.Context) { rec.add("B") })
	w.Schedule(func(ctx context.Context) { rec.add("C") })

	assert.PanicsWithValue(t, "boom", func() { d.RunOne() })
	require.Equal(t, 1, d.Pending(), "a follow-up drain should be posted")
	d.RunPending()

	assert.Equal(t, []string{"B", "C"}, rec.get())
	assert.False(t, w.IsDisposed())
}

func TestWorker_NilTask(t *testing.T) {
	d := &manualDispatcher{}
	w := NewWorker(d, nil, nil)

	tok := w.Schedule(nil)

	assert.True(t, tok.IsDisposed())
	assert.Equal(t, 0, d.Pending())
}

func TestNewWorker_NilDispatcherPanics(t *testing.T) {
	assert.Panics(t, func() { NewWorker(nil, nil, nil) })
}

// TestWorker_GetCurrentWorker verifies the context handed to tasks
// Given: A plain context and a task running on a Worker
// When: GetCurrentWorker is called
// Then: It returns nil for the plain context and the Worker inside the task
func TestWorker_GetCurrentWorker(t *testing.T) {
	if got := GetCurrentWorker(context.Background()); got != nil {
		t.Fatalf("GetCurrentWorker(background) = %v, want nil", got)
	}

	d := &manualDispatcher{}
	w := NewWorker(d, nil, &WorkerConfig{Name: "ctx"})
	var got *Worker
	w.Schedule(func(ctx context.Context) { got = GetCurrentWorker(ctx) })
	d.RunPending()

	if got != w {
		t.Errorf("GetCurrentWorker in task = %v, want %v", got, w)
	}
}

// =============================================================================
// Delayed and periodic
// =============================================================================

// TestWorker_ScheduleDelayed verifies a delayed task fires after its delay
// Given: A Worker on a fake timer
// When: A task is scheduled with a 50ms delay and the clock advances
// Then: Nothing is queued before 50ms and the task runs once after
func TestWorker_ScheduleDelayed(t *testing.T) {
	d := &manualDispatcher{}
	ft := &fakeTimer{}
	w := NewWorker(d, ft, nil)
	var ran atomic.Int32

	tok, err := w.ScheduleDelayed(func(ctx context.Context) { ran.Add(1) }, 50*time.Millisecond)
	require.NoError(t, err)

	ft.Advance(49 * time.Millisecond)
	assert.Equal(t, 0, d.Pending())

	ft.Advance(time.Millisecond)
	d.RunPending()
	assert.Equal(t, int32(1), ran.Load())
	assert.True(t, tok.IsDisposed(), "a token reports disposed once its task ran")
	assert.Equal(t, 0, ft.Armed())
}

// TestWorker_ScheduleDelayedDisposeBeforeFire verifies delayed cancellation
// Given: A task scheduled with a 50ms delay on the system timer
// When: The token is disposed immediately and 100ms pass
// Then: The task never runs
func TestWorker_ScheduleDelayedDisposeBeforeFire(t *testing.T) {
	loop := NewEventLoop(&EventLoopConfig{Logger: NewNoOpLogger()})
	defer loop.Stop()
	w := NewWorker(loop, nil, nil)
	var ran atomic.Int32

	tok, err := w.ScheduleDelayed(func(ctx context.Context) { ran.Add(1) }, 50*time.Millisecond)
	require.NoError(t, err)
	tok.Dispose()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, loop.WaitIdle(context.Background()))
	assert.Equal(t, int32(0), ran.Load())
	assert.True(t, tok.IsDisposed())
}

func TestWorker_ScheduleDelayedZeroRunsLikeSchedule(t *testing.T) {
	d := &manualDispatcher{}
	ft := &fakeTimer{}
	w := NewWorker(d, ft, nil)
	var ran atomic.Int32

	_, err := w.ScheduleDelayed(func(ctx context.Context) { ran.Add(1) }, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, ft.Armed(), "a zero delay should not arm a timer")
	assert.Equal(t, 1, d.Pending())
	d.RunPending()
	assert.Equal(t, int32(1), ran.Load())
}

// TestWorker_DisposeStopsTimers verifies Worker disposal reaches armed timers
// Given: A delayed and a periodic schedule on a fake timer
// When: The Worker is disposed
// Then: Both timers are cancelled and both tokens report disposed
func TestWorker_DisposeStopsTimers(t *testing.T) {
	d := &manualDispatcher{}
	ft := &fakeTimer{}
	w := NewWorker(d, ft, nil)
	noop := func(ctx context.Context) {}

	delayed, err := w.ScheduleDelayed(noop, time.Second)
	require.NoError(t, err)
	periodic, err := w.SchedulePeriodic(noop, 0, time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, ft.Armed())

	w.Dispose()

	assert.Equal(t, 0, ft.Armed())
	assert.True(t, delayed.IsDisposed())
	assert.True(t, periodic.IsDisposed())

	_, err = w.ScheduleDelayed(noop, time.Second)
	assert.NoError(t, err)
	assert.Equal(t, 0, ft.Armed(), "a disposed Worker should not arm timers")
}

// TestWorker_SchedulePeriodicFakeClock verifies periodic firings
// Given: A periodic task with initial delay 0 and period 10ms on a fake timer
// When: The clock advances 30ms, the token is disposed, and the clock advances again
// Then: Four firings run in one drain turn and none follow the disposal
func TestWorker_SchedulePeriodicFakeClock(t *testing.T) {
	d := &manualDispatcher{}
	ft := &fakeTimer{}
	w := NewWorker(d, ft, nil)
	var ran atomic.Int32

	tok, err := w.SchedulePeriodic(func(ctx context.Context) { ran.Add(1) }, 0, 10*time.Millisecond)
	require.NoError(t, err)

	ft.Advance(30 * time.Millisecond) // fires at 0, 10, 20, 30
	assert.Equal(t, 1, d.RunPending())
	assert.Equal(t, int32(4), ran.Load())

	tok.Dispose()
	ft.Advance(100 * time.Millisecond)
	d.RunPending()
	assert.Equal(t, int32(4), ran.Load())
	assert.True(t, tok.IsDisposed())
}

// TestWorker_SchedulePeriodicEnqueuedFiringSurvivesDispose verifies that
// disposing a periodic token stops future firings only
// Given: A periodic firing that is queued but not yet drained
// When: The token is disposed and the drain runs
// Then: The queued firing still runs
func TestWorker_SchedulePeriodicEnqueuedFiringSurvivesDispose(t *testing.T) {
	d := &manualDispatcher{}
	ft := &fakeTimer{}
	w := NewWorker(d, ft, nil)
	var ran atomic.Int32

	tok, err := w.SchedulePeriodic(func(ctx context.Context) { ran.Add(1) }, 10*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	ft.Advance(10 * time.Millisecond)
	tok.Dispose()
	d.RunPending()

	assert.Equal(t, int32(1), ran.Load())
}

// TestWorker_SchedulePeriodicRealTime verifies periodic scheduling end to end
// Given: A Worker on an EventLoop and the system timer
// When: A task repeats every 10ms for about 35ms, then its token is disposed
// Then: It runs a few times and stops growing after disposal
func TestWorker_SchedulePeriodicRealTime(t *testing.T) {
	loop := NewEventLoop(&EventLoopConfig{Logger: NewNoOpLogger()})
	defer loop.Stop()
	w := NewWorker(loop, nil, nil)
	var ran atomic.Int32

	tok, err := w.SchedulePeriodic(func(ctx context.Context) { ran.Add(1) }, 0, 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(35 * time.Millisecond)
	tok.Dispose()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, loop.WaitIdle(context.Background()))

	settled := ran.Load()
	assert.GreaterOrEqual(t, settled, int32(2))
	assert.LessOrEqual(t, settled, int32(6))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, ran.Load(), "no firings after dispose")
}

// TestWorker_InvalidDelays verifies argument validation
// Given: A Worker on a timer with a 1s maximum delay
// When: Delays or periods are negative, zero where forbidden, or past the maximum
// Then: ErrInvalidArgument is returned, nothing is armed, and the token is disposed
func TestWorker_InvalidDelays(t *testing.T) {
	d := &manualDispatcher{}
	ft := &fakeTimer{max: time.Second}
	w := NewWorker(d, ft, nil)
	noop := func(ctx context.Context) {}

	cases := []struct {
		name string
		call func() (Disposable, error)
	}{
		{"negative delay", func() (Disposable, error) { return w.ScheduleDelayed(noop, -time.Millisecond) }},
		{"delay over max", func() (Disposable, error) { return w.ScheduleDelayed(noop, 2*time.Second) }},
		{"negative initial delay", func() (Disposable, error) { return w.SchedulePeriodic(noop, -1, time.Millisecond) }},
		{"initial delay over max", func() (Disposable, error) { return w.SchedulePeriodic(noop, 2*time.Second, time.Millisecond) }},
		{"zero period", func() (Disposable, error) { return w.SchedulePeriodic(noop, 0, 0) }},
		{"negative period", func() (Disposable, error) { return w.SchedulePeriodic(noop, 0, -time.Millisecond) }},
		{"period over max", func() (Disposable, error) { return w.SchedulePeriodic(noop, 0, 2*time.Second) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok, err := tc.call()
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.True(t, tok.IsDisposed())
			assert.Equal(t, 0, ft.Armed())
		})
	}

	_, err := w.ScheduleDelayed(noop, time.Second)
	assert.NoError(t, err, "the maximum itself is accepted")
}

func TestWorker_DefaultMaxDelay(t *testing.T) {
	w := NewWorker(&manualDispatcher{}, &fakeTimer{}, nil)
	_, err := w.ScheduleDelayed(func(ctx context.Context) {}, DefaultMaxDelay+time.Millisecond)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, int64(math.MaxInt32), DefaultMaxDelay.Milliseconds())
}
