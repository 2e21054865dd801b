package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-ui-scheduler/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// WorkerSnapshotProvider provides current worker stats snapshots.
type WorkerSnapshotProvider interface {
	Stats() core.WorkerStats
}

// LoopSnapshotProvider provides current event loop stats snapshots.
type LoopSnapshotProvider interface {
	Stats() core.LoopStats
}

// SnapshotPoller periodically exports worker/loop Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	workersMu sync.RWMutex
	workers   map[string]WorkerSnapshotProvider

	loopsMu sync.RWMutex
	loops   map[string]LoopSnapshotProvider

	workerPending  *prom.GaugeVec
	workerExecuted *prom.GaugeVec
	workerRejected *prom.GaugeVec
	workerDisposed *prom.GaugeVec

	loopPending  *prom.GaugeVec
	loopExecuted *prom.GaugeVec
	loopPanicked *prom.GaugeVec
	loopClosed   *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "uischeduler",
			Name:      name,
			Help:      help,
		}, labels)
	}

	p := &SnapshotPoller{
		interval:       interval,
		workers:        make(map[string]WorkerSnapshotProvider),
		loops:          make(map[string]LoopSnapshotProvider),
		workerPending:  gauge("worker_pending", "Tasks queued on a worker and not yet drained.", "worker"),
		workerExecuted: gauge("worker_executed", "Tasks executed by a worker, snapshot.", "worker"),
		workerRejected: gauge("worker_rejected", "Schedules rejected by a worker, snapshot.", "worker"),
		workerDisposed: gauge("worker_disposed", "Worker disposed state (1=disposed, 0=active).", "worker"),
		loopPending:    gauge("loop_pending", "Callbacks posted to an event loop and not yet run.", "loop"),
		loopExecuted:   gauge("loop_executed", "Callbacks run by an event loop, snapshot.", "loop"),
		loopPanicked:   gauge("loop_panicked", "Callbacks that panicked on an event loop, snapshot.", "loop"),
		loopClosed:     gauge("loop_closed", "Event loop closed state (1=closed, 0=running).", "loop"),
	}

	for _, g := range []**prom.GaugeVec{
		&p.workerPending, &p.workerExecuted, &p.workerRejected, &p.workerDisposed,
		&p.loopPending, &p.loopExecuted, &p.loopPanicked, &p.loopClosed,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}

	return p, nil
}

// AddWorker adds or replaces a worker snapshot provider by name.
func (p *SnapshotPoller) AddWorker(name string, provider WorkerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "worker")
	p.workersMu.Lock()
	p.workers[name] = provider
	p.workersMu.Unlock()
}

// RemoveWorker stops exporting a worker and deletes its series.
func (p *SnapshotPoller) RemoveWorker(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "worker")
	p.workersMu.Lock()
	delete(p.workers, name)
	p.workersMu.Unlock()

	for _, g := range []*prom.GaugeVec{p.workerPending, p.workerExecuted, p.workerRejected, p.workerDisposed} {
		g.DeleteLabelValues(name)
	}
}

// AddLoop adds or replaces an event loop snapshot provider by name.
func (p *SnapshotPoller) AddLoop(name string, provider LoopSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "loop")
	p.loopsMu.Lock()
	p.loops[name] = provider
	p.loopsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	done := p.done
	p.stateMu.Unlock()

	go p.loop(pollCtx, done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.workersMu.RLock()
	for name, provider := range p.workers {
		stats := provider.Stats()
		p.workerPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.workerExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		p.workerRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.workerDisposed.WithLabelValues(name).Set(boolGauge(stats.Disposed))
	}
	p.workersMu.RUnlock()

	p.loopsMu.RLock()
	for name, provider := range p.loops {
		stats := provider.Stats()
		p.loopPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.loopExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		p.loopPanicked.WithLabelValues(name).Set(float64(stats.Panicked))
		p.loopClosed.WithLabelValues(name).Set(boolGauge(stats.Closed))
	}
	p.loopsMu.RUnlock()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
