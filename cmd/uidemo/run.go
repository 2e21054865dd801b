package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-ui-scheduler/core"
	obs "github.com/Swind/go-ui-scheduler/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Schedule tasks from concurrent producers and verify per-producer order",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "producers",
				Aliases: []string{"p"},
				Value:   4,
				Usage:   "Number of producer goroutines",
			},
			&cli.IntFlag{
				Name:    "tasks",
				Aliases: []string{"n"},
				Value:   1000,
				Usage:   "Tasks scheduled by each producer",
			},
			&cli.DurationFlag{
				Name:  "period",
				Value: 10 * time.Millisecond,
				Usage: "Period of the heartbeat task running alongside the producers",
			},
			&cli.StringFlag{
				Name:  "timer",
				Value: "system",
				Usage: "Timer backing delayed work: system or heap",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address, e.g. :2112",
			},
			&cli.DurationFlag{
				Name:  "hold",
				Value: 2 * time.Second,
				Usage: "How long to keep the metrics endpoint up after the run",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log worker and loop lifecycle",
			},
		},

		Action: RunAction,
	}
}

func RunAction(c *cli.Context) error {
	// 1. Get flags
	producers := c.Int("producers")
	tasks := c.Int("tasks")
	period := c.Duration("period")

	// 2. Validate (format only)
	if producers < 1 || tasks < 1 {
		return cli.Exit("producers and tasks must be positive", 1)
	}

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter("uidemo", reg, obs.ExporterOptions{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	var logger core.Logger = core.NewNoOpLogger()
	if c.Bool("verbose") {
		logger = core.NewDefaultLogger()
	}

	timer, stopTimer, err := newTimer(c.String("timer"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer stopTimer()

	// 3. Build the UI thread and a Worker on it
	loop := core.NewEventLoop(&core.EventLoopConfig{Name: "ui", Logger: logger, Metrics: exporter})
	defer loop.Stop()
	worker := core.NewWorker(loop, timer, &core.WorkerConfig{Name: "demo", Logger: logger, Metrics: exporter})
	defer worker.Dispose()

	if addr := c.String("metrics-addr"); addr != "" {
		poller, err := obs.NewSnapshotPoller(reg, 50*time.Millisecond)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		poller.AddLoop(loop.Name(), loop)
		poller.AddWorker(worker.Name(), worker)
		poller.Start(c.Context)
		defer poller.Stop()

		shutdown := serveMetrics(addr, reg)
		defer shutdown()
		defer time.Sleep(c.Duration("hold"))
	}

	var ticks atomic.Int64
	heartbeat, err := worker.SchedulePeriodic(func(ctx context.Context) { ticks.Add(1) }, 0, period)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// 4. Produce
	report := runProducers(worker, producers, tasks)
	heartbeat.Dispose()
	if err := loop.WaitIdle(c.Context); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// 5. Format output
	for p, r := range report.perProducer {
		status := "✓"
		if !r.inOrder || r.ran != tasks {
			status = "✗"
		}
		fmt.Printf("%s producer %d: ran %d/%d, in order: %v\n", status, p, r.ran, tasks, r.inOrder)
	}
	stats := worker.Stats()
	loopStats := loop.Stats()
	fmt.Printf("worker %s: executed=%d rejected=%d\n", stats.Name, stats.Executed, stats.Rejected)
	fmt.Printf("loop %s: turns=%d panicked=%d\n", loopStats.Name, loopStats.Executed, loopStats.Panicked)
	fmt.Printf("heartbeat ticks: %d in %v\n", ticks.Load(), report.elapsed.Round(time.Millisecond))

	if !report.ok(tasks) {
		return cli.Exit("ordering check failed", 1)
	}
	return nil
}

type producerResult struct {
	ran     int
	last    int
	inOrder bool
}

type runReport struct {
	perProducer []producerResult
	elapsed     time.Duration
}

func (r runReport) ok(tasks int) bool {
	for _, p := range r.perProducer {
		if !p.inOrder || p.ran != tasks {
			return false
		}
	}
	return true
}

// runProducers schedules tasks from concurrent producers and waits until the
// UI thread has run all of them. Results are only touched on the UI thread.
func runProducers(worker *core.Worker, producers, tasks int) runReport {
	results := make([]producerResult, producers)
	for i := range results {
		results[i] = producerResult{last: -1, inOrder: true}
	}

	var remaining sync.WaitGroup
	remaining.Add(producers * tasks)
	start := time.Now()

	for p := range producers {
		go func() {
			for seq := range tasks {
				worker.Schedule(func(ctx context.Context) {
					defer remaining.Done()
					r := &results[p]
					if seq != r.last+1 {
						r.inOrder = false
					}
					r.last = seq
					r.ran++
				})
			}
		}()
	}

	remaining.Wait()
	return runReport{perProducer: results, elapsed: time.Since(start)}
}

func newTimer(kind string) (core.Timer, func(), error) {
	switch kind {
	case "system":
		return core.SystemTimer{}, func() {}, nil
	case "heap":
		dm := core.NewDelayManager()
		return dm, dm.Stop, nil
	default:
		return nil, nil, fmt.Errorf("unknown timer %q, want system or heap", kind)
	}
}

func serveMetrics(addr string, reg *prom.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("metrics server: %v\n", err)
		}
	}()
	fmt.Printf("Prometheus endpoint is up at http://%s/metrics\n", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
