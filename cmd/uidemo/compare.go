package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/Swind/go-ui-scheduler/core"
	"github.com/urfave/cli/v2"
)

func CompareCommand() *cli.Command {
	return &cli.Command{
		Name:  "compare",
		Usage: "Count UI turns taken by a queued Worker versus one post per task",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "tasks",
				Aliases: []string{"n"},
				Value:   10000,
				Usage:   "Tasks to schedule on each scheduler",
			},
		},

		Action: CompareAction,
	}
}

func CompareAction(c *cli.Context) error {
	tasks := c.Int("tasks")
	if tasks < 1 {
		return cli.Exit("tasks must be positive", 1)
	}

	loop := core.NewEventLoop(&core.EventLoopConfig{Name: "ui", Logger: core.NewNoOpLogger()})
	defer loop.Stop()

	queued := core.NewQueuedScheduler(loop, nil, &core.WorkerConfig{Name: "queued"}).CreateWorker()
	executor := core.NewExecutorScheduler(loop)

	for _, s := range []struct {
		name      string
		scheduler core.Scheduler
	}{
		{"queued worker", queued},
		{"executor", executor},
	} {
		turns, err := countTurns(c.Context, loop, s.scheduler, tasks)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		fmt.Printf("%-14s %d tasks in %d UI turns\n", s.name+":", tasks, turns)
	}
	return nil
}

// countTurns schedules tasks and returns how many loop callbacks ran for them.
func countTurns(ctx context.Context, loop *core.EventLoop, s core.Scheduler, tasks int) (int64, error) {
	if err := loop.WaitIdle(ctx); err != nil {
		return 0, err
	}
	before := loop.Stats().Executed

	var wg sync.WaitGroup
	wg.Add(tasks)
	for range tasks {
		s.Schedule(func(ctx context.Context) { wg.Done() })
	}
	wg.Wait()

	if err := loop.WaitIdle(ctx); err != nil {
		return 0, err
	}
	// The WaitIdle barrier is a turn of its own.
	return loop.Stats().Executed - before - 1, nil
}
