// Package conductor implements the main-thread supervisor: it spawns one
// Thread Worker per configured thread, pulses a synchronized start, waits
// for the measurement deadline or SIGINT, pulses stop, and assembles the
// final Report from every worker's ThreadResult, per spec.md §4.6.
package conductor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emberload/ember/config"
	"github.com/emberload/ember/report"
	"github.com/emberload/ember/worker"
)

// Run spawns cfg.Threads workers spread over cfg.Concurrency connections,
// drives the measurement window, and returns the merged Report. It blocks
// for the full duration of the run (cfg.Duration, or until SIGINT).
func Run(ctx context.Context, cfg *config.RunConfig) (*report.Report, error) {
	sigCtx, stopSignal := signal.NotifyContext(ctx, os.Interrupt)
	defer stopSignal()
	// The duration deadline is not attached yet: its clock must not start
	// until T0, recorded below right after the readiness barrier opens.
	// Starting it here would shorten the measurement window by however
	// long that barrier takes to clear.
	runCtx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	workers := make([]*worker.Worker, cfg.Threads)
	results := make([]worker.ThreadResult, cfg.Threads)
	remaining := cfg.Concurrency
	for i := range workers {
		// Spread concurrency across threads as evenly as possible; any
		// remainder lands on the earliest workers rather than piling
		// entirely onto the last one (spec.md §4.5 tolerates either).
		share := (remaining + (cfg.Threads - i) - 1) / (cfg.Threads - i)
		workers[i] = worker.New(cfg, share)
		remaining -= share
	}

	start := make(chan struct{})
	var ready sync.WaitGroup
	ready.Add(len(workers))

	eg, egCtx := errgroup.WithContext(runCtx)
	for i, w := range workers {
		i, w := i, w
		eg.Go(func() error {
			results[i] = w.Run(egCtx, &ready, start)
			return nil
		})
	}

	ready.Wait()
	t0 := time.Now()
	time.AfterFunc(cfg.Duration, cancel)
	close(start)

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	elapsed := time.Since(t0)

	var merged worker.ThreadResult
	for _, r := range results {
		merged.Join(r)
	}

	return report.New(cfg, merged, elapsed), nil
}
