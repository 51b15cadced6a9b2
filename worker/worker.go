// Package worker implements the Thread Worker: it owns a slice of the
// total connection count, spawns one runner.Runner per connection, and
// accumulates their outcomes into a single ThreadResult, per spec.md §4.5.
//
// The Rust original gives every connection on a worker a raw pointer into
// a single-threaded-scheduler-owned ThreadResult and never synchronizes
// because nothing else can run concurrently with it. Go's goroutine
// scheduler offers no such guarantee — runner goroutines on one worker
// can genuinely execute in parallel under GOMAXPROCS — so this port keeps
// the "single writer, no atomics" property a different way: every Runner
// emits its outcomes onto a channel, and only this package's own
// aggregating goroutine ever touches ThreadResult's counters, the same
// fan-in-to-one-writer shape hey.go's own results channel uses. The one
// exception is the latency histogram behind ThreadResult.Hdr: Runners
// record into it directly, and it guards itself with a mutex.
package worker

import (
	"context"
	"sync"

	"github.com/emberload/ember/config"
	"github.com/emberload/ember/errkind"
	"github.com/emberload/ember/latency"
	"github.com/emberload/ember/runner"
	"github.com/emberload/ember/statuscount"
)

// ThreadResult is the per-worker aggregate spec.md §3 describes, frozen
// once Run returns.
type ThreadResult struct {
	OK       uint64
	Read     uint64
	Write    uint64
	Err      errkind.Counters
	Statuses statuscount.Counters
	Hdr      *latency.Histogram // nil when latency recording was disabled
}

// Join sums other into t, lane-wise and field-wise. Join is commutative
// and associative: merging any subset of ThreadResults in any order
// produces the same aggregate (spec.md §8 invariant 7).
func (t *ThreadResult) Join(other ThreadResult) {
	t.OK += other.OK
	t.Read += other.Read
	t.Write += other.Write
	t.Err.Join(other.Err)
	t.Statuses.Join(other.Statuses)
	if other.Hdr != nil {
		if t.Hdr == nil {
			t.Hdr = latency.New()
		}
		t.Hdr.Merge(other.Hdr)
	}
}

// eventBuffer bounds how many outcomes can be in flight between a
// connection goroutine and the aggregator before a Runner's emit blocks.
// Generous enough that a burst of completions across many connections
// doesn't routinely stall a hot-path emit.
const eventBuffer = 4096

// Worker owns one slice of the total connection count.
type Worker struct {
	cfg   *config.RunConfig
	conns int
}

// New builds a Worker that will drive conns connections once Run starts.
func New(cfg *config.RunConfig, conns int) *Worker {
	return &Worker{cfg: cfg, conns: conns}
}

// Run spawns w.conns Connection Runners, waits on ready once they are all
// launched (supporting the readiness-barrier alternative to the fixed
// warm-up sleep that spec.md §9's open question allows), blocks until the
// start signal fires, then runs every Runner until ctx is done, merges
// their outcomes as they arrive, and returns the frozen ThreadResult.
func (w *Worker) Run(ctx context.Context, ready *sync.WaitGroup, start <-chan struct{}) ThreadResult {
	var result ThreadResult
	if w.cfg.Latency {
		result.Hdr = latency.New()
	}

	events := make(chan runner.Outcome, eventBuffer)
	var wg sync.WaitGroup
	wg.Add(w.conns)
	for i := 0; i < w.conns; i++ {
		r := runner.New(w.cfg, events, result.Hdr)
		go func() {
			defer wg.Done()
			<-start
			r.Run(ctx)
		}()
	}

	ready.Done()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		select {
		case ev := <-events:
			apply(&result, ev)
		case <-done:
			drainRemaining(&result, events)
			return result
		}
	}
}

// drainRemaining folds in any outcomes already buffered on events once
// every Runner has exited, so a burst of completions right at shutdown is
// never silently dropped.
func drainRemaining(result *ThreadResult, events chan runner.Outcome) {
	for {
		select {
		case ev := <-events:
			apply(result, ev)
		default:
			return
		}
	}
}

func apply(result *ThreadResult, ev runner.Outcome) {
	result.Read += ev.Read
	result.Write += ev.Write
	if ev.OK {
		result.OK++
		result.Statuses.RecordUnchecked(uint16(ev.Status))
		return
	}
	result.Err.Record(ev.Kind)
}
