// Package latency records and merges per-request latency samples as a
// precision-5 HDR histogram over nanoseconds, mirroring the hdrhistogram
// crate the Rust original links against.
package latency

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// lowestTrackable and highestTrackable bound a 1ns..1hr request latency,
// generous enough for any sane load test.
const (
	lowestTrackable  = 1
	highestTrackable = int64(time.Hour)
	sigFigs          = 5
)

// Histogram is an optional nanosecond latency recorder. A single Histogram
// is shared by every Connection Runner on one Thread Worker, each calling
// Record from its own goroutine; Record, Merge and Snapshot all take a
// mutex, so concurrent use is safe.
type Histogram struct {
	mu sync.Mutex
	h  *hdrhistogram.Histogram
}

// New allocates a fresh histogram.
func New() *Histogram {
	return &Histogram{h: hdrhistogram.New(lowestTrackable, highestTrackable, sigFigs)}
}

// Record adds one nanosecond sample.
func (l *Histogram) Record(d time.Duration) {
	l.mu.Lock()
	_ = l.h.RecordValue(int64(d))
	l.mu.Unlock()
}

// Merge folds other's counts into l. Sum-of-counts merge, order-independent.
func (l *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()
	_ = l.h.Merge(other.h)
}

// Snapshot is the immutable view of a Histogram exposed to the Report.
type Snapshot struct {
	Min, Max             time.Duration
	Mean, StdDev         time.Duration
	P50, P75, P90, P99   time.Duration
	P999, P9999, P99999  time.Duration
}

// Snapshot freezes the current state for reporting.
func (l *Histogram) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.h
	return Snapshot{
		Min:    time.Duration(h.Min()),
		Max:    time.Duration(h.Max()),
		Mean:   time.Duration(int64(h.Mean())),
		StdDev: time.Duration(int64(h.StdDev())),
		P50:    time.Duration(h.ValueAtQuantile(50)),
		P75:    time.Duration(h.ValueAtQuantile(75)),
		P90:    time.Duration(h.ValueAtQuantile(90)),
		P99:    time.Duration(h.ValueAtQuantile(99)),
		P999:   time.Duration(h.ValueAtQuantile(99.9)),
		P9999:  time.Duration(h.ValueAtQuantile(99.99)),
		P99999: time.Duration(h.ValueAtQuantile(99.999)),
	}
}
