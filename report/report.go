// Package report assembles the final immutable aggregate spec.md §6
// hands to an external formatter, and renders the human-readable summary
// in the teacher's style (hey.go's own summary printer), using
// github.com/docker/go-units for byte-rate formatting the way the
// docker-compose pack entry does for image sizes.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/docker/go-units"

	"github.com/emberload/ember/config"
	"github.com/emberload/ember/errkind"
	"github.com/emberload/ember/latency"
	"github.com/emberload/ember/statuscount"
	"github.com/emberload/ember/worker"
)

// Report is the final, immutable aggregate of one measurement run.
type Report struct {
	URL              string
	Addr             string
	Protocol         config.Protocol
	KeepAlive        bool
	Method           string
	BodyLen          int
	Threads          int
	Concurrency      int
	ConfiguredDuration time.Duration
	Elapsed          time.Duration
	Timeout          time.Duration // 0 means disabled

	OK       uint64
	Read     uint64
	Write    uint64
	Errors   errkind.Counters
	Statuses statuscount.Counters
	Latency  *latency.Snapshot // nil when latency recording was disabled
}

// New freezes a worker.ThreadResult (already merged across every worker)
// into a Report alongside the run's configuration, for the formatter to
// render.
func New(cfg *config.RunConfig, merged worker.ThreadResult, elapsed time.Duration) *Report {
	r := &Report{
		URL:                cfg.URL.String(),
		Addr:               cfg.Addr,
		Protocol:           cfg.Protocol,
		KeepAlive:          cfg.KeepAlive,
		Method:             cfg.Method,
		BodyLen:            cfg.BodyLen,
		Threads:            cfg.Threads,
		Concurrency:        cfg.Concurrency,
		ConfiguredDuration: cfg.Duration,
		Elapsed:            elapsed,
		Timeout:            cfg.Timeout,
		OK:                 merged.OK,
		Read:               merged.Read,
		Write:              merged.Write,
		Errors:             merged.Err,
		Statuses:           merged.Statuses,
	}
	if merged.Hdr != nil {
		snap := merged.Hdr.Snapshot()
		r.Latency = &snap
	}
	return r
}

// WriteSummary renders a human-readable summary to w, in the register of
// hey.go's own plain-text report: a handful of labeled lines, then
// optional breakdown tables.
func (r *Report) WriteSummary(w io.Writer) {
	rps := float64(0)
	if r.Elapsed > 0 {
		rps = float64(r.OK) / r.Elapsed.Seconds()
	}

	fmt.Fprintf(w, "\nSummary:\n")
	fmt.Fprintf(w, "  URL:           %s\n", r.URL)
	fmt.Fprintf(w, "  Address:       %s\n", r.Addr)
	fmt.Fprintf(w, "  HTTP version:  %s\n", r.Protocol)
	fmt.Fprintf(w, "  Method:        %s\n", r.Method)
	fmt.Fprintf(w, "  Keep-alive:    %t\n", r.KeepAlive)
	fmt.Fprintf(w, "  Threads:       %d\n", r.Threads)
	fmt.Fprintf(w, "  Concurrency:   %d\n", r.Concurrency)
	fmt.Fprintf(w, "  Duration:      %s (configured %s)\n", r.Elapsed.Round(time.Millisecond), r.ConfiguredDuration)
	if r.Timeout > 0 {
		fmt.Fprintf(w, "  Timeout:       %s\n", r.Timeout)
	}
	fmt.Fprintf(w, "  Requests/sec:  %.2f\n", rps)
	fmt.Fprintf(w, "  Total ok:      %d\n", r.OK)
	fmt.Fprintf(w, "  Total errors:  %d\n", r.Errors.Total())
	fmt.Fprintf(w, "  Data read:     %s\n", units.BytesSize(float64(r.Read)))
	fmt.Fprintf(w, "  Data written:  %s\n", units.BytesSize(float64(r.Write)))

	if r.Latency != nil {
		fmt.Fprintf(w, "\nLatency distribution:\n")
		fmt.Fprintf(w, "  min    %s\n", r.Latency.Min)
		fmt.Fprintf(w, "  mean   %s\n", r.Latency.Mean)
		fmt.Fprintf(w, "  stddev %s\n", r.Latency.StdDev)
		fmt.Fprintf(w, "  p50    %s\n", r.Latency.P50)
		fmt.Fprintf(w, "  p75    %s\n", r.Latency.P75)
		fmt.Fprintf(w, "  p90    %s\n", r.Latency.P90)
		fmt.Fprintf(w, "  p99    %s\n", r.Latency.P99)
		fmt.Fprintf(w, "  p99.9  %s\n", r.Latency.P999)
		fmt.Fprintf(w, "  p99.99 %s\n", r.Latency.P9999)
		fmt.Fprintf(w, "  max    %s\n", r.Latency.Max)
	}

	if r.Errors.Total() > 0 {
		fmt.Fprintf(w, "\nError distribution:\n")
		r.Errors.Iter(func(kind errkind.Kind, count uint64) {
			fmt.Fprintf(w, "  [%s]\t%d\n", kind, count)
		})
	}

	if r.OK > 0 {
		fmt.Fprintf(w, "\nStatus code distribution:\n")
		r.Statuses.Iter(func(status uint16, count uint64) {
			fmt.Fprintf(w, "  [%d]\t%d responses\n", status, count)
		})
	}
}
