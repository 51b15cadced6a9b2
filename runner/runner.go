// Package runner implements the Connection Runner: one cooperative task
// per logical connection that connects, optionally TLS-handshakes, drives
// a request loop in the configured protocol, classifies failures, and
// reconnects, per spec.md §4.4. In Go the natural cooperative task is a
// goroutine; blocking net.Conn calls are what actually suspend it, the
// same suspension points spec.md §5 names.
package runner

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/emberload/ember/config"
	"github.com/emberload/ember/errkind"
	"github.com/emberload/ember/h1"
	"github.com/emberload/ember/h2"
	"github.com/emberload/ember/iocounter"
	"github.com/emberload/ember/latency"
	"github.com/emberload/ember/statuscount"
)

// Outcome is one emitted event per attempted request/response exchange,
// the unit the worker's single aggregating goroutine folds into its
// ThreadResult. Exactly one Outcome is emitted per attempt that is not
// itself abandoned by a stop signal, satisfying spec.md §8's invariant 1
// (ok + total_errors == attempted_request_starts).
type Outcome struct {
	OK         bool
	Kind       errkind.Kind // valid only when !OK
	Status     int          // valid only when OK
	Read       uint64
	Write      uint64
	HasLatency bool
	Latency    time.Duration
}

// statusCapture is a private, single-writer implementation of
// statuscount.Sink: it exists so h1.SendRequest and h2.Driver.SendRequest
// can record a status the way spec.md §4.2/§4.3 describe without handing
// them a pointer into the worker's shared Statuses counter, which (unlike
// the Rust original's single-threaded-per-worker scheduler) may have
// other Runner goroutines writing to it concurrently in this port. See
// worker.Worker for where the captured value is folded in, single-writer,
// off the Outcome channel.
type statusCapture struct {
	status int
}

func (s *statusCapture) Record(status int) error {
	if status < 0 || status > 999 {
		return &statuscount.OutOfRangeError{Status: status}
	}
	s.status = status
	return nil
}

// Runner drives one connection's worth of requests for the life of the
// measurement window.
type Runner struct {
	cfg     *config.RunConfig
	events  chan<- Outcome
	hdr     *latency.Histogram // nil when latency recording is disabled
	scratch *h1.Scratch
	h2buf   []byte
}

// New builds a Runner. events is the owning worker's aggregation channel;
// hdr, when non-nil, is shared by every Runner on the worker and is safe
// for concurrent Record calls (see latency.Histogram).
func New(cfg *config.RunConfig, events chan<- Outcome, hdr *latency.Histogram) *Runner {
	return &Runner{
		cfg:     cfg,
		events:  events,
		hdr:     hdr,
		scratch: h1.NewScratch(),
		h2buf:   make([]byte, 32*1024),
	}
}

// Run executes the connect/request/reconnect loop until ctx is done. ctx
// carries both the measurement deadline and SIGINT cancellation (see
// conductor.Run); Run never returns before ctx is done except if the
// caller never intends to retry, which never happens here by design.
func (r *Runner) Run(ctx context.Context) {
	for ctx.Err() == nil {
		conn, err := r.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.emit(Outcome{Kind: err.(classified).kind()})
			continue
		}

		stop := context.AfterFunc(ctx, func() { conn.Close() })
		r.protocolLoop(ctx, conn)
		stop.Stop()
		conn.Close()
	}
}

// classified is satisfied by the sentinel errors connect/handshake return,
// letting Run recover the errkind.Kind to emit without a type switch at
// every call site.
type classified interface {
	kind() errkind.Kind
}

type classifiedErr errkind.Kind

func (c classifiedErr) Error() string   { return errkind.Kind(c).String() }
func (c classifiedErr) kind() errkind.Kind { return errkind.Kind(c) }

// connect opens TCP (and, if configured, TLS) to the target address.
func (r *Runner) connect(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", r.cfg.Addr)
	if err != nil {
		return nil, classifiedErr(errkind.Connect)
	}

	if r.cfg.TLS != nil {
		tconn := tls.Client(conn, r.cfg.TLS)
		if err := tconn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, classifiedErr(errkind.TlsHandshake)
		}
		return tconn, nil
	}
	return conn, nil
}

// protocolLoop drives requests on conn until a non-keepalive outcome, an
// error, or ctx cancellation ends the connection's useful life.
func (r *Runner) protocolLoop(ctx context.Context, conn net.Conn) {
	if r.cfg.Protocol == config.H2 {
		r.protocolLoopH2(ctx, conn)
		return
	}
	r.protocolLoopH1(ctx, conn)
}

func (r *Runner) protocolLoopH1(ctx context.Context, conn net.Conn) {
	stream := iocounter.New(conn)
	for ctx.Err() == nil {
		deadline, hasDeadline := r.requestDeadline()
		if hasDeadline {
			conn.SetDeadline(deadline)
		} else {
			conn.SetDeadline(time.Time{})
		}

		var started time.Time
		if r.cfg.Latency {
			started = time.Now()
		}

		var sink statusCapture
		keepAlive, err := h1.SendRequest(stream, r.cfg.H1ReqBuf, r.cfg.KeepAlive, &sink, r.scratch)
		read, write := stream.Take()

		if err != nil {
			if ctx.Err() != nil {
				return // abandoned: stop observed mid-request, nothing counted
			}
			kind := errkind.Read
			if e, ok := err.(*h1.Err); ok {
				kind = e.Kind
			}
			r.emit(Outcome{Kind: kind, Read: read, Write: write})
			return
		}

		out := Outcome{OK: true, Status: sink.status, Read: read, Write: write}
		if r.cfg.Latency {
			out.HasLatency = true
			out.Latency = time.Since(started)
			r.hdr.Record(out.Latency)
		}
		r.emit(out)

		if !keepAlive {
			return
		}
	}
}

func (r *Runner) protocolLoopH2(ctx context.Context, conn net.Conn) {
	d, err := h2.Dial(r.cfg.H2Transport, conn)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.emit(Outcome{Kind: errkind.H2Handshake})
		return
	}

	for ctx.Err() == nil {
		if !r.cfg.KeepAlive && !d.CanTakeNewRequest() {
			return
		}

		reqCtx := ctx
		var cancel context.CancelFunc
		if r.cfg.Timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		}

		var started time.Time
		if r.cfg.Latency {
			started = time.Now()
		}

		var sink statusCapture
		err := d.SendRequest(reqCtx, r.cfg.H2Template, &sink, r.h2buf)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			kind := errkind.H2Recv
			if e, ok := err.(*h2.Err); ok {
				kind = e.Kind
			}
			r.emit(Outcome{Kind: kind})
			return
		}

		out := Outcome{OK: true, Status: sink.status}
		if r.cfg.Latency {
			out.HasLatency = true
			out.Latency = time.Since(started)
			r.hdr.Record(out.Latency)
		}
		r.emit(out)

		if !r.cfg.KeepAlive {
			return
		}
	}
}

// requestDeadline returns the wall-clock deadline the connection should
// have set before the next request call: the configured per-request
// timeout when present, otherwise no deadline (the connection is still
// bounded by ctx's own deadline via the context.AfterFunc close in Run).
func (r *Runner) requestDeadline() (time.Time, bool) {
	if r.cfg.Timeout <= 0 {
		return time.Time{}, false
	}
	return time.Now().Add(r.cfg.Timeout), true
}

func (r *Runner) emit(o Outcome) {
	r.events <- o
}
