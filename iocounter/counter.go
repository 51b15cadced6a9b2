// Package iocounter provides a transparent byte-counting wrapper around a
// net.Conn, the Go analogue of the Rust original's CounterStream. Unlike the
// Rust version, which holds mutable references directly into a shared
// ThreadResult because its scheduler is single-threaded per worker, this
// wrapper accumulates into two counters private to the one connection that
// owns it. The Connection Runner's HTTP/1 loop drains those private
// counters into the worker's result stream after every request/response
// exchange — see runner.Runner and worker.Worker for how that ownership
// handoff happens without shared mutable state. The HTTP/2 loop does not
// wrap its connection in a Stream, so HTTP/2 traffic is not counted, and
// bytes of the TLS handshake (done before wrapping) are not counted either.
package iocounter

import "net"

// Stream wraps a net.Conn and counts every byte that actually crosses the
// transport boundary. It introduces no buffering: Read and Write forward
// directly to the inner connection.
type Stream struct {
	net.Conn
	read  uint64
	write uint64
}

// New wraps conn in a Stream with its counters reset to zero.
func New(conn net.Conn) *Stream {
	return &Stream{Conn: conn}
}

// Read forwards to the inner connection and counts bytes actually read.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.Conn.Read(p)
	s.read += uint64(n)
	return n, err
}

// Write forwards to the inner connection and counts bytes actually written.
func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.Conn.Write(p)
	s.write += uint64(n)
	return n, err
}

// Counts returns the cumulative (read, write) byte totals observed so far.
func (s *Stream) Counts() (read, write uint64) {
	return s.read, s.write
}

// Take returns the cumulative totals and resets both counters to zero, used
// by the runner to emit per-exchange deltas without double-counting across
// calls.
func (s *Stream) Take() (read, write uint64) {
	read, write = s.read, s.write
	s.read, s.write = 0, 0
	return
}
