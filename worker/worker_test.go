package worker

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emberload/ember/config"
	"github.com/emberload/ember/errkind"
	"github.com/emberload/ember/latency"
	"github.com/emberload/ember/runner"
)

// serveKeepAlive accepts connections on ln and answers every request on
// each with a fixed, zero-body 200 OK until the connection is closed by the
// client (which runner.Runner.Run's context.AfterFunc does once ctx expires).
func serveKeepAlive(t *testing.T, ln net.Listener) {
	t.Helper()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n == 0 && err != nil {
						return
					}
					if _, err := c.Write([]byte("HTTP/1.1 200 OK\r\ncontent-length: 0\r\n\r\n")); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
}

func TestWorkerRunAggregatesOutcomesAcrossConnections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	serveKeepAlive(t, ln)

	cfg := &config.RunConfig{
		Protocol:  config.H1,
		Addr:      ln.Addr().String(),
		KeepAlive: true,
		H1ReqBuf:  []byte("GET / HTTP/1.1\r\nhost: x\r\ncontent-length: 0\r\n\r\n"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w := New(cfg, 3)
	var ready sync.WaitGroup
	ready.Add(1)
	start := make(chan struct{})
	close(start)

	done := make(chan ThreadResult)
	go func() { done <- w.Run(ctx, &ready, start) }()
	ready.Wait()

	result := <-done
	if result.OK == 0 {
		t.Fatalf("OK = 0, want at least one completed request over %v", 100*time.Millisecond)
	}
	if result.Err.Total() != 0 {
		t.Fatalf("Err.Total() = %d, want 0 on a healthy server", result.Err.Total())
	}
	if result.Statuses.Sum() != result.OK {
		t.Fatalf("Statuses.Sum() = %d, want %d to match OK", result.Statuses.Sum(), result.OK)
	}
}

func TestThreadResultJoinIsOrderIndependent(t *testing.T) {
	a := ThreadResult{OK: 3, Read: 100, Write: 50}
	a.Err.Record(errkind.Connect)
	a.Statuses.RecordUnchecked(200)

	b := ThreadResult{OK: 2, Read: 20, Write: 10}
	b.Err.Record(errkind.Timeout)
	b.Statuses.RecordUnchecked(500)

	ab := a
	ab.Join(b)

	ba := b
	ba.Join(a)

	if ab.OK != ba.OK || ab.Read != ba.Read || ab.Write != ba.Write {
		t.Fatalf("Join is not commutative on scalar fields: ab=%+v ba=%+v", ab, ba)
	}
	if ab.Err.Total() != ba.Err.Total() {
		t.Fatalf("Join is not commutative on Err: ab=%+v ba=%+v", ab.Err, ba.Err)
	}
	if ab.Statuses.Sum() != ba.Statuses.Sum() {
		t.Fatalf("Join is not commutative on Statuses: ab=%+v ba=%+v", ab.Statuses, ba.Statuses)
	}
}

func TestThreadResultJoinMergesHistogramsWhenEitherSideHasOne(t *testing.T) {
	var a ThreadResult
	var b ThreadResult
	b.Hdr = latency.New()
	b.Hdr.Record(10 * time.Millisecond)

	a.Join(b)
	if a.Hdr == nil {
		t.Fatalf("Join did not adopt other's histogram when the receiver had none")
	}
}

func TestApplyRecordsErrorsAndSuccesses(t *testing.T) {
	var result ThreadResult
	apply(&result, runner.Outcome{OK: true, Status: 204, Read: 10, Write: 5})
	apply(&result, runner.Outcome{OK: false, Kind: errkind.Read})

	if result.OK != 1 {
		t.Fatalf("OK = %d, want 1", result.OK)
	}
	if result.Err.Count(errkind.Read) != 1 {
		t.Fatalf("Err[Read] = %d, want 1", result.Err.Count(errkind.Read))
	}
	if result.Statuses.Sum() != 1 {
		t.Fatalf("Statuses.Sum() = %d, want 1", result.Statuses.Sum())
	}
}
