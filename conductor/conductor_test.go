package conductor

import (
	"context"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/emberload/ember/config"
)

func serveOnce(t *testing.T, ln net.Listener) {
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

func TestRunProducesAReportWithinTheConfiguredDuration(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	serveOnce(t, ln)

	u, _ := url.Parse("http://" + ln.Addr().String() + "/")
	cfg := &config.RunConfig{
		URL:         u,
		Addr:        ln.Addr().String(),
		Protocol:    config.H1,
		Threads:     2,
		Concurrency: 4,
		KeepAlive:   true,
		Duration:    80 * time.Millisecond,
		Method:      "GET",
		H1ReqBuf:    []byte("GET / HTTP/1.1\r\nhost: x\r\ncontent-length: 0\r\n\r\n"),
	}

	start := time.Now()
	rep, err := Run(context.Background(), cfg)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("Run took %s, want it bounded by the configured duration", elapsed)
	}
	if rep.OK == 0 {
		t.Fatalf("report.OK = 0, want at least one completed request")
	}
	if rep.Threads != 2 || rep.Concurrency != 4 {
		t.Fatalf("report Threads/Concurrency = %d/%d, want 2/4", rep.Threads, rep.Concurrency)
	}
}
