package h2

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// captureSink is a minimal statuscount.Sink for asserting which status
// SendRequest recorded.
type captureSink struct{ status int }

func (c *captureSink) Record(status int) error {
	c.status = status
	return nil
}

// h2cTransport builds a plaintext (h2c) *http2.Transport the way
// config.Resolve's h2c branch does, so Dial can drive a raw net.Conn
// without a TLS handshake.
func h2cTransport() *http2.Transport {
	return &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
			return net.Dial(network, addr)
		},
	}
}

func TestSendRequestRoundTrip(t *testing.T) {
	handler := h2c.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hello"))
	}), &http2.Server{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	d, err := Dial(h2cTransport(), conn)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	tmpl := &Template{Method: "GET", URL: srv.URL, Header: http.Header{}}
	var sink captureSink
	scratch := make([]byte, 4096)
	if err := d.SendRequest(context.Background(), tmpl, &sink, scratch); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if sink.status != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", sink.status, http.StatusTeapot)
	}
}

func TestSendRequestReusesConnectionForKeepAlive(t *testing.T) {
	var hits int
	handler := h2c.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}), &http2.Server{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	d, err := Dial(h2cTransport(), conn)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	tmpl := &Template{Method: "GET", URL: srv.URL, Header: http.Header{}}
	scratch := make([]byte, 4096)
	for i := 0; i < 3; i++ {
		if !d.CanTakeNewRequest() {
			t.Fatalf("CanTakeNewRequest() = false on request %d, want true", i)
		}
		var sink captureSink
		if err := d.SendRequest(context.Background(), tmpl, &sink, scratch); err != nil {
			t.Fatalf("SendRequest %d: %v", i, err)
		}
	}
	if hits != 3 {
		t.Fatalf("server saw %d requests over the one connection, want 3", hits)
	}
}

func TestSendRequestWithBody(t *testing.T) {
	var gotBody string
	handler := h2c.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}), &http2.Server{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	d, err := Dial(h2cTransport(), conn)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	tmpl := &Template{Method: "POST", URL: srv.URL, Header: http.Header{}, Body: []byte("payload")}
	var sink captureSink
	if err := d.SendRequest(context.Background(), tmpl, &sink, make([]byte, 64)); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if gotBody != "payload" {
		t.Fatalf("server saw body %q, want %q", gotBody, "payload")
	}
}
