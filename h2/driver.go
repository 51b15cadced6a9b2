// Package h2 drives one HTTP/2 connection using golang.org/x/net/http2's
// low-level http2.ClientConn directly, the way the pack's raw-frame H2
// strategy does (other_examples' h2-flood strategy calls
// transport.NewClientConn and cc.RoundTrip itself rather than going through
// net/http's RoundTripper pool). Unlike net/http's Transport, which hides
// connection lifecycle behind its own pool, driving the ClientConn directly
// lets the Connection Runner own reconnects itself, matching spec.md §4.3.
package h2

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"golang.org/x/net/http2"

	"github.com/emberload/ember/errkind"
	"github.com/emberload/ember/statuscount"
)

// Template is the request-factory contract spec.md §4.3 calls
// request_factory: a fixed method/URL/header set built once by the config
// layer, plus optional body bytes replayed on every call. Build produces a
// fresh *http.Request per call since an http.Request's body is single-use.
type Template struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Build returns a fresh request bound to ctx, with a fresh body reader when
// a body is configured.
func (t *Template) Build(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(t.Body) > 0 {
		body = bytes.NewReader(t.Body)
	}
	req, err := http.NewRequestWithContext(ctx, t.Method, t.URL, body)
	if err != nil {
		return nil, err
	}
	req.Header = t.Header.Clone()
	return req, nil
}

// Driver owns one HTTP/2 connection handle. It is not safe for concurrent
// use: like the Connection Runner that owns it, exactly one request is
// in flight on a Driver at a time.
type Driver struct {
	cc *http2.ClientConn
}

// Dial performs the HTTP/2 connection preface over conn (already
// TLS-handshaked by the caller when required) using the shared transport
// tr, and returns a Driver wrapping the resulting handle. Failure here is
// errkind.H2Handshake.
func Dial(tr *http2.Transport, conn net.Conn) (*Driver, error) {
	cc, err := tr.NewClientConn(conn)
	if err != nil {
		return nil, newErr(errkind.H2Handshake)
	}
	return &Driver{cc: cc}, nil
}

// Err wraps an errkind.Kind the same way h1.Err does.
type Err struct {
	Kind errkind.Kind
}

func (e *Err) Error() string { return "h2: " + e.Kind.String() }

func newErr(k errkind.Kind) error { return &Err{Kind: k} }

// CanTakeNewRequest reports whether the underlying connection will still
// accept a new stream, matching spec.md §4.4's "reuse the sender unless ...
// disabled" keep-alive check.
func (d *Driver) CanTakeNewRequest() bool {
	return d.cc.CanTakeNewRequest()
}

// SendRequest drives one request/response exchange to completion: it checks
// once that the connection can accept a new stream (failing with H2Ready
// at once if not; it does not wait for one to free up), submits the request
// built from tmpl, awaits the response head, records its status, and drains
// the body through scratch, releasing flow control as the http2 package's
// Response.Body.Read already does internally.
func (d *Driver) SendRequest(ctx context.Context, tmpl *Template, sink statuscount.Sink, scratch []byte) error {
	if !d.cc.CanTakeNewRequest() {
		return newErr(errkind.H2Ready)
	}

	req, err := tmpl.Build(ctx)
	if err != nil {
		return newErr(errkind.H2Send)
	}

	resp, err := d.cc.RoundTrip(req)
	if err != nil {
		if ctx.Err() != nil {
			return newErr(errkind.Timeout)
		}
		return classifySendErr(err)
	}

	if recErr := sink.Record(resp.StatusCode); recErr != nil {
		resp.Body.Close()
		return newErr(errkind.H2Recv)
	}

	if err := drainBody(resp.Body, scratch); err != nil {
		if ctx.Err() != nil {
			return newErr(errkind.Timeout)
		}
		return newErr(errkind.H2Body)
	}
	return nil
}

// classifySendErr distinguishes a failure to submit the request (the
// stream never opened, or the connection refused it) from a failure
// awaiting the response head. golang.org/x/net/http2's RoundTrip does not
// expose which phase failed directly, so this inspects the sentinel errors
// it does export for the submission-side cases and otherwise attributes
// the failure to awaiting the response head.
func classifySendErr(err error) error {
	if errors.Is(err, http2.ErrClientConnClosed) || errors.Is(err, http2.ErrClientConnUnusable) || errors.Is(err, http2.ErrClientConnGotGoAway) {
		return newErr(errkind.H2Send)
	}
	var streamErr http2.StreamError
	if errors.As(err, &streamErr) {
		return newErr(errkind.H2Send)
	}
	return newErr(errkind.H2Recv)
}

// drainBody reads body to EOF through scratch, discarding every byte
// without retaining it, then closes it.
func drainBody(body io.ReadCloser, scratch []byte) error {
	defer body.Close()
	for {
		_, err := body.Read(scratch)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
