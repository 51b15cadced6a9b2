// Package h1 hand-rolls the HTTP/1.1 response consumer: it writes a
// pre-encoded request, parses the response head incrementally over a
// bounded buffer, disposes of the body per its framing, and reports whether
// the connection may be reused. Nothing here uses net/http's client or
// transport — the spec calls for byte-level control over what is read and
// counted, which net/http's abstractions hide.
//
// Per-request timeouts are not this package's concern: the caller sets a
// read/write deadline on the connection before calling SendRequest (see
// runner.Runner), and any I/O error this package observes after a deadline
// has passed surfaces here as a net.Error with Timeout() true, which
// SendRequest classifies as errkind.Timeout instead of Read/Write/ReadBody.
package h1

import (
	"errors"
	"io"
	"net"

	"github.com/emberload/ember/errkind"
	"github.com/emberload/ember/statuscount"
)

// HeadMax bounds how many bytes of a response head this consumer will
// buffer before giving up. Chosen at the low end of the spec's 64-128KiB
// range: generous for real-world header sets, small enough to keep the
// per-call stack allocation cheap.
const HeadMax = 64 * 1024

// scratchSize bounds the disposal buffer used to discard response bodies
// without retaining their contents.
const scratchSize = 512 * 1024

// Scratch is a reusable body-disposal buffer. One Scratch must not be used
// by two goroutines at once; each Connection Runner allocates its own (see
// runner.New), so no two runner goroutines ever share one.
// The zero value is not usable — construct with NewScratch.
type Scratch struct {
	buf []byte
}

// NewScratch allocates a disposal buffer.
func NewScratch() *Scratch {
	return &Scratch{buf: make([]byte, scratchSize)}
}

// Conn is the minimal transport contract the consumer needs.
type Conn interface {
	io.Reader
	io.Writer
}

// Err wraps an errkind.Kind so callers can classify failures by type
// instead of sentinel values.
type Err struct {
	Kind errkind.Kind
}

func (e *Err) Error() string { return "h1: " + e.Kind.String() }

func newErr(k errkind.Kind) error { return &Err{Kind: k} }

// classifyIOErr maps a raw I/O error to errkind.Timeout if it is a deadline
// expiry, otherwise to the fallback kind supplied by the caller.
func classifyIOErr(err error, fallback errkind.Kind) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newErr(errkind.Timeout)
	}
	return newErr(fallback)
}

// classifyBodyErr is classifyIOErr's counterpart for body-disposal errors,
// which may already carry a definitive Kind (a malformed chunk-size line is
// errkind.Parse, not errkind.ReadBody, regardless of where in disposal it
// was noticed).
func classifyBodyErr(err error) error {
	var classified *Err
	if errors.As(err, &classified) {
		return err
	}
	return classifyIOErr(err, errkind.ReadBody)
}

// SendRequest writes reqBuf (a fully pre-encoded request line + headers +
// optional body) to stream, reads and classifies the response, disposes of
// its body, and returns whether the connection remains usable for the next
// request on keepalive success.
//
// status is recorded via sink the moment the head is fully parsed. A
// subsequent body-disposal failure does not retract that status count —
// the exchange produced a valid head, it just could not be cleanly
// finished, matching spec.md's invariant that the Status Counter only ever
// reflects heads that parsed successfully.
func SendRequest(
	stream Conn,
	reqBuf []byte,
	keepaliveAllowed bool,
	sink statuscount.Sink,
	sc *Scratch,
) (isKeepAlive bool, err error) {
	if _, err := writeFull(stream, reqBuf); err != nil {
		return false, classifyIOErr(err, errkind.Write)
	}

	var head [HeadMax]byte
	var n int

	for {
		read, err := stream.Read(head[n:])
		if read == 0 {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return false, classifyIOErr(err, errkind.Read)
		}
		n += read

		parsed, headLen, ok := parseHead(head[:n])
		if !ok {
			// A full buffer, or a terminated head that still does not
			// parse (malformed status line), can never become valid.
			if n == len(head) || findHeadEnd(head[:n]) >= 0 {
				return false, newErr(errkind.Parse)
			}
			continue
		}
		if recErr := sink.Record(int(parsed.status)); recErr != nil {
			return false, newErr(errkind.Parse)
		}
		if parsed.hasLen && !parsed.lenValid {
			return false, newErr(errkind.Parse)
		}

		keepAlive := decideKeepAlive(keepaliveAllowed, parsed)
		framing, contentLength := decideFraming(parsed)

		switch framing {
		case framingContentLength:
			carried := int64(n - headLen)
			toRead := contentLength - carried
			if toRead < 0 {
				toRead = 0
			}
			if toRead == 0 {
				return keepAlive, nil
			}
			if err := readAndDispose(stream, toRead, sc); err != nil {
				return false, classifyBodyErr(err)
			}
			return keepAlive, nil

		case framingChunked:
			if err := consumeChunked(stream, head[headLen:n]); err != nil {
				return false, classifyBodyErr(err)
			}
			return keepAlive, nil

		case framingNone:
			return keepAlive, nil

		default: // framingReadToClose
			if err := readToEnd(stream, sc); err != nil {
				return false, classifyBodyErr(err)
			}
			return false, nil
		}
	}
}

func writeFull(w io.Writer, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// readAndDispose reads exactly `take` bytes through the scratch buffer,
// discarding them.
func readAndDispose(r io.Reader, take int64, sc *Scratch) error {
	buf := sc.buf
	var read int64
	for read < take {
		chunk := buf
		remaining := take - read
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		n, err := r.Read(chunk)
		if n == 0 {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
		read += int64(n)
		if err != nil && err != io.EOF {
			return err
		}
	}
	return nil
}

// readToEnd drains r until EOF, discarding everything through the scratch
// buffer.
func readToEnd(r io.Reader, sc *Scratch) error {
	buf := sc.buf
	for {
		_, err := r.Read(buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
