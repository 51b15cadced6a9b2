package config

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/emberload/ember/h2"
)

// Protocol selects which of the two request drivers a run uses.
type Protocol int

const (
	H1 Protocol = iota
	H2
)

func (p Protocol) String() string {
	if p == H2 {
		return "h2"
	}
	return "http/1.1"
}

// RunConfig is the fully resolved, immutable value the core consumes
// (spec.md §3 and §6). Built once by Resolve; never mutated after.
type RunConfig struct {
	URL        *url.URL
	Addr       string // resolved host:port to dial
	Protocol   Protocol
	Threads    int
	Concurrency int
	KeepAlive  bool
	Timeout    time.Duration // 0 means disabled
	Duration   time.Duration
	TLS        *tls.Config // nil for plaintext
	Method     string
	BodyLen    int
	Latency    bool

	H1ReqBuf    []byte
	H2Template  *h2.Template
	H2Transport *http2.Transport
}

// headerLine matches "Key: Value", the same shape hey.go's headerRegexp
// validates -H flags against.
var headerLine = regexp.MustCompile(`^([\w-]+):\s*(.+)$`)

// Resolve validates and assembles a RunConfig from parsed Args. Every
// failure here is a spec.md §7 "configuration error": it aborts before
// the measurement starts and is wrapped with %w so main can log a full
// context chain.
func Resolve(a *Args) (*RunConfig, error) {
	if a.Threads < 1 {
		return nil, fmt.Errorf("--threads must be >= 1, got %d", a.Threads)
	}
	if a.Concurrency < 1 {
		return nil, fmt.Errorf("--concurrency must be >= 1, got %d", a.Concurrency)
	}

	u, err := url.Parse(a.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing URL %q: %w", a.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q: only http and https are supported", u.Scheme)
	}

	dur, err := ParseDuration(a.Duration)
	if err != nil {
		return nil, err
	}
	if dur <= 0 {
		return nil, fmt.Errorf("--duration must be > 0, got %s", a.Duration)
	}

	var timeout time.Duration
	if a.Timeout != "" {
		timeout, err = ParseDuration(a.Timeout)
		if err != nil {
			return nil, err
		}
	}

	body, err := loadBody(a.Body)
	if err != nil {
		return nil, err
	}

	headers, err := parseHeaders(a.Headers)
	if err != nil {
		return nil, err
	}

	host := u.Hostname()
	port := u.Port()
	useTLS := u.Scheme == "https"
	if port == "" {
		if useTLS {
			port = "443"
		} else {
			port = "80"
		}
	}

	ips, err := net.DefaultResolver.LookupHost(context.Background(), host)
	if err != nil {
		return nil, fmt.Errorf("resolving host %q: %w", host, err)
	}
	addr := net.JoinHostPort(ips[0], port)

	rc := &RunConfig{
		URL:         u,
		Addr:        addr,
		Threads:     a.Threads,
		Concurrency: a.Concurrency,
		KeepAlive:   !a.DisableKeepAlive,
		Timeout:     timeout,
		Duration:    dur,
		Method:      strings.ToUpper(a.Method),
		BodyLen:     len(body),
		Latency:     a.Latency,
	}

	if useTLS {
		alpn := []string{"http/1.1"}
		if a.H2 {
			alpn = []string{"h2", "http/1.1"}
		}
		rc.TLS = &tls.Config{
			ServerName: host,
			NextProtos: alpn,
			MinVersion: tls.VersionTLS12,
		}
	}

	if a.H2 {
		rc.Protocol = H2
		rc.H2Template = &h2.Template{
			Method: rc.Method,
			URL:    u.String(),
			Header: buildHTTPHeader(headers, rc.Method, u, len(body)),
			Body:   body,
		}
		rc.H2Transport = &http2.Transport{
			TLSClientConfig: rc.TLS,
		}
		if !useTLS {
			// h2c: HTTP/2 over plaintext TCP. The runner hands an already
			// connected net.Conn to NewClientConn, which does not call this
			// dialer; if the transport does dial, it opens plain TCP in
			// place of a TLS connection.
			rc.H2Transport.AllowHTTP = true
			rc.H2Transport.DialTLSContext = func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
				return net.Dial(network, addr)
			}
		}
	} else {
		rc.Protocol = H1
		rc.H1ReqBuf = buildH1Request(rc.Method, u, host, body, headers, rc.KeepAlive)
	}

	return rc, nil
}

// parseHeaders validates and splits repeatable "Key: Value" header flags.
func parseHeaders(raw []string) ([][2]string, error) {
	headers := make([][2]string, 0, len(raw))
	for _, h := range raw {
		if h == "" {
			continue
		}
		m := headerLine.FindStringSubmatch(h)
		if m == nil {
			return nil, fmt.Errorf("malformed header %q: expected 'Key: Value'", h)
		}
		headers = append(headers, [2]string{m[1], m[2]})
	}
	return headers, nil
}

// buildH1Request pre-encodes the entire HTTP/1.1 request wire image per
// spec.md §6: request line, host, content-length, user headers, an
// optional connection: close hint, the terminating CRLFCRLF, and the body.
// This is produced once, before the measurement window starts; the core
// (h1.SendRequest) writes it verbatim on every request attempt.
func buildH1Request(method string, u *url.URL, host string, body []byte, headers [][2]string, keepAlive bool) []byte {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, path)
	fmt.Fprintf(&b, "host: %s\r\n", host)
	fmt.Fprintf(&b, "content-length: %d\r\n", len(body))
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	if !keepAlive {
		b.WriteString("connection: close\r\n")
	}
	b.WriteString("\r\n")
	b.Write(body)
	return b.Bytes()
}

// buildHTTPHeader turns the repeatable --header flags into an http.Header
// for the HTTP/2 request template, setting content-length the same way
// buildH1Request does.
func buildHTTPHeader(headers [][2]string, method string, u *url.URL, bodyLen int) http.Header {
	h := make(http.Header, len(headers)+1)
	for _, kv := range headers {
		h.Add(kv[0], kv[1])
	}
	h.Set("content-length", strconv.Itoa(bodyLen))
	return h
}
