package h1

import "testing"

func TestParseHeadBasic(t *testing.T) {
	buf := []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")
	h, headLen, ok := parseHead(buf)
	if !ok {
		t.Fatalf("parseHead: not ok")
	}
	if h.status != 200 {
		t.Fatalf("status = %d, want 200", h.status)
	}
	if !h.hasLen || !h.lenValid || h.contentLen != 5 {
		t.Fatalf("content-length not parsed correctly: %+v", h)
	}
	if headLen != len("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n") {
		t.Fatalf("headLen = %d, want %d", headLen, len("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n"))
	}
}

func TestParseHeadIncomplete(t *testing.T) {
	buf := []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n")
	_, _, ok := parseHead(buf)
	if ok {
		t.Fatalf("parseHead on a head missing its terminator reported ok")
	}
}

func TestParseHeadObsoleteLineFolding(t *testing.T) {
	buf := []byte("HTTP/1.1 200 OK\r\nX-Thing: a\r\n b\r\n\r\n")
	h, _, ok := parseHead(buf)
	if !ok {
		t.Fatalf("parseHead with folded header: not ok")
	}
	if h.status != 200 {
		t.Fatalf("status = %d, want 200", h.status)
	}
}

func TestParseHeadMalformedHeaderIgnored(t *testing.T) {
	buf := []byte("HTTP/1.1 200 OK\r\nnocolonhere\r\nContent-Length: 0\r\n\r\n")
	h, _, ok := parseHead(buf)
	if !ok {
		t.Fatalf("parseHead: not ok")
	}
	if !h.hasLen || h.contentLen != 0 {
		t.Fatalf("expected content-length 0 despite malformed header line, got %+v", h)
	}
}

func TestDecideKeepAlive(t *testing.T) {
	cases := []struct {
		name         string
		callerAllows bool
		minor        int
		connection   string
		hasConn      bool
		want         bool
	}{
		{"caller disables", false, 1, "", false, false},
		{"http1.0 defaults closed", true, 0, "", false, false},
		{"absent header defaults open", true, 1, "", false, true},
		{"close token closes", true, 1, "close", true, false},
		{"case-insensitive close", true, 1, "Close", true, false},
		{"keep-alive token stays open", true, 1, "keep-alive", true, true},
		{"comma list with close", true, 1, "foo, close", true, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := head{minorVersion: c.minor, connection: c.connection, hasConn: c.hasConn}
			got := decideKeepAlive(c.callerAllows, h)
			if got != c.want {
				t.Fatalf("decideKeepAlive() = %t, want %t", got, c.want)
			}
		})
	}
}

func TestDecideFraming(t *testing.T) {
	cases := []struct {
		name string
		h    head
		want framing
	}{
		{"content-length wins", head{hasLen: true, lenValid: true, contentLen: 10, chunked: true}, framingContentLength},
		{"chunked when no length", head{chunked: true}, framingChunked},
		{"204 no body", head{status: 204}, framingNone},
		{"1xx no body", head{status: 101}, framingNone},
		{"3xx no body", head{status: 302}, framingNone},
		{"200 with no framing reads to close", head{status: 200}, framingReadToClose},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, _ := decideFraming(c.h)
			if got != c.want {
				t.Fatalf("decideFraming() = %v, want %v", got, c.want)
			}
		})
	}
}
