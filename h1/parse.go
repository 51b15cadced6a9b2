package h1

import (
	"strconv"
)

// head is the minimal set of fields SendRequest needs out of a parsed
// response head.
type head struct {
	status       uint16
	minorVersion int // 0 for HTTP/1.0, 1 for HTTP/1.1
	connection   string
	hasConn      bool
	contentLen   int64
	hasLen       bool
	lenValid     bool
	chunked      bool
}

// parseHead looks for a complete CRLFCRLF-terminated response head inside
// buf and, if found, parses the status line and headers permissively:
// header names may be followed by extra spaces, header lines may fold
// across multiple physical lines (obsolete line folding), and a single
// leading space before the first header is tolerated. Malformed individual
// header lines are skipped rather than rejected — only a malformed status
// line or a missing terminator is fatal.
//
// Returns ok=false when the head is not yet complete (caller should read
// more, or fail with Parse if the buffer is already full).
func parseHead(buf []byte) (h head, headLen int, ok bool) {
	end := findHeadEnd(buf)
	if end < 0 {
		return head{}, 0, false
	}

	lines := splitLines(buf[:end])
	if len(lines) == 0 {
		return head{}, 0, false
	}

	status, minor, ok := parseStatusLine(lines[0])
	if !ok {
		return head{}, 0, false
	}
	h.status = status
	h.minorVersion = minor

	headerLines := joinFolded(lines[1:])
	for _, line := range headerLines {
		name, value, ok := splitHeader(line)
		if !ok {
			continue // malformed header line: ignore, per spec permissiveness
		}
		switch {
		case equalFold(name, "connection"):
			h.connection = value
			h.hasConn = true
		case equalFold(name, "content-length"):
			h.hasLen = true
			n, err := strconv.ParseInt(trimSpace(value), 10, 64)
			if err != nil || n < 0 {
				h.lenValid = false
			} else {
				h.lenValid = true
				h.contentLen = n
			}
		case equalFold(name, "transfer-encoding"):
			if containsToken(value, "chunked") {
				h.chunked = true
			}
		}
	}

	return h, end, true
}

// framing is the disposal strategy decideFraming selects.
type framing int

const (
	framingContentLength framing = iota
	framingChunked
	framingNone
	framingReadToClose
)

// decideFraming implements spec.md §4.2 step 5's priority order.
func decideFraming(h head) (framing, int64) {
	if h.hasLen {
		if !h.lenValid {
			// Caller rejects this case as Parse before consulting framing.
			return framingReadToClose, 0
		}
		return framingContentLength, h.contentLen
	}
	if h.chunked {
		return framingChunked, 0
	}
	if isNoBodyStatus(h.status) {
		return framingNone, 0
	}
	return framingReadToClose, 0
}

func isNoBodyStatus(status uint16) bool {
	switch {
	case status >= 100 && status < 200:
		return true
	case status == 204 || status == 205:
		return true
	case status >= 300 && status < 400:
		return true
	default:
		return false
	}
}

// decideKeepAlive implements spec.md §4.2 step 4.
func decideKeepAlive(callerAllows bool, h head) bool {
	if !callerAllows || h.minorVersion == 0 {
		return false
	}
	if !h.hasConn {
		return true
	}
	for _, tok := range splitComma(h.connection) {
		if equalFold(trimSpace(tok), "close") {
			return false
		}
	}
	return true
}

// --- low-level byte scanning helpers, in the spirit of the teacher pack's
// hand-rolled HTTP/1 scanning (badu-http's chunk-line / hex-length helpers,
// rewritten here for response heads instead of chunk trailers). ---

func findHeadEnd(buf []byte) int {
	for i := 0; i+3 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' && buf[i+2] == '\r' && buf[i+3] == '\n' {
			return i + 4
		}
	}
	return -1
}

func splitLines(buf []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' {
			lines = append(lines, buf[start:i])
			start = i + 2
			i++
		}
	}
	if start < len(buf) {
		lines = append(lines, buf[start:])
	}
	return lines
}

// joinFolded merges obsolete line-folding continuations (a line starting
// with a space or tab) into the previous header line, and tolerates a
// leading blank/space-only line before the first real header.
func joinFolded(lines [][]byte) [][]byte {
	var out [][]byte
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(out) > 0 {
			merged := append(append([]byte{}, out[len(out)-1]...), ' ')
			merged = append(merged, trimLeadingSpace(line)...)
			out[len(out)-1] = merged
			continue
		}
		out = append(out, line)
	}
	return out
}

func parseStatusLine(line []byte) (status uint16, minor int, ok bool) {
	line = trimLeadingSpace(line)
	// "HTTP/1.x SP status SP reason"
	if len(line) < len("HTTP/1.x ") {
		return 0, 0, false
	}
	if line[0] != 'H' || line[1] != 'T' || line[2] != 'T' || line[3] != 'P' || line[4] != '/' || line[5] != '1' || line[6] != '.' {
		return 0, 0, false
	}
	switch line[7] {
	case '0':
		minor = 0
	case '1':
		minor = 1
	default:
		return 0, 0, false
	}
	rest := line[8:]
	rest = trimLeadingSpace(rest)
	if len(rest) < 3 {
		return 0, 0, false
	}
	n, err := strconv.Atoi(string(rest[:3]))
	if err != nil || n < 0 || n > 999 {
		return 0, 0, false
	}
	return uint16(n), minor, true
}

func splitHeader(line []byte) (name, value string, ok bool) {
	idx := -1
	for i, b := range line {
		if b == ':' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", "", false
	}
	name = trimSpace(string(line[:idx]))
	value = trimSpace(string(line[idx+1:]))
	if name == "" {
		return "", "", false
	}
	return name, value, true
}

func trimLeadingSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	return b
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isASCIISpace(s[start]) {
		start++
	}
	for end > start && isASCIISpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isASCIISpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func containsToken(value, token string) bool {
	for _, tok := range splitComma(value) {
		if equalFold(trimSpace(tok), token) {
			return true
		}
	}
	return false
}
