package wire

import (
	"strconv"
	"strings"
	"time"

	mverrors "github.com/SoheilMV/MVNet/errors"
)

// initialLineBufferSize and its geometric growth match spec.md §4.4:
// a 1000-byte initial buffer that doubles on overflow.
const initialLineBufferSize = 1000

// waitPollInterval is the spin-loop granularity spec.md §4.4 specifies
// while waiting for more socket data on a zero-byte, non-EOF read.
const waitPollInterval = 10 * time.Millisecond

// ReceiverHelper is a line-oriented buffered reader over a Stream, with
// a residual-first read discipline: bytes buffered while hunting for a
// line boundary are drained before the underlying socket is touched
// again, because the status/header reader may have over-read into the
// body (spec.md §4.4).
type ReceiverHelper struct {
	s           Stream
	residual    []byte // unconsumed bytes already pulled off the socket
	lineBuf     []byte // growable scratch buffer for read_line
	readTimeout time.Duration
}

func NewReceiverHelper(s Stream, readTimeout time.Duration) *ReceiverHelper {
	return &ReceiverHelper{
		s:           s,
		lineBuf:     make([]byte, 0, initialLineBufferSize),
		readTimeout: readTimeout,
	}
}

// fill reads more bytes from the socket into residual, waiting out
// zero-byte non-EOF reads per the spin-loop rule.
func (r *ReceiverHelper) fill() error {
	buf := make([]byte, 4096)
	deadline := time.Now().Add(r.readTimeout)
	for {
		if r.readTimeout > 0 {
			r.s.SetDeadline(time.Now().Add(r.readTimeout))
		}
		n, err := r.s.Read(buf)
		if n > 0 {
			r.residual = append(r.residual, buf[:n]...)
			return nil
		}
		if err != nil {
			return err
		}
		// Zero bytes, no error: wait for more data to become available.
		if r.readTimeout > 0 && time.Now().After(deadline) {
			return mverrors.NewReceiveFailure("wait timeout", nil)
		}
		time.Sleep(waitPollInterval)
	}
}

// ReadLine returns bytes through and including the first '\n' (or
// through EOF if none is found), ASCII-decoded as a string.
func (r *ReceiverHelper) ReadLine() (string, error) {
	r.lineBuf = r.lineBuf[:0]
	for {
		if idx := indexByte(r.residual, '\n'); idx >= 0 {
			r.lineBuf = append(r.lineBuf, r.residual[:idx+1]...)
			r.residual = r.residual[idx+1:]
			return string(r.lineBuf), nil
		}
		r.lineBuf = append(r.lineBuf, r.residual...)
		r.residual = r.residual[:0]

		if len(r.lineBuf) >= cap(r.lineBuf) {
			grown := make([]byte, len(r.lineBuf), cap(r.lineBuf)*2)
			copy(grown, r.lineBuf)
			r.lineBuf = grown
		}

		if err := r.fill(); err != nil {
			if len(r.lineBuf) > 0 {
				return string(r.lineBuf), nil // EOF-terminated final line
			}
			return "", err
		}
	}
}

// Read drains residual bytes before delegating to the socket — the
// discipline that lets the status/header reader's over-read become the
// start of the body stream.
func (r *ReceiverHelper) Read(dst []byte) (int, error) {
	if len(r.residual) > 0 {
		n := copy(dst, r.residual)
		r.residual = r.residual[n:]
		return n, nil
	}
	if r.readTimeout > 0 {
		r.s.SetDeadline(time.Now().Add(r.readTimeout))
	}
	return r.s.Read(dst)
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// StatusLine is the parsed first line of a response.
type StatusLine struct {
	Proto      string
	StatusCode int
	Reason     string
}

// ReadStatusLine reads lines, tolerating leading blank lines (stray
// CRLFs), and parses "HTTP/<ver> <code> <reason>". A read that fails
// before any line arrives, or a final line holding nothing but a bare
// CR, fails with EmptyBody set, the trigger for the keep-alive
// controller's silent reconnect. A read that fails after one or more
// blank lines is a plain ReceiveFailure.
func ReadStatusLine(r *ReceiverHelper) (StatusLine, error) {
	var line string
	sawAny := false
	for {
		l, err := r.ReadLine()
		if err != nil {
			if !sawAny {
				return StatusLine{}, mverrors.NewEmptyBodyFailure("connection closed before status line")
			}
			return StatusLine{}, mverrors.NewReceiveFailure("failed reading status line", err)
		}
		sawAny = true
		trimmed := strings.TrimRight(l, "\r\n")
		if trimmed == "" {
			if strings.HasSuffix(l, "\n") {
				continue // tolerate a stray leading blank line
			}
			return StatusLine{}, mverrors.NewEmptyBodyFailure("empty response")
		}
		line = trimmed
		break
	}

	if !strings.HasPrefix(line, "HTTP/") {
		return StatusLine{}, mverrors.NewReceiveFailure("malformed status line: "+line, nil)
	}
	rest := line[len("HTTP/"):]
	sp := strings.IndexByte(rest, ' ')
	if sp < 0 {
		return StatusLine{}, mverrors.NewReceiveFailure("malformed status line: "+line, nil)
	}
	proto := rest[:sp]
	rest = strings.TrimLeft(rest[sp+1:], " ")

	var codeStr, reason string
	if sp2 := strings.IndexByte(rest, ' '); sp2 >= 0 {
		codeStr, reason = rest[:sp2], rest[sp2+1:]
	} else {
		codeStr, reason = rest, ""
	}
	code, err := strconv.Atoi(strings.TrimSpace(codeStr))
	if err != nil {
		return StatusLine{}, mverrors.NewReceiveFailure("malformed status code: "+codeStr, err)
	}

	return StatusLine{Proto: "HTTP/" + proto, StatusCode: code, Reason: reason}, nil
}

// HeaderLine is one parsed "Key: Value" pair, order-preserved.
type HeaderLine struct {
	Key   string
	Value string
}

// ReadHeaderLines reads until a blank line, splitting each line on the
// first ':' and trimming the value of spaces/tabs/CR/LF.
func ReadHeaderLines(r *ReceiverHelper) ([]HeaderLine, error) {
	var out []HeaderLine
	for {
		l, err := r.ReadLine()
		if err != nil {
			return nil, mverrors.NewReceiveFailure("failed reading headers", err)
		}
		trimmed := strings.TrimRight(l, "\r\n")
		if trimmed == "" {
			return out, nil
		}
		idx := strings.IndexByte(trimmed, ':')
		if idx < 0 {
			return nil, mverrors.NewReceiveFailure("malformed header line: "+trimmed, nil)
		}
		key := trimmed[:idx]
		value := strings.Trim(trimmed[idx+1:], " \t\r\n")
		out = append(out, HeaderLine{Key: key, Value: value})
	}
}
