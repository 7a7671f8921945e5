package wire

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	mverrors "github.com/SoheilMV/MVNet/errors"
)

var emptyBody = io.NopCloser(strings.NewReader(""))

// framingInfo is the set of headers the body-framing decision tree
// (spec.md §4.4) inspects.
type framingInfo struct {
	contentEncoding  string // "", "gzip", or "deflate"; anything else is an error
	transferChunked  bool
	contentLength    int64
	hasContentLength bool
}

func classifyFraming(headers []HeaderLine) (framingInfo, error) {
	var fi framingInfo
	fi.contentLength = -1
	for _, h := range headers {
		switch strings.ToLower(h.Key) {
		case "content-encoding":
			enc := strings.ToLower(strings.TrimSpace(h.Value))
			if enc != "" && enc != "identity" && enc != "gzip" && enc != "deflate" {
				return fi, mverrors.NewReceiveFailure("unsupported Content-Encoding: "+h.Value, nil)
			}
			if enc != "identity" {
				fi.contentEncoding = enc
			}
		case "transfer-encoding":
			if strings.Contains(strings.ToLower(h.Value), "chunked") {
				fi.transferChunked = true
			}
		case "content-length":
			n, err := strconv.ParseInt(strings.TrimSpace(h.Value), 10, 64)
			if err == nil && n >= 0 {
				fi.contentLength = n
				fi.hasContentLength = true
			}
		}
	}
	return fi, nil
}

// limitedBodyReader reads exactly N bytes from a ReceiverHelper (the
// residual-then-socket reader), for the identity/Content-Length framing.
type limitedBodyReader struct {
	r         *ReceiverHelper
	remaining int64
}

func (l *limitedBodyReader) Read(b []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(b)) > l.remaining {
		b = b[:l.remaining]
	}
	n, err := l.r.Read(b)
	l.remaining -= int64(n)
	if err != nil {
		return n, mverrors.NewReceiveFailure("body read failed", err)
	}
	return n, nil
}

// toEOFReader reads until the underlying stream signals EOF (no
// Content-Length, no chunking: spec.md §4.4 "read to EOF").
type toEOFReader struct {
	r *ReceiverHelper
}

func (t *toEOFReader) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if err != nil {
		if isClosedOrEOF(err) {
			return n, io.EOF
		}
		return n, mverrors.NewReceiveFailure("body read failed", err)
	}
	return n, nil
}

func isClosedOrEOF(err error) bool {
	return err == io.EOF || err.Error() == "EOF"
}

// bodyReadCloser wraps an io.Reader with a Close that also releases the
// ReceiverHelper's owning layer (the keep-alive controller decides
// whether the underlying stream itself gets torn down), and tracks
// whether the body was read to completion — a slot whose body was
// abandoned mid-stream cannot be safely handed back to the pool, since
// its leftover bytes would corrupt the next request's read.
type bodyReadCloser struct {
	io.Reader
	onClose func() error
	drained bool
}

func (b *bodyReadCloser) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	if err == io.EOF {
		b.drained = true
	}
	return n, err
}

func (b *bodyReadCloser) Close() error {
	if b.onClose != nil {
		return b.onClose()
	}
	return nil
}

// Drained reports whether the body reader has observed EOF or, for an
// uncompressed Content-Length body, has consumed every declared byte.
func (b *bodyReadCloser) Drained() bool {
	if l, ok := b.Reader.(*limitedBodyReader); ok && l.remaining <= 0 {
		return true
	}
	return b.drained
}

// DrainTracker is implemented by the ReadCloser BuildBodyReader returns
// (except the no-body fast path, which is trivially drained).
type DrainTracker interface {
	Drained() bool
}

// BodyDrained reports whether rc has been read to its end (see
// bodyReadCloser.Drained). A body without a
// DrainTracker (the zero-length fast path) counts as drained.
func BodyDrained(rc io.ReadCloser) bool {
	dt, ok := rc.(DrainTracker)
	return !ok || dt.Drained()
}

// noBodyExpected reports the responses that get a zero-length body regardless of framing hints
// (spec.md §4.4): HEAD responses and 204/304/100.
func noBodyExpected(method string, statusCode int) bool {
	if strings.EqualFold(method, "HEAD") {
		return true
	}
	switch statusCode {
	case 100, 204, 304:
		return true
	}
	return false
}

// BuildBodyReader composes the lazy body stream per the decision tree of
// spec.md §4.4, given the already-classified framing info.
func BuildBodyReader(r *ReceiverHelper, method string, statusCode int, headers []HeaderLine) (io.ReadCloser, error) {
	if noBodyExpected(method, statusCode) {
		return emptyBody, nil
	}

	fi, err := classifyFraming(headers)
	if err != nil {
		return nil, err
	}

	var inner io.Reader
	switch {
	case fi.transferChunked:
		inner = newChunkedReader(r)
	case fi.hasContentLength:
		inner = &limitedBodyReader{r: r, remaining: fi.contentLength}
	default:
		inner = &toEOFReader{r: r}
	}

	switch fi.contentEncoding {
	case "gzip":
		gz, err := gzip.NewReader(inner)
		if err != nil {
			return nil, mverrors.NewReceiveFailure("invalid gzip stream", err)
		}
		return &bodyReadCloser{Reader: gz, onClose: gz.Close}, nil
	case "deflate":
		fr := flate.NewReader(inner)
		return &bodyReadCloser{Reader: fr, onClose: fr.Close}, nil
	default:
		return &bodyReadCloser{Reader: inner}, nil
	}
}
