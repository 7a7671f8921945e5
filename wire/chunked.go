package wire

import (
	"bytes"
	"io"

	mverrors "github.com/SoheilMV/MVNet/errors"
)

const maxChunkLineLength = 4096

// chunkedReader decodes Transfer-Encoding: chunked, grounded on the
// net/http/internal chunked reader as adapted in
// domosekai-turnout__chunked.go: hex-size line, chunk-extension
// stripped, payload, trailing CRLF, repeat until a zero-size chunk.
type chunkedReader struct {
	r   *ReceiverHelper
	n   uint64 // unread bytes remaining in the current chunk
	err error
}

func newChunkedReader(r *ReceiverHelper) *chunkedReader {
	return &chunkedReader{r: r}
}

func (c *chunkedReader) Read(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.n == 0 {
		if err := c.beginChunk(); err != nil {
			c.err = err
			return 0, err
		}
		if c.err == io.EOF {
			return 0, io.EOF
		}
	}
	if uint64(len(b)) > c.n {
		b = b[:c.n]
	}
	n, err := c.r.Read(b)
	c.n -= uint64(n)
	if c.n == 0 && err == nil {
		// Consume the chunk's trailing CRLF.
		if derr := c.discardCRLF(); derr != nil {
			c.err = derr
			return n, derr
		}
	}
	if err != nil {
		c.err = mverrors.NewReceiveFailure("chunked body read failed", err)
		return n, c.err
	}
	return n, nil
}

func (c *chunkedReader) beginChunk() error {
	line, err := c.r.ReadLine()
	if err != nil {
		return mverrors.NewReceiveFailure("failed reading chunk size line", err)
	}
	line = trimCRLF(line)
	if len(line) > maxChunkLineLength {
		return mverrors.NewReceiveFailure("chunk size line too long", nil)
	}
	line = stripChunkExtension(line)
	n, err := parseHexUint(line)
	if err != nil {
		return mverrors.NewReceiveFailure("invalid chunk size", err)
	}
	c.n = n
	if n == 0 {
		// Trailer section: read until a blank line, then signal EOF.
		for {
			l, err := c.r.ReadLine()
			if err != nil {
				return mverrors.NewReceiveFailure("failed reading chunk trailer", err)
			}
			if trimCRLF(l) == "" {
				break
			}
		}
		c.err = io.EOF
	}
	return nil
}

func (c *chunkedReader) discardCRLF() error {
	buf := make([]byte, 2)
	read := 0
	for read < 2 {
		n, err := c.r.Read(buf[read:])
		if err != nil {
			return mverrors.NewReceiveFailure("failed reading chunk terminator", err)
		}
		read += n
	}
	return nil
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func stripChunkExtension(line string) string {
	if i := indexByteStr(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

func indexByteStr(s string, c byte) int {
	return bytes.IndexByte([]byte(s), c)
}

func parseHexUint(s string) (uint64, error) {
	var n uint64
	if len(s) == 0 {
		return 0, mverrors.NewReceiveFailure("empty chunk size", nil)
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		var v byte
		switch {
		case '0' <= b && b <= '9':
			v = b - '0'
		case 'a' <= b && b <= 'f':
			v = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			v = b - 'A' + 10
		default:
			return 0, mverrors.NewReceiveFailure("invalid byte in chunk size", nil)
		}
		if i == 16 {
			return 0, mverrors.NewReceiveFailure("chunk size too large", nil)
		}
		n <<= 4
		n |= uint64(v)
	}
	return n, nil
}
