// Package wire drives the bytes of one HTTP/1.1 exchange: request
// serialization, and the status-line/header/body reader with its
// identity/content-length/chunked framing and gzip/deflate decoding.
package wire

import (
	"net"
	"time"

	mverrors "github.com/SoheilMV/MVNet/errors"
)

// Stream is the duplex byte connection the framer reads and writes.
// A proxy dialer returns one, a TLS upgrade wraps one, and the response
// reader's residual-first buffering sits directly on top of one.
type Stream interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetDeadline(t time.Time) error
}

// TCPStream is the default Stream: a plain net.Conn.
type TCPStream struct {
	Conn net.Conn
}

// DialTCP opens a direct TCP connection, honoring connectTimeout.
func DialTCP(network, addr string, connectTimeout time.Duration) (*TCPStream, error) {
	d := net.Dialer{Timeout: connectTimeout}
	conn, err := d.Dial(network, addr)
	if err != nil {
		return nil, mverrors.NewConnectFailure("tcp dial failed", err)
	}
	return &TCPStream{Conn: conn}, nil
}

func (s *TCPStream) Read(p []byte) (int, error)  { return s.Conn.Read(p) }
func (s *TCPStream) Write(p []byte) (int, error) { return s.Conn.Write(p) }
func (s *TCPStream) Close() error                { return s.Conn.Close() }
func (s *TCPStream) SetDeadline(t time.Time) error {
	return s.Conn.SetDeadline(t)
}
