//go:build linux

package wire

import (
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/iceber/iouring-go"

	mverrors "github.com/SoheilMV/MVNet/errors"
)

// URingStream is the opt-in Linux fast path: a TCP connection driven
// through io_uring instead of the blocking net.Conn default, adapted
// from the teacher's transport.TcpTransport. A direct-variant dialer
// selects it when UseIOURing is set on the proxy Config; every other
// variant still tunnels over a plain TCPStream, since the handshake
// bytes that precede the tunnel don't benefit from it.
type URingStream struct {
	iour   *iouring.IOURing
	fd     int
	closed bool
}

// DialURing connects addr via io_uring SQEs: socket, non-blocking mode,
// TCP_NODELAY, then a submitted Connect request. The address family is
// resolved and the socket created before the ring is opened, so the
// ring submitted to below is always the one that owns fd.
func DialURing(network, addr string, connectTimeout time.Duration) (*URingStream, error) {
	tcpAddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return nil, mverrors.NewConnectFailure(fmt.Sprintf("failed to resolve %s", addr), err)
	}

	family := syscall.AF_INET
	if tcpAddr.IP.To4() == nil {
		family = syscall.AF_INET6
	}
	fd, err := syscall.Socket(family, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, mverrors.NewConnectFailure("socket creation failed", err)
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, mverrors.NewConnectFailure("failed to set non-blocking mode", err)
	}
	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
		syscall.Close(fd)
		return nil, mverrors.NewConnectFailure("failed to set TCP_NODELAY", err)
	}

	iour, err := iouring.New(32)
	if err != nil {
		syscall.Close(fd)
		return nil, mverrors.NewConnectFailure("io_uring init failed", err)
	}

	var sa syscall.Sockaddr
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		sa4 := &syscall.SockaddrInet4{Port: tcpAddr.Port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		sa6 := &syscall.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa6.Addr[:], tcpAddr.IP)
		sa = sa6
	}

	ch := make(chan iouring.Result, 1)
	prepReq := iouring.Connect(fd, sa)
	if _, err := iour.SubmitRequest(prepReq, ch); err != nil {
		syscall.Close(fd)
		iour.Close()
		return nil, mverrors.NewConnectFailure("failed to submit connect request", err)
	}

	select {
	case result := <-ch:
		if _, err := result.ReturnInt(); err != nil {
			syscall.Close(fd)
			iour.Close()
			return nil, mverrors.NewConnectFailure(fmt.Sprintf("failed to connect to %s", addr), err)
		}
	case <-time.After(connectTimeout):
		syscall.Close(fd)
		iour.Close()
		return nil, mverrors.NewConnectFailure(fmt.Sprintf("timed out connecting to %s", addr), nil)
	}

	return &URingStream{iour: iour, fd: fd}, nil
}

func (s *URingStream) Write(buf []byte) (int, error) {
	if s.closed {
		return 0, mverrors.NewSendFailure("connection closed", nil)
	}
	total := 0
	for total < len(buf) {
		ch := make(chan iouring.Result, 1)
		prepReq := iouring.Send(s.fd, buf[total:], 0)
		if _, err := s.iour.SubmitRequest(prepReq, ch); err != nil {
			return total, mverrors.NewSendFailure("failed to submit write request", err)
		}
		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			return total, mverrors.NewSendFailure("write failed", err)
		}
		if n <= 0 {
			return total, mverrors.NewSendFailure("connection closed during write", nil)
		}
		total += n
	}
	return total, nil
}

func (s *URingStream) Read(buf []byte) (int, error) {
	if s.closed {
		return 0, mverrors.NewReceiveFailure("connection closed", nil)
	}
	ch := make(chan iouring.Result, 1)
	prepReq := iouring.Recv(s.fd, buf, 0)
	if _, err := s.iour.SubmitRequest(prepReq, ch); err != nil {
		return 0, mverrors.NewReceiveFailure("failed to submit read request", err)
	}
	result := <-ch
	n, err := result.ReturnInt()
	if err != nil {
		return 0, mverrors.NewReceiveFailure("read failed", err)
	}
	return n, nil
}

// SetDeadline is a no-op. Only the connect is bounded (by DialURing's
// connectTimeout); Read and Write wait for their submitted request's
// completion with no deadline.
func (s *URingStream) SetDeadline(t time.Time) error { return nil }

func (s *URingStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := syscall.Close(s.fd)
	s.iour.Close()
	if err != nil {
		return mverrors.NewConnectFailure("failed to close socket", err)
	}
	return nil
}

var _ Stream = (*URingStream)(nil)
