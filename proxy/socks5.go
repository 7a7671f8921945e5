package proxy

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	mverrors "github.com/SoheilMV/MVNet/errors"
	"github.com/SoheilMV/MVNet/wire"
)

// SOCKS5 constants, named per billy-rubin-Socks-proxy__model.go's
// convention (SocksVersion5, CmdConnect, AtypIPv4, AtypDomain).
const (
	socks5Version     = 0x05
	socks5CmdConnect  = 0x01
	socks5AtypIPv4    = 0x01
	socks5AtypDomain  = 0x03
	socks5AtypIPv6    = 0x04
	socks5MethodNone  = 0x00
	socks5MethodUserPass = 0x02
	socks5MethodNoAccept = 0xff
)

var socks5ReplyKinds = map[byte]mverrors.ProxyKind{
	0x01: mverrors.ProxySocks5GeneralFailure,
	0x02: mverrors.ProxySocks5NotAllowed,
	0x03: mverrors.ProxySocks5NetworkUnreachable,
	0x04: mverrors.ProxySocks5HostUnreachable,
	0x05: mverrors.ProxySocks5ConnectionRefused,
	0x06: mverrors.ProxySocks5TTLExpired,
	0x07: mverrors.ProxySocks5CommandNotSupported,
	0x08: mverrors.ProxySocks5AddressNotSupported,
}

type socks5Dialer struct {
	cfg Config
}

func (d *socks5Dialer) Identity() Identity { return d.cfg.Identity }

func (d *socks5Dialer) Dial(ctx context.Context, destHost string, destPort int, connectTimeout, rwTimeout time.Duration) (wire.Stream, error) {
	proxyAddr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	stream, err := dialTCPContext(ctx, proxyAddr, connectTimeout)
	if err != nil {
		return nil, err
	}
	if rwTimeout > 0 {
		stream.SetDeadline(time.Now().Add(rwTimeout))
		defer stream.SetDeadline(time.Time{})
	}

	wantAuth := d.cfg.Username != "" && d.cfg.Password != ""
	method := byte(socks5MethodNone)
	if wantAuth {
		method = socks5MethodUserPass
	}

	if _, err := stream.Write([]byte{socks5Version, 0x01, method}); err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("socks5 greeting write failed", err)
	}

	greetReply := make([]byte, 2)
	if err := readFull(stream, greetReply); err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("socks5 greeting read failed", err)
	}
	if greetReply[0] != socks5Version {
		stream.Close()
		return nil, mverrors.NewConnectFailure("socks5 greeting: bad version", nil)
	}
	chosen := greetReply[1]
	if chosen == socks5MethodNoAccept {
		stream.Close()
		return nil, mverrors.NewProxyError(mverrors.ProxySocks5AuthFailed, "no acceptable auth method")
	}

	if chosen == socks5MethodUserPass {
		auth := make([]byte, 0, 3+len(d.cfg.Username)+len(d.cfg.Password))
		auth = append(auth, 0x01, byte(len(d.cfg.Username)))
		auth = append(auth, d.cfg.Username...)
		auth = append(auth, byte(len(d.cfg.Password)))
		auth = append(auth, d.cfg.Password...)
		if _, err := stream.Write(auth); err != nil {
			stream.Close()
			return nil, mverrors.NewConnectFailure("socks5 auth write failed", err)
		}
		authReply := make([]byte, 2)
		if err := readFull(stream, authReply); err != nil {
			stream.Close()
			return nil, mverrors.NewConnectFailure("socks5 auth read failed", err)
		}
		if authReply[1] != 0x00 {
			stream.Close()
			return nil, mverrors.NewProxyError(mverrors.ProxySocks5AuthFailed, "username/password rejected")
		}
	}

	req := make([]byte, 0, 32)
	req = append(req, socks5Version, socks5CmdConnect, 0x00)
	if ip := net.ParseIP(destHost); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			req = append(req, socks5AtypIPv4)
			req = append(req, ip4...)
		} else {
			req = append(req, socks5AtypIPv6)
			req = append(req, ip.To16()...)
		}
	} else {
		if len(destHost) > 255 {
			stream.Close()
			return nil, mverrors.NewInvalidInput("socks5 destination hostname too long")
		}
		req = append(req, socks5AtypDomain, byte(len(destHost)))
		req = append(req, destHost...)
	}
	req = append(req, byte(destPort>>8), byte(destPort))

	if _, err := stream.Write(req); err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("socks5 connect write failed", err)
	}

	// Read the RFC 1928 reply: VER REP RSV ATYP + bound address + port.
	// The design notes (spec.md §9) call out draining exactly this
	// length rather than a fixed 255-byte scratch buffer.
	head := make([]byte, 4)
	if err := readFull(stream, head); err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("socks5 reply read failed", err)
	}
	if head[0] != socks5Version {
		stream.Close()
		return nil, mverrors.NewConnectFailure("socks5 reply: bad version", nil)
	}
	if head[1] != 0x00 {
		stream.Close()
		kind, ok := socks5ReplyKinds[head[1]]
		if !ok {
			kind = mverrors.ProxySocks5GeneralFailure
		}
		return nil, mverrors.NewProxyError(kind, fmt.Sprintf("socks5 connect rejected (reply 0x%02x)", head[1]))
	}

	var addrLen int
	switch head[3] {
	case socks5AtypIPv4:
		addrLen = 4
	case socks5AtypIPv6:
		addrLen = 16
	case socks5AtypDomain:
		lb := make([]byte, 1)
		if err := readFull(stream, lb); err != nil {
			stream.Close()
			return nil, mverrors.NewConnectFailure("socks5 reply read failed", err)
		}
		addrLen = int(lb[0])
	default:
		stream.Close()
		return nil, mverrors.NewConnectFailure("socks5 reply: unknown address type", nil)
	}
	tail := make([]byte, addrLen+2) // address + port
	if err := readFull(stream, tail); err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("socks5 reply read failed", err)
	}

	return stream, nil
}
