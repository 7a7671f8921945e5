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

// SOCKS4 reply codes (spec.md §4.1), named the way
// billy-rubin-Socks-proxy__model.go names its SOCKS5 constants.
const (
	socks4Version      = 0x04
	socks4CmdConnect   = 0x01
	socks4Granted      = 0x5a
	socks4Rejected     = 0x5b
	socks4IdentdUnreach = 0x5c
	socks4IdentdMismatch = 0x5d
)

// socks4Dialer implements spec.md §4.1 "SOCKS4" and, with variant4a set,
// "SOCKS4a" (sentinel IP 0.0.0.1 plus a literal hostname, no client-side
// DNS).
type socks4Dialer struct {
	cfg       Config
	variant4a bool
}

func (d *socks4Dialer) Identity() Identity { return d.cfg.Identity }

func (d *socks4Dialer) Dial(ctx context.Context, destHost string, destPort int, connectTimeout, rwTimeout time.Duration) (wire.Stream, error) {
	proxyAddr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	stream, err := dialTCPContext(ctx, proxyAddr, connectTimeout)
	if err != nil {
		return nil, err
	}
	if rwTimeout > 0 {
		stream.SetDeadline(time.Now().Add(rwTimeout))
		defer stream.SetDeadline(time.Time{})
	}

	req := make([]byte, 0, 32)
	req = append(req, socks4Version, socks4CmdConnect, byte(destPort>>8), byte(destPort))

	if d.variant4a {
		req = append(req, 0, 0, 0, 1) // sentinel IP 0.0.0.1
	} else {
		ip, err := resolveIPv4(destHost)
		if err != nil {
			stream.Close()
			return nil, mverrors.NewConnectFailure("socks4 dns resolution failed", err)
		}
		req = append(req, ip...)
	}

	req = append(req, []byte(d.cfg.Username)...)
	req = append(req, 0)

	if d.variant4a {
		req = append(req, []byte(destHost)...)
		req = append(req, 0)
	}

	if _, err := stream.Write(req); err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("socks4 handshake write failed", err)
	}

	reply := make([]byte, 8)
	if err := readFull(stream, reply); err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("socks4 handshake read failed", err)
	}

	switch reply[1] {
	case socks4Granted:
		return stream, nil
	case socks4Rejected:
		stream.Close()
		return nil, mverrors.NewProxyError(mverrors.ProxySocks4RejectedOrFailed, "request rejected or failed")
	case socks4IdentdUnreach:
		stream.Close()
		return nil, mverrors.NewProxyError(mverrors.ProxySocks4IdentdUnreachable, "identd unreachable")
	case socks4IdentdMismatch:
		stream.Close()
		return nil, mverrors.NewProxyError(mverrors.ProxySocks4IdentdMismatch, "identd user-id mismatch")
	default:
		stream.Close()
		return nil, mverrors.NewProxyError(mverrors.ProxySocks4RejectedOrFailed,
			fmt.Sprintf("unknown socks4 reply code 0x%02x", reply[1]))
	}
}

func resolveIPv4(host string) ([]byte, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("no A record for %s", host)
}

func readFull(s wire.Stream, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := s.Read(buf[read:])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("connection closed mid-read")
		}
		read += n
	}
	return nil
}
