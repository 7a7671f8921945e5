package proxy

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	mverrors "github.com/SoheilMV/MVNet/errors"
	"github.com/SoheilMV/MVNet/wire"
)

// httpConnectDialer implements spec.md §4.1 "HTTP CONNECT". Port 80 is
// special-cased: the proxy is expected to forward plaintext HTTP without
// a CONNECT exchange, so the raw socket is returned untouched.
type httpConnectDialer struct {
	cfg Config
}

func (d *httpConnectDialer) Identity() Identity { return d.cfg.Identity }

func (d *httpConnectDialer) Dial(ctx context.Context, destHost string, destPort int, connectTimeout, rwTimeout time.Duration) (wire.Stream, error) {
	proxyAddr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	stream, err := dialTCPContext(ctx, proxyAddr, connectTimeout)
	if err != nil {
		return nil, err
	}

	if destPort == 80 {
		return stream, nil
	}

	if rwTimeout > 0 {
		stream.SetDeadline(time.Now().Add(rwTimeout))
		defer stream.SetDeadline(time.Time{})
	}

	version := d.cfg.HTTPVersion
	if version == "" {
		version = "1.1"
	}
	target := net.JoinHostPort(destHost, strconv.Itoa(destPort))

	var b strings.Builder
	fmt.Fprintf(&b, "CONNECT %s HTTP/%s\r\n", target, version)
	fmt.Fprintf(&b, "Host: %s\r\n", target)
	if d.cfg.Username != "" || d.cfg.Password != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(d.cfg.Username + ":" + d.cfg.Password))
		fmt.Fprintf(&b, "Proxy-Authorization: Basic %s\r\n", auth)
	}
	b.WriteString("Proxy-Connection: Keep-Alive\r\n")
	b.WriteString("\r\n")

	if _, err := stream.Write([]byte(b.String())); err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("CONNECT write failed", err)
	}

	br := bufio.NewReader(stream)
	statusLine, err := br.ReadString('\n')
	if err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("CONNECT response read failed", err)
	}
	code, err := parseConnectStatus(statusLine)
	if err != nil {
		stream.Close()
		return nil, mverrors.NewConnectFailure("CONNECT malformed status line", err)
	}
	// Drain the rest of the header block.
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			stream.Close()
			return nil, mverrors.NewConnectFailure("CONNECT response read failed", err)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}
	if code != 200 {
		stream.Close()
		return nil, mverrors.NewProxyError(mverrors.ProxyHTTPConnectRejected,
			fmt.Sprintf("CONNECT rejected with status %d", code))
	}

	// bufio.Reader may have buffered bytes belonging to the tunneled
	// stream beyond the header block; fold them back in.
	if br.Buffered() > 0 {
		rest := make([]byte, br.Buffered())
		br.Read(rest)
		return &prebufferedStream{Stream: stream, residual: rest}, nil
	}
	return stream, nil
}

func parseConnectStatus(line string) (int, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid status line %q", line)
	}
	return strconv.Atoi(parts[1])
}

// prebufferedStream replays bytes the CONNECT handshake's bufio.Reader
// had already pulled off the socket before the framer gets a turn.
type prebufferedStream struct {
	wire.Stream
	residual []byte
}

func (p *prebufferedStream) Read(b []byte) (int, error) {
	if len(p.residual) > 0 {
		n := copy(b, p.residual)
		p.residual = p.residual[n:]
		return n, nil
	}
	return p.Stream.Read(b)
}
