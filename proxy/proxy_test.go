package proxy

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

func setupFixtureServer(t *testing.T, handle func(net.Conn)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handle(conn)
	}()

	tcpAddr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", tcpAddr.Port
}

func TestSOCKS5Dialer_NoAuthConnectSucceeds(t *testing.T) {
	host, port := setupFixtureServer(t, func(conn net.Conn) {
		defer conn.Close()
		greeting := make([]byte, 3)
		io.ReadFull(conn, greeting)
		conn.Write([]byte{0x05, 0x00}) // no-auth chosen

		// CONNECT request: VER CMD RSV ATYP ...
		head := make([]byte, 4)
		io.ReadFull(conn, head)
		if head[3] == socks5AtypDomain {
			lb := make([]byte, 1)
			io.ReadFull(conn, lb)
			rest := make([]byte, int(lb[0])+2)
			io.ReadFull(conn, rest)
		} else {
			io.ReadFull(conn, make([]byte, 6))
		}
		conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	})

	d := &socks5Dialer{cfg: Config{Identity: Identity{Variant: SOCKS5, Host: host, Port: port}}}
	stream, err := d.Dial(context.Background(), "example.com", 80, time.Second, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer stream.Close()
}

func TestSOCKS5Dialer_UsernamePasswordAuth(t *testing.T) {
	var gotUser, gotPass string
	host, port := setupFixtureServer(t, func(conn net.Conn) {
		defer conn.Close()
		greeting := make([]byte, 3)
		io.ReadFull(conn, greeting)
		conn.Write([]byte{0x05, 0x02}) // user/pass chosen

		verLen := make([]byte, 2)
		io.ReadFull(conn, verLen)
		ulen := int(verLen[1])
		u := make([]byte, ulen)
		io.ReadFull(conn, u)
		gotUser = string(u)
		plen := make([]byte, 1)
		io.ReadFull(conn, plen)
		p := make([]byte, int(plen[0]))
		io.ReadFull(conn, p)
		gotPass = string(p)
		conn.Write([]byte{0x01, 0x00})

		head := make([]byte, 4)
		io.ReadFull(conn, head)
		lb := make([]byte, 1)
		io.ReadFull(conn, lb)
		io.ReadFull(conn, make([]byte, int(lb[0])+2))
		conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	})

	d := &socks5Dialer{cfg: Config{Identity: Identity{
		Variant: SOCKS5, Host: host, Port: port, Username: "alice", Password: "hunter2",
	}}}
	stream, err := d.Dial(context.Background(), "example.com", 443, time.Second, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer stream.Close()

	if gotUser != "alice" || gotPass != "hunter2" {
		t.Errorf("expected credentials alice/hunter2, got %q/%q", gotUser, gotPass)
	}
}

func TestSOCKS5Dialer_RejectedConnectSurfacesProxyError(t *testing.T) {
	host, port := setupFixtureServer(t, func(conn net.Conn) {
		defer conn.Close()
		greeting := make([]byte, 3)
		io.ReadFull(conn, greeting)
		conn.Write([]byte{0x05, 0x00})

		head := make([]byte, 4)
		io.ReadFull(conn, head)
		io.ReadFull(conn, make([]byte, 6))
		// Reply 0x05: connection refused.
		conn.Write([]byte{0x05, 0x05, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	})

	d := &socks5Dialer{cfg: Config{Identity: Identity{Variant: SOCKS5, Host: host, Port: port}}}
	_, err := d.Dial(context.Background(), "example.com", 80, time.Second, time.Second)
	if err == nil {
		t.Fatal("expected an error for a rejected SOCKS5 CONNECT")
	}
}

func TestHTTPConnectDialer_SuccessfulTunnel(t *testing.T) {
	var gotConnectLine string
	host, port := setupFixtureServer(t, func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 4096)
		n, _ := conn.Read(buf)
		req := string(buf[:n])
		gotConnectLine = strings.SplitN(req, "\r\n", 2)[0]
		conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
	})

	d := &httpConnectDialer{cfg: Config{Identity: Identity{Variant: HTTPConnect, Host: host, Port: port}}}
	stream, err := d.Dial(context.Background(), "example.com", 443, time.Second, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer stream.Close()

	if gotConnectLine != "CONNECT example.com:443 HTTP/1.1" {
		t.Errorf("unexpected CONNECT line: %q", gotConnectLine)
	}
}

func TestHTTPConnectDialer_RejectedTunnel(t *testing.T) {
	host, port := setupFixtureServer(t, func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"))
	})

	d := &httpConnectDialer{cfg: Config{Identity: Identity{Variant: HTTPConnect, Host: host, Port: port}}}
	_, err := d.Dial(context.Background(), "example.com", 443, time.Second, time.Second)
	if err == nil {
		t.Fatal("expected an error for a rejected CONNECT tunnel")
	}
}

func TestHTTPConnectDialer_Port80SkipsHandshake(t *testing.T) {
	sawBytes := make(chan bool, 1)
	host, port := setupFixtureServer(t, func(conn net.Conn) {
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		sawBytes <- err == nil && n > 0
	})

	d := &httpConnectDialer{cfg: Config{Identity: Identity{Variant: HTTPConnect, Host: host, Port: port}}}
	stream, err := d.Dial(context.Background(), "example.com", 80, time.Second, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	stream.Close()

	if <-sawBytes {
		t.Error("expected no CONNECT bytes written for a port-80 destination")
	}
}
