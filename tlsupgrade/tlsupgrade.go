// Package tlsupgrade performs the client-side TLS handshake over an
// already-established wire.Stream, producing a framed cipher stream plus
// the diagnostics (negotiated suite, protocol version, peer certificate)
// the response carries back to the caller.
package tlsupgrade

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"time"

	mverrors "github.com/SoheilMV/MVNet/errors"
	"github.com/SoheilMV/MVNet/wire"
)

// CertValidator inspects the peer chain and decides whether to accept it.
// The zero Config uses crypto/tls's own verification; setting
// InsecureSkipVerify or a CertValidator are both explicit opt-ins — this
// library never defaults to accept-all.
type CertValidator func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error

// Config controls the handshake. MinVersion/MaxVersion default to
// TLS 1.0 through 1.3 (tls.VersionTLS10..tls.VersionTLS13) when zero.
type Config struct {
	MinVersion   uint16
	MaxVersion   uint16
	CipherSuites []uint16 // nil => library default ordering

	// InsecureSkipVerify accepts any certificate. Off by default; spec.md
	// §9 flags the source's accept-all default as a defect this rewrite
	// does not repeat.
	InsecureSkipVerify bool
	CertValidator      CertValidator

	Certificates []tls.Certificate // client certificate chain, optional

	HandshakeTimeout time.Duration
}

// Result carries the diagnostics a Response surfaces to its caller.
type Result struct {
	Stream          *Stream
	CipherSuite     uint16
	Version         uint16
	NegotiatedProto string
	PeerCertificate *x509.Certificate
}

// Stream wraps a *tls.Conn as a wire.Stream.
type Stream struct {
	conn *tls.Conn
}

func (s *Stream) Read(p []byte) (int, error)  { return s.conn.Read(p) }
func (s *Stream) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *Stream) Close() error                { return s.conn.Close() }
func (s *Stream) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

var _ wire.Stream = (*Stream)(nil)

// Upgrade performs the handshake. On failure the underlying raw stream is
// closed and a ConnectFailure tagged "ssl" is returned.
func Upgrade(raw wire.Stream, host string, cfg Config) (*Result, error) {
	minV, maxV := cfg.MinVersion, cfg.MaxVersion
	if minV == 0 {
		minV = tls.VersionTLS10
	}
	if maxV == 0 {
		maxV = tls.VersionTLS13
	}

	tlsCfg := &tls.Config{
		ServerName:         host,
		MinVersion:         minV,
		MaxVersion:         maxV,
		CipherSuites:       cfg.CipherSuites,
		InsecureSkipVerify: cfg.InsecureSkipVerify || cfg.CertValidator != nil,
		Certificates:       cfg.Certificates,
	}
	if cfg.CertValidator != nil {
		tlsCfg.VerifyPeerCertificate = func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
			return cfg.CertValidator(rawCerts, verifiedChains)
		}
	}

	conn := tls.Client(rawStreamConn{raw}, tlsCfg)
	if cfg.HandshakeTimeout > 0 {
		conn.SetDeadline(time.Now().Add(cfg.HandshakeTimeout))
	}
	if err := conn.Handshake(); err != nil {
		raw.Close()
		return nil, mverrors.NewConnectFailure("ssl", err)
	}
	if cfg.HandshakeTimeout > 0 {
		conn.SetDeadline(time.Time{})
	}

	state := conn.ConnectionState()
	var peer *x509.Certificate
	if len(state.PeerCertificates) > 0 {
		peer = state.PeerCertificates[0]
	}

	return &Result{
		Stream:          &Stream{conn: conn},
		CipherSuite:     state.CipherSuite,
		Version:         state.Version,
		NegotiatedProto: state.NegotiatedProtocol,
		PeerCertificate: peer,
	}, nil
}

// rawStreamConn adapts a wire.Stream, which exposes only one combined
// SetDeadline, to the full net.Conn shape crypto/tls.Client requires.
type rawStreamConn struct {
	wire.Stream
}

func (rawStreamConn) LocalAddr() net.Addr  { return noAddr{} }
func (rawStreamConn) RemoteAddr() net.Addr { return noAddr{} }

func (s rawStreamConn) SetReadDeadline(t time.Time) error  { return s.Stream.SetDeadline(t) }
func (s rawStreamConn) SetWriteDeadline(t time.Time) error { return s.Stream.SetDeadline(t) }

type noAddr struct{}

func (noAddr) Network() string { return "mvnet" }
func (noAddr) String() string  { return "mvnet" }
