// Package proxy implements the tunneled-stream establishment layer:
// direct, HTTP CONNECT, SOCKS4/4a/5, and the authenticated Azadi
// ChaCha20-Poly1305 tunnel, plus the proxy URL grammars of spec.md §6.
package proxy

import (
	"context"
	"time"

	"github.com/SoheilMV/MVNet/wire"
)

// Variant tags the closed, small set of tunnel protocols this engine
// speaks — a tagged variant per design note §9, not an open interface
// registry, because the protocol set will not grow.
type Variant int

const (
	Direct Variant = iota
	HTTPConnect
	SOCKS4
	SOCKS4a
	SOCKS5
	Azadi
)

func (v Variant) String() string {
	switch v {
	case Direct:
		return "direct"
	case HTTPConnect:
		return "http-connect"
	case SOCKS4:
		return "socks4"
	case SOCKS4a:
		return "socks4a"
	case SOCKS5:
		return "socks5"
	case Azadi:
		return "azadi"
	default:
		return "unknown"
	}
}

// IsHTTPType reports whether the variant speaks HTTP to the proxy itself
// (so Proxy-Connection/Proxy-Authorization and, optionally,
// absolute-form request lines apply).
func (v Variant) IsHTTPType() bool { return v == HTTPConnect }

// Identity is the tuple that determines whether two proxy configurations
// are equivalent for connection-slot reuse (glossary: "Proxy identity").
type Identity struct {
	Variant  Variant
	Host     string
	Port     int
	Username string
	Password string
	Secret   string // Azadi shared secret
}

// Config is the full dial configuration for one proxy variant.
type Config struct {
	Identity
	// AbsoluteURIInStartLine requests the framer use the absolute URI on
	// the request line, only meaningful behind an HTTP-type proxy.
	AbsoluteURIInStartLine bool
	HTTPVersion            string // e.g. "1.1", defaults to 1.1

	// UseIOURing asks the Direct dialer to open the destination socket
	// through io_uring on Linux (wire.DialFast) instead of net.Dial.
	// Ignored by every other variant: the tunnel handshake bytes that
	// precede them gain nothing from it, and it would only complicate
	// the CONNECT/SOCKS/Azadi negotiation paths for no benefit.
	UseIOURing     bool
	IOURingBackend wire.IOURingBackend
}

// Dialer establishes a tunneled stream to (destHost, destPort) — direct
// connect for the null variant, else proxy connect plus handshake.
type Dialer interface {
	Dial(ctx context.Context, destHost string, destPort int, connectTimeout, rwTimeout time.Duration) (wire.Stream, error)
	Identity() Identity
}

// NewDialer builds the Dialer for cfg.Variant. A zero Config (Variant ==
// Direct) dials destHost:destPort directly with no handshake bytes.
func NewDialer(cfg Config) Dialer {
	switch cfg.Identity.Variant {
	case HTTPConnect:
		return &httpConnectDialer{cfg: cfg}
	case SOCKS4:
		return &socks4Dialer{cfg: cfg, variant4a: false}
	case SOCKS4a:
		return &socks4Dialer{cfg: cfg, variant4a: true}
	case SOCKS5:
		return &socks5Dialer{cfg: cfg}
	case Azadi:
		return &azadiDialer{cfg: cfg}
	default:
		return &directDialer{cfg: cfg}
	}
}
