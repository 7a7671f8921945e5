//go:build !linux

package wire

import "time"

// IOURingBackend selects which io_uring binding DialFast would use on
// Linux; it has no effect on this platform's fallback.
type IOURingBackend int

const (
	IOURingIceber IOURingBackend = iota
	IOURingGodzie44
)

// DialFast falls back to the plain net.Conn stream on platforms without
// an io_uring binding — the fast path is a Linux-only optimization, not
// a behavioral requirement.
func DialFast(network, addr string, connectTimeout time.Duration, _ IOURingBackend) (Stream, error) {
	return DialTCP(network, addr, connectTimeout)
}
