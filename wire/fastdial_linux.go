//go:build linux

package wire

import "time"

// IOURingBackend selects which of the pack's two io_uring bindings
// DialFast drives the fast path through.
type IOURingBackend int

const (
	// IOURingIceber uses github.com/iceber/iouring-go (the default).
	IOURingIceber IOURingBackend = iota
	// IOURingGodzie44 uses github.com/godzie44/go-uring instead.
	IOURingGodzie44
)

// DialFast is the Linux io_uring fast path: direct-variant dialing asks
// for it via proxy.Config.UseIOURing/IOURingBackend.
func DialFast(network, addr string, connectTimeout time.Duration, backend IOURingBackend) (Stream, error) {
	if backend == IOURingGodzie44 {
		return DialURingV2(network, addr, connectTimeout)
	}
	return DialURing(network, addr, connectTimeout)
}
