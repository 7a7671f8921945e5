package proxy

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/SoheilMV/MVNet/wire"
)

// directDialer connects straight to (destHost, destPort) with no
// handshake bytes — spec.md §4.1 "Direct".
type directDialer struct {
	cfg Config
}

func (d *directDialer) Identity() Identity { return d.cfg.Identity }

func (d *directDialer) Dial(ctx context.Context, destHost string, destPort int, connectTimeout, _ time.Duration) (wire.Stream, error) {
	addr := net.JoinHostPort(destHost, strconv.Itoa(destPort))
	if d.cfg.UseIOURing {
		return dialContext(ctx, connectTimeout, func(timeout time.Duration) (wire.Stream, error) {
			return wire.DialFast("tcp", addr, timeout, d.cfg.IOURingBackend)
		})
	}
	return dialTCPContext(ctx, addr, connectTimeout)
}

func dialTCPContext(ctx context.Context, addr string, timeout time.Duration) (wire.Stream, error) {
	return dialContext(ctx, timeout, func(timeout time.Duration) (wire.Stream, error) {
		return wire.DialTCP("tcp", addr, timeout)
	})
}

// dialContext races a blocking dial function against ctx, the pattern
// every variant's Dial uses to stay cancellable.
func dialContext(ctx context.Context, timeout time.Duration, dial func(time.Duration) (wire.Stream, error)) (wire.Stream, error) {
	type result struct {
		s   wire.Stream
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := dial(timeout)
		ch <- result{s, err}
	}()
	select {
	case r := <-ch:
		return r.s, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
