// Package keepalive owns the pool of reusable connection slots spec.md
// §4.7 describes: one slot per (proxy identity, origin) pair, torn down
// on Connection: close, reused otherwise, with an uncounted silent
// one-shot reconnect when a reused slot's peer has quietly closed it,
// and a counted fail-reconnect budget for any other IOError.
package keepalive

import (
	"context"
	"sync"
	"time"

	mverrors "github.com/SoheilMV/MVNet/errors"
	"github.com/SoheilMV/MVNet/proxy"
	"github.com/SoheilMV/MVNet/requrl"
	"github.com/SoheilMV/MVNet/tlsupgrade"
	"github.com/SoheilMV/MVNet/wire"
)

// DefaultMaxReconnectAttempts bounds the fail-reconnect loop spec.md
// §4.7 names: the further tries allowed after a try fails with an
// IOError. A failed silent-reconnect dial is returned at once, not
// retried.
const DefaultMaxReconnectAttempts = 2

// DefaultReconnectDelay is the pause between fail-reconnect attempts.
const DefaultReconnectDelay = 100 * time.Millisecond

// slotKey identifies a pool bucket: the tunnel used plus the origin
// reached through it. Two requests share a slot only when both match.
type slotKey struct {
	proxyIdentity proxy.Identity
	origin        requrl.Origin
}

// Slot is one owned, possibly-reusable connection.
type Slot struct {
	Stream        wire.Stream
	TLS           bool
	TLSResult     *tlsupgrade.Result
	ProxyIdentity proxy.Identity
	Origin        requrl.Origin
	LastUsed      time.Time
	RequestCount  int
}

// Controller pools Slots keyed by (proxy identity, origin). Not safe to
// share a single Slot across goroutines concurrently; the pool itself is.
type Controller struct {
	mu    sync.Mutex
	slots map[slotKey]*Slot

	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}

func NewController() *Controller {
	return &Controller{
		slots:                make(map[slotKey]*Slot),
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectDelay:       DefaultReconnectDelay,
	}
}

func key(identity proxy.Identity, origin requrl.Origin) slotKey {
	return slotKey{proxyIdentity: identity, origin: origin}
}

// take removes and returns any pooled slot for key, if one exists.
func (c *Controller) take(k slotKey) *Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[k]
	if !ok {
		return nil
	}
	delete(c.slots, k)
	return s
}

// Return hands a slot back to the pool for reuse, or discards it (and
// closes its stream) when wantsClose is true.
func (c *Controller) Return(s *Slot, wantsClose bool) {
	if s == nil {
		return
	}
	if wantsClose {
		s.Stream.Close()
		return
	}
	s.LastUsed = time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[key(s.ProxyIdentity, s.Origin)] = s
}

// Discard closes and drops s without returning it to the pool — used on
// any send/receive failure that isn't the silent-reconnect case.
func (c *Controller) Discard(s *Slot) {
	if s == nil {
		return
	}
	s.Stream.Close()
}

// dialFunc builds a fresh Slot for (identity, origin): proxy dial plus
// optional TLS upgrade. Supplied by the client façade so this package
// stays agnostic of request/response types.
type dialFunc func(ctx context.Context, identity proxy.Identity, origin requrl.Origin) (*Slot, error)

// Acquire returns a usable Slot for (identity, origin): a pooled slot if
// one exists, else a freshly dialed one. A pooled slot is reused whatever
// its idle time (LastUsed) or RequestCount; no idle timeout, request cap
// or server Keep-Alive header is consulted.
func (c *Controller) Acquire(ctx context.Context, identity proxy.Identity, origin requrl.Origin, dial dialFunc) (*Slot, bool, error) {
	k := key(identity, origin)
	if s := c.take(k); s != nil {
		return s, true, nil
	}
	s, err := dial(ctx, identity, origin)
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}

// AcquireAndValidate wraps Acquire with the two independent retries
// spec.md §4.7 describes.
//
// First, the silent reconnect: if a reused slot's try fails with an
// empty-body ReceiveFailure (the peer quietly closed the connection
// between requests), discard it and retry the same request exactly
// once against a freshly dialed slot. This retry is not counted
// toward reconnect_count and is not itself eligible for another
// silent reconnect — a second failure falls straight through to the
// fail-reconnect budget below.
//
// Second, the fail-reconnect budget: any remaining send/receive
// IOError (mverrors.IsIOError) gets up to MaxReconnectAttempts further
// tries, ReconnectDelay apart, and this attempt count is what the
// caller sees as reconnect_count. Errors outside that taxonomy
// (protocol errors, proxy rejections, ...) propagate immediately with
// no retry at all.
func (c *Controller) AcquireAndValidate(ctx context.Context, identity proxy.Identity, origin requrl.Origin,
	dial dialFunc, try func(*Slot) error) (*Slot, int, error) {

	slot, reused, err := c.Acquire(ctx, identity, origin, dial)
	if err != nil {
		return nil, 0, err
	}
	if err = try(slot); err == nil {
		return slot, 0, nil
	}
	c.Discard(slot)

	if reused && mverrors.IsEmptyBody(err) {
		fresh, _, dialErr := c.Acquire(ctx, identity, origin, dial)
		if dialErr != nil {
			return nil, 0, dialErr
		}
		if err = try(fresh); err == nil {
			return fresh, 0, nil
		}
		c.Discard(fresh)
	}

	if !mverrors.IsIOError(err) {
		return nil, 0, err
	}

	lastErr := err
	for attempt := 1; attempt <= c.MaxReconnectAttempts; attempt++ {
		time.Sleep(c.ReconnectDelay)
		slot, _, dialErr := c.Acquire(ctx, identity, origin, dial)
		if dialErr != nil {
			return nil, attempt, dialErr
		}
		if tryErr := try(slot); tryErr == nil {
			return slot, attempt, nil
		} else {
			c.Discard(slot)
			lastErr = tryErr
			if !mverrors.IsIOError(lastErr) {
				return nil, attempt, lastErr
			}
		}
	}
	return nil, c.MaxReconnectAttempts, lastErr
}

// UpgradeToTLS wraps a freshly dialed raw stream in a TLS client
// handshake, producing the Slot's final Stream plus diagnostics the
// response carries back.
func UpgradeToTLS(raw wire.Stream, host string, cfg tlsupgrade.Config) (wire.Stream, *tlsupgrade.Result, error) {
	res, err := tlsupgrade.Upgrade(raw, host, cfg)
	if err != nil {
		return nil, nil, err
	}
	return res.Stream, res, nil
}
