package keepalive

import (
	"context"
	"testing"
	"time"

	mverrors "github.com/SoheilMV/MVNet/errors"
	"github.com/SoheilMV/MVNet/proxy"
	"github.com/SoheilMV/MVNet/requrl"
)

type stubStream struct {
	closed bool
}

func (s *stubStream) Read(p []byte) (int, error)    { return 0, nil }
func (s *stubStream) Write(p []byte) (int, error)   { return len(p), nil }
func (s *stubStream) Close() error                  { s.closed = true; return nil }
func (s *stubStream) SetDeadline(t time.Time) error { return nil }

func testOrigin() requrl.Origin {
	return requrl.Origin{Scheme: "http", Host: "example.com", Port: 80}
}

func dialCounter(dialed *int) dialFunc {
	return func(ctx context.Context, identity proxy.Identity, origin requrl.Origin) (*Slot, error) {
		*dialed++
		return &Slot{Stream: &stubStream{}, ProxyIdentity: identity, Origin: origin}, nil
	}
}

func TestAcquire_FreshDialWhenPoolEmpty(t *testing.T) {
	c := NewController()
	dialed := 0
	slot, reused, err := c.Acquire(context.Background(), proxy.Identity{}, testOrigin(), dialCounter(&dialed))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if reused {
		t.Error("expected a fresh dial from an empty pool")
	}
	if dialed != 1 {
		t.Errorf("expected exactly one dial, got %d", dialed)
	}
	if slot == nil {
		t.Fatal("expected a non-nil slot")
	}
}

func TestAcquire_ReturnedSlotIsReused(t *testing.T) {
	c := NewController()
	dialed := 0
	origin := testOrigin()
	identity := proxy.Identity{}

	slot, _, err := c.Acquire(context.Background(), identity, origin, dialCounter(&dialed))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	c.Return(slot, false)

	slot2, reused, err := c.Acquire(context.Background(), identity, origin, dialCounter(&dialed))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !reused {
		t.Error("expected the returned slot to be reused")
	}
	if slot2 != slot {
		t.Error("expected to get back the exact slot that was returned")
	}
	if dialed != 1 {
		t.Errorf("expected only the first Acquire to dial, got %d dials", dialed)
	}
}

func TestReturn_WantsCloseDiscardsTheStream(t *testing.T) {
	c := NewController()
	s := &stubStream{}
	slot := &Slot{Stream: s, Origin: testOrigin()}

	c.Return(slot, true)

	if !s.closed {
		t.Error("expected the stream to be closed when wantsClose is true")
	}

	dialed := 0
	_, reused, err := c.Acquire(context.Background(), proxy.Identity{}, testOrigin(), dialCounter(&dialed))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if reused {
		t.Error("a slot returned with wantsClose must not be pooled for reuse")
	}
}

func TestAcquireAndValidate_SuccessOnFirstTry(t *testing.T) {
	c := NewController()
	dialed := 0
	slot, attempts, err := c.AcquireAndValidate(context.Background(), proxy.Identity{}, testOrigin(),
		dialCounter(&dialed), func(*Slot) error { return nil })
	if err != nil {
		t.Fatalf("AcquireAndValidate: %v", err)
	}
	if attempts != 0 {
		t.Errorf("expected 0 retries on first-try success, got %d", attempts)
	}
	if slot == nil {
		t.Fatal("expected a non-nil slot")
	}
}

func TestAcquireAndValidate_SilentReconnectOnEmptyBody(t *testing.T) {
	c := NewController()
	c.ReconnectDelay = time.Millisecond
	dialed := 0
	identity := proxy.Identity{}
	origin := testOrigin()

	// Seed the pool with a slot that will be "reused" on the first attempt.
	seed, _, _ := c.Acquire(context.Background(), identity, origin, dialCounter(&dialed))
	c.Return(seed, false)

	tries := 0
	slot, attempts, err := c.AcquireAndValidate(context.Background(), identity, origin, dialCounter(&dialed),
		func(s *Slot) error {
			tries++
			if tries == 1 {
				return mverrors.NewEmptyBodyFailure("peer closed idle connection")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("AcquireAndValidate: %v", err)
	}
	// The silent reconnect is not counted toward reconnect_count: spec.md
	// §8 scenario 6 requires reconnect_count == 0 here.
	if attempts != 0 {
		t.Errorf("expected the silent reconnect to be uncounted, got %d", attempts)
	}
	if slot == nil {
		t.Fatal("expected a non-nil slot after the silent reconnect")
	}
	if dialed != 2 {
		t.Errorf("expected the seed dial plus one reconnect dial, got %d", dialed)
	}
}

func TestAcquireAndValidate_FreshSlotIOErrorUsesCountedFailReconnect(t *testing.T) {
	c := NewController()
	c.ReconnectDelay = time.Millisecond
	dialed := 0

	tries := 0
	slot, attempts, err := c.AcquireAndValidate(context.Background(), proxy.Identity{}, testOrigin(), dialCounter(&dialed),
		func(*Slot) error {
			tries++
			if tries == 1 {
				return mverrors.NewEmptyBodyFailure("peer closed immediately")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("AcquireAndValidate: %v", err)
	}
	// A freshly dialed slot's failure is never the silent-reconnect
	// trigger (that only applies to a reused slot); it instead falls to
	// the counted fail-reconnect budget.
	if attempts != 1 {
		t.Errorf("expected exactly one counted fail-reconnect attempt, got %d", attempts)
	}
	if slot == nil {
		t.Fatal("expected a non-nil slot after the fail-reconnect")
	}
	if dialed != 2 {
		t.Errorf("expected the initial dial plus one fail-reconnect dial, got %d", dialed)
	}
}

func TestAcquireAndValidate_SilentReconnectDoesNotRecurse(t *testing.T) {
	c := NewController()
	c.MaxReconnectAttempts = 2
	c.ReconnectDelay = time.Millisecond
	dialed := 0
	identity := proxy.Identity{}
	origin := testOrigin()

	seed, _, _ := c.Acquire(context.Background(), identity, origin, dialCounter(&dialed))
	c.Return(seed, false)

	_, attempts, err := c.AcquireAndValidate(context.Background(), identity, origin, dialCounter(&dialed),
		func(*Slot) error { return mverrors.NewEmptyBodyFailure("peer closed idle connection") })
	if err == nil {
		t.Fatal("expected the error to eventually propagate once the fail-reconnect budget is exhausted")
	}
	// One seed dial, one uncounted silent-reconnect dial that also fails,
	// then MaxReconnectAttempts counted fail-reconnect dials — the second
	// empty-body failure must not trigger a second silent reconnect.
	if want := 2 + c.MaxReconnectAttempts; dialed != want {
		t.Errorf("expected %d dials, got %d", want, dialed)
	}
	if attempts != c.MaxReconnectAttempts {
		t.Errorf("expected the returned count to reflect only the counted fail-reconnects, got %d", attempts)
	}
}

func TestAcquireAndValidate_FailReconnectBudgetExhausted(t *testing.T) {
	c := NewController()
	c.MaxReconnectAttempts = 2
	c.ReconnectDelay = time.Millisecond
	dialed := 0

	_, attempts, err := c.AcquireAndValidate(context.Background(), proxy.Identity{}, testOrigin(), dialCounter(&dialed),
		func(*Slot) error { return mverrors.NewSendFailure("connection reset", nil) })
	if err == nil {
		t.Fatal("expected the error to propagate once the fail-reconnect budget is exhausted")
	}
	if attempts != c.MaxReconnectAttempts {
		t.Errorf("expected %d attempts, got %d", c.MaxReconnectAttempts, attempts)
	}
	if want := 1 + c.MaxReconnectAttempts; dialed != want {
		t.Errorf("expected the initial dial plus %d fail-reconnect dials, got %d", c.MaxReconnectAttempts, dialed)
	}
}

func TestAcquireAndValidate_ProtocolErrorIsNotRetried(t *testing.T) {
	c := NewController()
	dialed := 0
	identity := proxy.Identity{}
	origin := testOrigin()
	seed, _, _ := c.Acquire(context.Background(), identity, origin, dialCounter(&dialed))
	c.Return(seed, false)

	_, _, err := c.AcquireAndValidate(context.Background(), identity, origin, dialCounter(&dialed),
		func(*Slot) error { return mverrors.NewProtocolError("malformed status line") })
	if err == nil {
		t.Fatal("expected the protocol error to propagate without a silent retry")
	}
	if dialed != 1 {
		t.Errorf("expected no reconnect dial for a protocol error, got %d dials", dialed)
	}
}
