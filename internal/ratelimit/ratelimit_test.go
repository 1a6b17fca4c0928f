package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLimiterBurstAndRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	l := newLimiter(2, 3, clock.now)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d rejected within burst", i)
		}
	}
	if l.Allow() {
		t.Fatal("request beyond burst allowed")
	}
	if got := l.RetryAfter(); got != 500*time.Millisecond {
		t.Errorf("RetryAfter = %v, want 500ms", got)
	}

	clock.advance(500 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("refilled token rejected")
	}
	if l.Allow() {
		t.Fatal("second token allowed before refill")
	}

	// Refill never exceeds the burst.
	clock.advance(time.Hour)
	for i := 0; i < 3; i++ {
		l.Allow()
	}
	if l.Allow() {
		t.Fatal("bucket refilled beyond burst")
	}
}

func TestKeyedIsolatesKeys(t *testing.T) {
	k := NewKeyed(0.001, 1, 0)
	defer k.Close()

	if !k.Allow("10.0.0.1") {
		t.Fatal("first request rejected")
	}
	if k.Allow("10.0.0.1") {
		t.Fatal("second request from same key allowed")
	}
	if !k.Allow("10.0.0.2") {
		t.Fatal("other key throttled")
	}
	if k.Len() != 2 {
		t.Errorf("Len = %d, want 2", k.Len())
	}
}

func TestKeyedPrune(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	k := NewKeyed(1, 1, 0)
	k.cleanup = time.Minute
	k.now = clock.now
	defer k.Close()

	k.Allow("a")
	clock.advance(30 * time.Second)
	k.Allow("b")
	clock.advance(45 * time.Second)
	k.prune()

	if k.Len() != 1 {
		t.Fatalf("Len = %d after prune, want 1", k.Len())
	}
	k.Close()
	k.Close()
}
