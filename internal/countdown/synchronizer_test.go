package countdown

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestCountsDownToZero(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, clock.Now().Add(3*time.Second))
	defer s.Cancel()

	if got := s.Remaining(); got != 3 {
		t.Fatalf("expected 3 seconds remaining, got %d", got)
	}

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	waitFor(t, "remaining=2", func() bool { return s.Remaining() == 2 })

	clock.Advance(time.Second)
	waitFor(t, "remaining=1", func() bool { return s.Remaining() == 1 })

	clock.Advance(time.Second)
	select {
	case <-s.Elapsed():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected elapsed signal at zero")
	}
	if got := s.Remaining(); got != 0 {
		t.Fatalf("remaining must not go negative, got %d", got)
	}
}

func TestPastTimestampFiresImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, clock.Now().Add(-5*time.Second))

	select {
	case <-s.Elapsed():
	case <-time.After(time.Second):
		t.Fatalf("expected immediate elapsed signal for past timestamp")
	}
	if got := s.Remaining(); got != 0 {
		t.Fatalf("expected remaining 0, got %d", got)
	}
}

func TestCancelSuppressesSignal(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, clock.Now().Add(10*time.Second))

	clock.BlockUntil(1)
	s.Cancel()
	clock.Advance(time.Minute)

	select {
	case <-s.Elapsed():
		t.Fatalf("elapsed must not fire after cancel")
	case <-time.After(100 * time.Millisecond):
	}

	// Cancel is safe to repeat.
	s.Cancel()
}

func TestPartialSecondsRoundUp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock, clock.Now().Add(2500*time.Millisecond))
	defer s.Cancel()

	if got := s.Remaining(); got != 3 {
		t.Fatalf("expected 2.5s to read as 3, got %d", got)
	}
}
