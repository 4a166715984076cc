package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Synchronizer converts a scheduled-start timestamp into a local countdown.
// Each client runs its own synchronizer against its own clock; there is no
// central clock broadcast, so small client skew is accepted.
//
// Remaining is re-evaluated once per second, never goes negative, and the
// Elapsed channel fires exactly once when it reaches zero. A timestamp already
// in the past fires immediately rather than being skipped.
type Synchronizer struct {
	clock clockwork.Clock

	mu        sync.Mutex
	remaining int

	elapsed  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	fireOnce sync.Once
}

// New starts a synchronizer counting down to scheduledAt.
func New(clock clockwork.Clock, scheduledAt time.Time) *Synchronizer {
	s := &Synchronizer{
		clock:   clock,
		elapsed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.remaining = secondsUntil(clock.Now(), scheduledAt)
	if s.remaining == 0 {
		s.fire()
		return s
	}
	go s.run(scheduledAt)
	return s
}

func (s *Synchronizer) run(scheduledAt time.Time) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			remaining := secondsUntil(s.clock.Now(), scheduledAt)
			s.mu.Lock()
			s.remaining = remaining
			s.mu.Unlock()
			if remaining == 0 {
				select {
				case <-s.done:
				default:
					s.fire()
				}
				return
			}
		case <-s.done:
			return
		}
	}
}

// Remaining returns the current countdown value in whole seconds, >= 0.
func (s *Synchronizer) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Elapsed is closed once the countdown reaches zero. It never fires after
// Cancel.
func (s *Synchronizer) Elapsed() <-chan struct{} {
	return s.elapsed
}

// Cancel stops the countdown; no further signals fire. Safe to call more than
// once and after the countdown has elapsed.
func (s *Synchronizer) Cancel() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Synchronizer) fire() {
	s.fireOnce.Do(func() { close(s.elapsed) })
}

// secondsUntil rounds partial seconds up so the countdown reads 1 until the
// deadline truly passes.
func secondsUntil(now, deadline time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return secs
}
