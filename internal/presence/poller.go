package presence

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// PollConfig controls the adaptive refresh cadence. The interval is shorter
// while the local user is joined; a zero UnjoinedInterval disables polling
// entirely while not joined, leaving manual refresh as the only read path.
type PollConfig struct {
	JoinedInterval   time.Duration
	UnjoinedInterval time.Duration
	ManualRefresh    bool
}

// DefaultPollConfig mirrors the cadence the lobby UI expects.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		JoinedInterval:   5 * time.Second,
		UnjoinedInterval: 30 * time.Second,
		ManualRefresh:    true,
	}
}

// Poller drives periodic reconciliation fetches for one reconciler. The
// interval is re-evaluated before every wait, so the cadence adapts as the
// local user joins and leaves. Stop (or context cancellation) tears the loop
// down without leaking a timer.
type Poller struct {
	rec    *Reconciler
	userID string
	cfg    PollConfig
	clock  clockwork.Clock
	logger zerolog.Logger

	refresh  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewPoller(rec *Reconciler, userID string, cfg PollConfig, clock clockwork.Clock, logger zerolog.Logger) *Poller {
	return &Poller{
		rec:     rec,
		userID:  userID,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Run polls until Stop is called or ctx is done. Fetch errors are not fatal;
// the next cycle retries naturally.
func (p *Poller) Run(ctx context.Context) {
	for {
		interval := p.cfg.UnjoinedInterval
		if p.rec.Joined(p.userID) {
			interval = p.cfg.JoinedInterval
		}

		var tick <-chan time.Time
		var timer clockwork.Timer
		if interval > 0 {
			timer = p.clock.NewTimer(interval)
			tick = timer.Chan()
		}

		select {
		case <-tick:
			p.fetch(ctx)
		case <-p.refresh:
			stopAndDrainTimer(timer)
			p.fetch(ctx)
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			return
		case <-p.done:
			stopAndDrainTimer(timer)
			return
		}
	}
}

// Refresh requests an immediate fetch, bypassing the interval. It is a no-op
// when manual refresh is disabled, and coalesces if one is already pending.
func (p *Poller) Refresh() {
	if !p.cfg.ManualRefresh {
		return
	}
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Stop ends the poll loop. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

func (p *Poller) fetch(ctx context.Context) {
	if _, err := p.rec.Fetch(ctx); err != nil {
		p.logger.Debug().Err(err).Msg("poll fetch failed, retrying next cycle")
	}
}

// stopAndDrainTimer stops a timer and drains its channel so a fired-but-unread
// tick cannot leak into the next loop iteration.
func stopAndDrainTimer(timer clockwork.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
