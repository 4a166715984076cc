package app

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quiz-lobby-service/internal/countdown"
	"quiz-lobby-service/internal/domain"
	"quiz-lobby-service/internal/notify"
	"quiz-lobby-service/internal/presence"
	"quiz-lobby-service/internal/session"
)

// Snapshot is the lobby state fanned out to subscribers on every change.
type Snapshot struct {
	SessionID    string                  `json:"sessionId"`
	Title        string                  `json:"title"`
	Status       domain.SessionStatus    `json:"status"`
	Countdown    int                     `json:"countdown"`
	Participants domain.ParticipantsView `json:"participants"`
	Leaderboard  *domain.Leaderboard     `json:"leaderboard,omitempty"`
}

// Lobby coordinates one session: its state machine, its participant
// reconciler, the countdown toward the scheduled start, and a fan-out of
// snapshots to subscribed clients.
type Lobby struct {
	session domain.QuizSession
	machine *session.Machine
	rec     *presence.Reconciler
	clock   clockwork.Clock
	logger  zerolog.Logger
	poll    presence.PollConfig

	cd *countdown.Synchronizer

	mu          sync.Mutex
	elapsed     bool
	leaderboard *domain.Leaderboard
	subscribers map[chan Snapshot]struct{}
	pollers     map[string]*pollerRef
	done        chan struct{}
	closeOnce   sync.Once
}

// pollerRef reference-counts one user's background poller across their open
// connections, so the first disconnect does not kill polling for the rest.
type pollerRef struct {
	poller *presence.Poller
	refs   int
}

// NewLobby builds a lobby for a session. When the session is scheduled with a
// timestamp, a countdown starts immediately; a timestamp already in the past
// fires the elapsed check right away.
func NewLobby(sess domain.QuizSession, api presence.API, notifier notify.Notifier, clock clockwork.Clock, logger zerolog.Logger, poll presence.PollConfig) *Lobby {
	logger = logger.With().Str("session_id", sess.ID).Logger()
	l := &Lobby{
		session:     sess,
		machine:     session.NewMachine(sess.ID, sess.Status, logger),
		rec:         presence.NewReconciler(api, sess.ID, notifier, clock, logger),
		clock:       clock,
		logger:      logger,
		poll:        poll,
		subscribers: make(map[chan Snapshot]struct{}),
		pollers:     make(map[string]*pollerRef),
		done:        make(chan struct{}),
	}
	l.rec.SetOnUpdate(func(domain.ParticipantsView) { l.broadcast() })

	if sess.Status == domain.StatusScheduled && sess.ScheduledAt != nil {
		l.cd = countdown.New(clock, *sess.ScheduledAt)
		go l.watchCountdown()
	}
	return l
}

// Session returns the lobby's session record with its live status.
func (l *Lobby) Session() domain.QuizSession {
	sess := l.session
	sess.Status = l.machine.Status()
	return sess
}

// Countdown returns seconds remaining until the scheduled start, 0 when the
// session has no schedule or the countdown has elapsed.
func (l *Lobby) Countdown() int {
	if l.cd == nil {
		return 0
	}
	return l.cd.Remaining()
}

// Join admits a user after validating the join token against the session.
// Token and status checks are local rejections; no network round-trip is
// spent on them.
func (l *Lobby) Join(ctx context.Context, userID, token string) error {
	if l.session.JoinToken != "" && token != l.session.JoinToken {
		return domain.ErrBadJoinToken
	}
	switch l.machine.Status() {
	case domain.StatusCompleted, domain.StatusCancelled:
		return domain.ErrSessionClosed
	}
	if err := l.rec.Join(ctx, userID); err != nil {
		return err
	}
	l.tryAutoStart()
	return nil
}

// Leave marks the user offline.
func (l *Lobby) Leave(ctx context.Context, userID string) error {
	return l.rec.Leave(ctx, userID)
}

// Participants returns the cached roster.
func (l *Lobby) Participants() domain.ParticipantsView {
	return l.rec.View()
}

// Refresh reconciles with the authoritative store on demand, bypassing any
// poll interval.
func (l *Lobby) Refresh(ctx context.Context) (domain.ParticipantsView, error) {
	return l.rec.Fetch(ctx)
}

// Start activates the session on explicit host action. Non-hosts are rejected
// locally with ErrPermissionDenied.
func (l *Lobby) Start(userID string) error {
	if userID != l.session.HostID {
		return domain.ErrPermissionDenied
	}
	if err := l.machine.Activate(); err != nil {
		return err
	}
	l.cancelCountdown()
	l.broadcast()
	return nil
}

// CancelSession moves the session to cancelled (host only) and stops the
// countdown so no elapsed signal fires afterwards.
func (l *Lobby) CancelSession(userID string) error {
	if userID != l.session.HostID {
		return domain.ErrPermissionDenied
	}
	if err := l.machine.Cancel(); err != nil {
		return err
	}
	l.cancelCountdown()
	l.broadcast()
	return nil
}

// Complete accepts the end-of-quiz signal idempotently and publishes the final
// leaderboard. The supplier is only invoked once the transition passes the
// state-machine guard, so an invalid signal never reaches the results store.
func (l *Lobby) Complete(load func() (domain.Leaderboard, error)) error {
	if err := l.machine.Complete(); err != nil {
		return err
	}
	lb, err := load()
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.leaderboard = &lb
	l.mu.Unlock()
	l.broadcast()
	return nil
}

// Subscribe returns a channel receiving lobby snapshots, starting with the
// current one. The caller must invoke cancel to avoid leaks.
func (l *Lobby) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	snap := l.snapshot()

	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	ch <- snap
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if _, ok := l.subscribers[ch]; ok {
			delete(l.subscribers, ch)
			close(ch)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}

// StartPoller begins adaptive background polling on behalf of userID. The
// returned poller supports manual Refresh. Concurrent connections for the
// same user share one poller; it stops once every holder has called
// StopPoller, or with the lobby.
func (l *Lobby) StartPoller(ctx context.Context, userID string) *presence.Poller {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ref, ok := l.pollers[userID]; ok {
		ref.refs++
		return ref.poller
	}
	p := presence.NewPoller(l.rec, userID, l.poll, l.clock, l.logger)
	l.pollers[userID] = &pollerRef{poller: p, refs: 1}
	go p.Run(ctx)
	return p
}

// StopPoller releases one hold on userID's poller; the poller itself stops
// only when the last connection releases it.
func (l *Lobby) StopPoller(userID string) {
	l.mu.Lock()
	ref, ok := l.pollers[userID]
	if ok {
		ref.refs--
		if ref.refs > 0 {
			l.mu.Unlock()
			return
		}
		delete(l.pollers, userID)
	}
	l.mu.Unlock()
	if ok {
		ref.poller.Stop()
	}
}

// Close cancels the countdown, stops all pollers, and closes every
// subscription. Safe to call more than once.
func (l *Lobby) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.cancelCountdown()

		l.mu.Lock()
		pollers := l.pollers
		l.pollers = make(map[string]*pollerRef)
		subs := l.subscribers
		l.subscribers = make(map[chan Snapshot]struct{})
		l.mu.Unlock()

		for _, ref := range pollers {
			ref.poller.Stop()
		}
		for ch := range subs {
			close(ch)
		}
	})
}

func (l *Lobby) watchCountdown() {
	select {
	case <-l.cd.Elapsed():
		l.mu.Lock()
		l.elapsed = true
		l.mu.Unlock()
		l.tryAutoStart()
		l.broadcast()
	case <-l.done:
	}
}

// tryAutoStart activates a scheduled session once the countdown has elapsed
// and at least one participant is online. Called on elapse and again after
// every successful join, so a late joiner still triggers the start.
func (l *Lobby) tryAutoStart() {
	l.mu.Lock()
	elapsed := l.elapsed
	l.mu.Unlock()

	online := l.rec.View().Online
	if !l.machine.StartEligible(false, elapsed, online) {
		return
	}
	if err := l.machine.Activate(); err != nil {
		// Lost the race to an explicit start or cancel.
		l.logger.Debug().Err(err).Msg("auto-start skipped")
		return
	}
	l.logger.Info().Int("online", online).Msg("session auto-started after countdown")
	l.broadcast()
}

func (l *Lobby) cancelCountdown() {
	if l.cd != nil {
		l.cd.Cancel()
	}
}

func (l *Lobby) snapshot() Snapshot {
	l.mu.Lock()
	lb := l.leaderboard
	l.mu.Unlock()
	return Snapshot{
		SessionID:    l.session.ID,
		Title:        l.session.Title,
		Status:       l.machine.Status(),
		Countdown:    l.Countdown(),
		Participants: l.rec.View(),
		Leaderboard:  lb,
	}
}

func (l *Lobby) broadcast() {
	snap := l.snapshot()
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot so a slow client never
			// blocks the fan-out.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
