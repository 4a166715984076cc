package presence

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quiz-lobby-service/internal/domain"
	"quiz-lobby-service/internal/notify"
)

// Reconciler owns the cached participant view for one session. All mutations
// go through Join/Leave, which apply an optimistic local update before the
// authoritative write and either commit (then re-fetch to reconcile) or roll
// back to the pre-mutation snapshot.
//
// Every operation draws a monotonic sequence number. A fetch that was issued
// before the most recent local mutation is discarded on arrival, so stale
// authoritative reads never clobber a newer optimistic state.
type Reconciler struct {
	api      API
	session  string
	notifier notify.Notifier
	clock    clockwork.Clock
	logger   zerolog.Logger

	mu       sync.Mutex
	view     domain.ParticipantsView
	seq      uint64 // last issued operation number
	mutSeq   uint64 // operation number of the newest applied local mutation
	onUpdate func(domain.ParticipantsView)
}

// NewReconciler builds a reconciler for sessionID with an empty cached view.
func NewReconciler(api API, sessionID string, notifier notify.Notifier, clock clockwork.Clock, logger zerolog.Logger) *Reconciler {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Reconciler{
		api:      api,
		session:  sessionID,
		notifier: notifier,
		clock:    clock,
		logger:   logger.With().Str("session_id", sessionID).Logger(),
	}
}

// SetOnUpdate registers a callback invoked, outside the reconciler lock,
// whenever the cached view changes. Set it before the first mutation or poll.
func (r *Reconciler) SetOnUpdate(f func(domain.ParticipantsView)) {
	r.mu.Lock()
	r.onUpdate = f
	r.mu.Unlock()
}

func (r *Reconciler) publish() {
	r.mu.Lock()
	f := r.onUpdate
	view := r.view.Clone()
	r.mu.Unlock()
	if f != nil {
		f(view)
	}
}

// View returns the current cached roster.
func (r *Reconciler) View() domain.ParticipantsView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view.Clone()
}

// Joined reports whether userID is currently online in the cached view.
func (r *Reconciler) Joined(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.view.Find(userID)
	return idx >= 0 && r.view.Participants[idx].IsOnline
}

// Join marks the user online. Already-online users are a no-op success.
// The optimistic update is visible immediately; the authoritative write either
// commits it (followed by a reconciling re-fetch) or rolls it back.
func (r *Reconciler) Join(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrEmptyUserID
	}

	r.mu.Lock()
	if idx := r.view.Find(userID); idx >= 0 && r.view.Participants[idx].IsOnline {
		r.mu.Unlock()
		return nil
	}
	st := r.stageLocked(func(v *domain.ParticipantsView) {
		markOnline(v, r.session, userID, r.clock.Now())
	})
	r.mu.Unlock()
	r.publish()

	if err := r.api.Join(ctx, r.session, userID); err != nil {
		r.rollback(st, "join", err)
		return err
	}

	r.commit(st)
	r.notifier.Notify(notify.Notice{Success: true, Message: "joined session"})
	// Reconcile with the authoritative roster; on failure the optimistic
	// view stays as last-known-good until the next poll.
	_, _ = r.Fetch(ctx)
	return nil
}

// Leave marks the user offline, symmetric to Join. Already-offline users are a
// no-op success.
func (r *Reconciler) Leave(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrEmptyUserID
	}

	r.mu.Lock()
	idx := r.view.Find(userID)
	if idx < 0 || !r.view.Participants[idx].IsOnline {
		r.mu.Unlock()
		return nil
	}
	st := r.stageLocked(func(v *domain.ParticipantsView) {
		markOffline(v, userID, r.clock.Now())
	})
	r.mu.Unlock()
	r.publish()

	if err := r.api.Leave(ctx, r.session, userID); err != nil {
		r.rollback(st, "leave", err)
		return err
	}

	r.commit(st)
	r.notifier.Notify(notify.Notice{Success: true, Message: "left session"})
	_, _ = r.Fetch(ctx)
	return nil
}

// Fetch reconciles the cached view with an authoritative read. It never
// blocks on in-flight mutations. A read failure leaves the last-known-good
// view in place and returns it alongside the error.
func (r *Reconciler) Fetch(ctx context.Context) (domain.ParticipantsView, error) {
	r.mu.Lock()
	r.seq++
	issued := r.seq
	r.mu.Unlock()

	view, err := r.api.Fetch(ctx, r.session)

	r.mu.Lock()
	if err != nil {
		cached := r.view.Clone()
		r.mu.Unlock()
		return cached, err
	}
	if issued < r.mutSeq {
		r.logger.Debug().
			Uint64("issued", issued).
			Uint64("mutation", r.mutSeq).
			Msg("discarding stale fetch response")
		cached := r.view.Clone()
		r.mu.Unlock()
		return cached, nil
	}
	r.view = view
	adopted := r.view.Clone()
	r.mu.Unlock()
	r.publish()
	return adopted, nil
}

// staged captures one optimistic mutation: the pre-mutation snapshot plus the
// sequence number the mutation was applied under. It is the snapshot /
// apply / commit-or-rollback primitive shared by Join and Leave.
type staged struct {
	prev domain.ParticipantsView
	seq  uint64
}

// stageLocked snapshots the view, applies the mutation, and records it as the
// newest local mutation. Caller holds r.mu.
func (r *Reconciler) stageLocked(apply func(*domain.ParticipantsView)) staged {
	r.seq++
	st := staged{prev: r.view.Clone(), seq: r.seq}
	apply(&r.view)
	r.mutSeq = r.seq
	return st
}

// commit keeps the optimistic state.
func (r *Reconciler) commit(st staged) {
	r.logger.Debug().Uint64("seq", st.seq).Msg("optimistic mutation committed")
}

// rollback restores the pre-mutation snapshot and notifies the failure.
func (r *Reconciler) rollback(st staged, op string, cause error) {
	r.mu.Lock()
	r.view = st.prev
	r.mu.Unlock()
	r.publish()

	kind := domain.Classify(cause)
	r.logger.Warn().
		Err(cause).
		Str("op", op).
		Str("kind", string(kind)).
		Uint64("seq", st.seq).
		Msg("optimistic mutation rolled back")
	r.notifier.Notify(notify.Notice{Message: "failed to " + op + " session", Kind: kind})
}

func markOnline(v *domain.ParticipantsView, sessionID, userID string, now time.Time) {
	if idx := v.Find(userID); idx >= 0 {
		if !v.Participants[idx].IsOnline {
			v.Participants[idx].IsOnline = true
			v.Participants[idx].LastSeen = now
			v.Online++
		}
		return
	}
	v.Participants = append(v.Participants, domain.SessionParticipant{
		SessionID: sessionID,
		UserID:    userID,
		JoinedAt:  now,
		IsOnline:  true,
		LastSeen:  now,
	})
	v.Total++
	v.Online++
}

func markOffline(v *domain.ParticipantsView, userID string, now time.Time) {
	idx := v.Find(userID)
	if idx < 0 || !v.Participants[idx].IsOnline {
		return
	}
	v.Participants[idx].IsOnline = false
	v.Participants[idx].LastSeen = now
	v.Online--
}
