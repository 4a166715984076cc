package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"quiz-lobby-service/internal/domain"
)

// PresenceStore is an in-memory authoritative presence store, used by the
// serve command when no upstream presence URL is configured and by tests.
// Rows are soft presence: leave flips IsOnline, it never deletes.
type PresenceStore struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	rosters map[string]map[string]*domain.SessionParticipant
}

func NewPresenceStore(clock clockwork.Clock) *PresenceStore {
	return &PresenceStore{
		clock:   clock,
		rosters: make(map[string]map[string]*domain.SessionParticipant),
	}
}

func (s *PresenceStore) Fetch(_ context.Context, sessionID string) (domain.ParticipantsView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roster := s.rosters[sessionID]
	view := domain.ParticipantsView{Participants: make([]domain.SessionParticipant, 0, len(roster))}
	for _, p := range roster {
		view.Participants = append(view.Participants, *p)
		view.Total++
		if p.IsOnline {
			view.Online++
		}
	}
	sort.Slice(view.Participants, func(i, j int) bool {
		if !view.Participants[i].JoinedAt.Equal(view.Participants[j].JoinedAt) {
			return view.Participants[i].JoinedAt.Before(view.Participants[j].JoinedAt)
		}
		return view.Participants[i].UserID < view.Participants[j].UserID
	})
	return view, nil
}

func (s *PresenceStore) Join(_ context.Context, sessionID, userID string) error {
	if userID == "" {
		return domain.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, ok := s.rosters[sessionID]
	if !ok {
		roster = make(map[string]*domain.SessionParticipant)
		s.rosters[sessionID] = roster
	}

	now := s.clock.Now()
	if p, ok := roster[userID]; ok {
		p.IsOnline = true
		p.LastSeen = now
		return nil
	}
	roster[userID] = &domain.SessionParticipant{
		SessionID: sessionID,
		UserID:    userID,
		JoinedAt:  now,
		IsOnline:  true,
		LastSeen:  now,
	}
	return nil
}

func (s *PresenceStore) Leave(_ context.Context, sessionID, userID string) error {
	if userID == "" {
		return domain.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.rosters[sessionID][userID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if p.IsOnline {
		p.IsOnline = false
		p.LastSeen = s.clock.Now()
	}
	return nil
}
