package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quiz-lobby-service/internal/domain"
	"quiz-lobby-service/internal/leaderboard"
	"quiz-lobby-service/internal/notify"
	"quiz-lobby-service/internal/presence"
)

// LobbyRepository abstracts how live lobbies are tracked (in-memory, Redis
// liveness markers, etc).
type LobbyRepository interface {
	GetOrCreate(sessionID string, build func() *Lobby) *Lobby
	Get(sessionID string) (*Lobby, bool)
	Delete(sessionID string)
}

// ResultsRepository supplies the completed results the leaderboard is
// computed from.
type ResultsRepository interface {
	Results(ctx context.Context, sessionID string) ([]domain.QuizResult, error)
}

// LobbyService contains the session-coordination use cases.
type LobbyService struct {
	lobbies  LobbyRepository
	presence presence.API
	results  ResultsRepository
	notifier notify.Notifier
	clock    clockwork.Clock
	logger   zerolog.Logger
	poll     presence.PollConfig
}

func NewLobbyService(lobbies LobbyRepository, api presence.API, results ResultsRepository, notifier notify.Notifier, clock clockwork.Clock, logger zerolog.Logger, poll presence.PollConfig) *LobbyService {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &LobbyService{
		lobbies:  lobbies,
		presence: api,
		results:  results,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		poll:     poll,
	}
}

// CreateSession mints a new scheduled session with a fresh ID and join token
// and opens its lobby.
func (s *LobbyService) CreateSession(title, hostID, videoRef string, scheduledAt *time.Time) domain.QuizSession {
	sess := domain.QuizSession{
		ID:          uuid.NewString(),
		Title:       title,
		VideoRef:    videoRef,
		ScheduledAt: scheduledAt,
		Status:      domain.StatusScheduled,
		HostID:      hostID,
		JoinToken:   uuid.NewString(),
		CreatedAt:   s.clock.Now(),
	}
	s.Open(sess)
	return sess
}

// Open returns the live lobby for a session, creating one if needed.
func (s *LobbyService) Open(sess domain.QuizSession) *Lobby {
	return s.lobbies.GetOrCreate(sess.ID, func() *Lobby {
		return NewLobby(sess, s.presence, s.notifier, s.clock, s.logger, s.poll)
	})
}

// Lobby looks up a live lobby.
func (s *LobbyService) Lobby(sessionID string) (*Lobby, error) {
	lobby, ok := s.lobbies.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return lobby, nil
}

// Join admits userID to the session's lobby.
func (s *LobbyService) Join(ctx context.Context, sessionID, userID, token string) error {
	lobby, err := s.Lobby(sessionID)
	if err != nil {
		return err
	}
	return lobby.Join(ctx, userID, token)
}

// Leave marks userID offline in the session's lobby.
func (s *LobbyService) Leave(ctx context.Context, sessionID, userID string) error {
	lobby, err := s.Lobby(sessionID)
	if err != nil {
		return err
	}
	return lobby.Leave(ctx, userID)
}

// Participants returns the cached roster for a session.
func (s *LobbyService) Participants(sessionID string) (domain.ParticipantsView, error) {
	lobby, err := s.Lobby(sessionID)
	if err != nil {
		return domain.ParticipantsView{}, err
	}
	return lobby.Participants(), nil
}

// Refresh forces a reconciling fetch for a session, bypassing poll intervals.
func (s *LobbyService) Refresh(ctx context.Context, sessionID string) (domain.ParticipantsView, error) {
	lobby, err := s.Lobby(sessionID)
	if err != nil {
		return domain.ParticipantsView{}, err
	}
	return lobby.Refresh(ctx)
}

// Start activates a session on explicit host action.
func (s *LobbyService) Start(sessionID, userID string) error {
	lobby, err := s.Lobby(sessionID)
	if err != nil {
		return err
	}
	return lobby.Start(userID)
}

// CancelSession cancels a session (host only).
func (s *LobbyService) CancelSession(sessionID, userID string) error {
	lobby, err := s.Lobby(sessionID)
	if err != nil {
		return err
	}
	return lobby.CancelSession(userID)
}

// Complete accepts the end-of-quiz signal from the quiz-taking flow and
// publishes the final leaderboard. Repeated signals are no-ops.
func (s *LobbyService) Complete(ctx context.Context, sessionID string) error {
	lobby, err := s.Lobby(sessionID)
	if err != nil {
		return err
	}
	return lobby.Complete(func() (domain.Leaderboard, error) {
		return s.Leaderboard(ctx, sessionID)
	})
}

// Leaderboard aggregates the session's completed results, fresh on every call.
func (s *LobbyService) Leaderboard(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	lobby, err := s.Lobby(sessionID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	results, err := s.results.Results(ctx, sessionID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	roster := lobby.Participants()
	return leaderboard.Aggregate(sessionID, results, roster.Total, s.clock.Now()), nil
}

// Close tears down a lobby and forgets it.
func (s *LobbyService) Close(sessionID string) {
	if lobby, ok := s.lobbies.Get(sessionID); ok {
		lobby.Close()
	}
	s.lobbies.Delete(sessionID)
}
