package session

import (
	"sync"

	"github.com/rs/zerolog"

	"quiz-lobby-service/internal/domain"
)

// Machine tracks a session's lifecycle status and guards its transitions.
// Status moves monotonically along scheduled -> active -> completed, with
// cancelled absorbing from scheduled or active. A violating transition is
// rejected and logged, never applied.
type Machine struct {
	mu        sync.Mutex
	sessionID string
	status    domain.SessionStatus
	logger    zerolog.Logger
}

// NewMachine starts a machine at the session's current status.
func NewMachine(sessionID string, status domain.SessionStatus, logger zerolog.Logger) *Machine {
	if status == "" {
		status = domain.StatusScheduled
	}
	return &Machine{
		sessionID: sessionID,
		status:    status,
		logger:    logger.With().Str("session_id", sessionID).Logger(),
	}
}

// Status returns the current lifecycle status.
func (m *Machine) Status() domain.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// StartEligible reports whether a scheduled session may become active:
// either the host demands it, or the countdown has elapsed and at least one
// participant is online.
func (m *Machine) StartEligible(hostAction, elapsed bool, online int) bool {
	if m.Status() != domain.StatusScheduled {
		return false
	}
	if hostAction {
		return true
	}
	return elapsed && online > 0
}

// Activate moves scheduled -> active.
func (m *Machine) Activate() error {
	return m.transition(domain.StatusActive)
}

// Complete moves active -> completed. Repeated signals from the quiz-taking
// flow are no-ops once completed.
func (m *Machine) Complete() error {
	return m.transition(domain.StatusCompleted)
}

// Cancel moves scheduled or active -> cancelled. Cancelling twice is a no-op.
func (m *Machine) Cancel() error {
	return m.transition(domain.StatusCancelled)
}

var allowed = map[domain.SessionStatus][]domain.SessionStatus{
	domain.StatusScheduled: {domain.StatusActive, domain.StatusCancelled},
	domain.StatusActive:    {domain.StatusCompleted, domain.StatusCancelled},
	domain.StatusCompleted: {},
	domain.StatusCancelled: {},
}

func (m *Machine) transition(to domain.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Repeating a transition into an absorbing state is a no-op.
	if m.status == to && (to == domain.StatusCompleted || to == domain.StatusCancelled) {
		return nil
	}

	for _, next := range allowed[m.status] {
		if next == to {
			m.logger.Info().
				Str("from", string(m.status)).
				Str("to", string(to)).
				Msg("session transition")
			m.status = to
			return nil
		}
	}

	err := &domain.InvalidTransitionError{From: m.status, To: to}
	m.logger.Warn().
		Str("from", string(m.status)).
		Str("to", string(to)).
		Msg("rejected session transition")
	return err
}
