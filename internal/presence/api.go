package presence

import (
	"context"

	"quiz-lobby-service/internal/domain"
)

// API is the authoritative presence store for session participants. The
// engine treats it as an external, possibly-concurrent actor and converges on
// its state by re-fetching.
type API interface {
	// Fetch returns the current roster for a session.
	Fetch(ctx context.Context, sessionID string) (domain.ParticipantsView, error)
	// Join marks-or-inserts the participant as online.
	Join(ctx context.Context, sessionID, userID string) error
	// Leave marks the participant offline. Rows are soft presence; they are
	// not removed while the session is live.
	Leave(ctx context.Context, sessionID, userID string) error
}
