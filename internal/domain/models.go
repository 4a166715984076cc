package domain

import "time"

// SessionStatus is the lifecycle state of a quiz session.
type SessionStatus string

const (
	StatusScheduled SessionStatus = "scheduled"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// QuizSession is one scheduled group quiz instance.
type QuizSession struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	VideoRef    string        `json:"videoRef,omitempty"`
	ScheduledAt *time.Time    `json:"scheduledAt,omitempty"`
	Status      SessionStatus `json:"status"`
	HostID      string        `json:"hostId"`
	JoinToken   string        `json:"joinToken"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// SessionParticipant is a user associated with a session, with soft presence.
// Rows are unique per (session, user) and are never hard-deleted while the
// session is live; leave flips IsOnline instead.
type SessionParticipant struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email,omitempty"`
	Username  string    `json:"username,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`
	IsOnline  bool      `json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
}

// ParticipantsView is the derived roster for a session. It is recomputed from
// the authoritative store on every fetch; Online never exceeds Total.
type ParticipantsView struct {
	Participants []SessionParticipant `json:"participants"`
	Total        int                  `json:"total"`
	Online       int                  `json:"online"`
}

// Clone returns a deep copy, used to snapshot the view before an optimistic
// mutation so a failed write can restore it.
func (v ParticipantsView) Clone() ParticipantsView {
	out := ParticipantsView{Total: v.Total, Online: v.Online}
	if v.Participants != nil {
		out.Participants = make([]SessionParticipant, len(v.Participants))
		copy(out.Participants, v.Participants)
	}
	return out
}

// Find returns the index of the participant row for userID, or -1.
func (v ParticipantsView) Find(userID string) int {
	for i := range v.Participants {
		if v.Participants[i].UserID == userID {
			return i
		}
	}
	return -1
}

// AnswerRecord is one answered question inside a result.
type AnswerRecord struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
	Correct    bool   `json:"correct"`
}

// QuizResult is one completed attempt. Rows are append-only; a participant may
// have several attempts for the same session.
type QuizResult struct {
	SessionID      string         `json:"sessionId"`
	UserID         string         `json:"userId"`
	Username       string         `json:"username,omitempty"`
	Score          int            `json:"score"` // 0-100
	CorrectAnswers int            `json:"correctAnswers"`
	TotalQuestions int            `json:"totalQuestions"`
	Answers        []AnswerRecord `json:"answers,omitempty"`
	TimeTakenSec   int            `json:"timeTakenSec"`
	CompletedAt    time.Time      `json:"completedAt"`
}

// LeaderboardEntry is one ranked row, produced fresh on every aggregation.
type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"userId"`
	Username     string `json:"username,omitempty"`
	Score        int    `json:"score"`
	TimeTakenSec int    `json:"timeTakenSec"`
}

// LeaderboardSummary carries the aggregate statistics for a session.
type LeaderboardSummary struct {
	Participants int `json:"participants"`
	Completed    int `json:"completed"`
	MeanScore    int `json:"meanScore"`
}

// Leaderboard is the ranked table plus summary for a session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Entries   []LeaderboardEntry `json:"entries"`
	Summary   LeaderboardSummary `json:"summary"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
