package leaderboard

import (
	"math"
	"sort"
	"time"

	"quiz-lobby-service/internal/domain"
)

// Aggregate ranks the completed results of a session. It is a pure function of
// its input snapshot: no mutation, safe to recompute on every refresh.
//
// When a participant has several completed attempts, the latest one counts.
// Ordering is score descending, then time taken ascending (faster wins a tie),
// then user ID ascending so equal score-and-time pairs still rank
// deterministically. Ranks are 1-based sequential positions, so tied entries
// receive distinct ranks.
// participants is the session roster size; it is floored to the completed
// count so the summary never reports fewer participants than finishers.
func Aggregate(sessionID string, results []domain.QuizResult, participants int, now time.Time) domain.Leaderboard {
	latest := latestPerUser(results)

	entries := make([]domain.LeaderboardEntry, 0, len(latest))
	scoreSum := 0
	for _, r := range latest {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:       r.UserID,
			Username:     r.Username,
			Score:        r.Score,
			TimeTakenSec: r.TimeTakenSec,
		})
		scoreSum += r.Score
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].TimeTakenSec != entries[j].TimeTakenSec {
			return entries[i].TimeTakenSec < entries[j].TimeTakenSec
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	mean := 0
	if len(entries) > 0 {
		mean = int(math.Round(float64(scoreSum) / float64(len(entries))))
	}
	if participants < len(entries) {
		participants = len(entries)
	}

	return domain.Leaderboard{
		SessionID: sessionID,
		Entries:   entries,
		Summary: domain.LeaderboardSummary{
			Participants: participants,
			Completed:    len(entries),
			MeanScore:    mean,
		},
		UpdatedAt: now,
	}
}

func latestPerUser(results []domain.QuizResult) []domain.QuizResult {
	byUser := make(map[string]domain.QuizResult, len(results))
	for _, r := range results {
		prev, ok := byUser[r.UserID]
		if !ok || r.CompletedAt.After(prev.CompletedAt) {
			byUser[r.UserID] = r
		}
	}
	out := make([]domain.QuizResult, 0, len(byUser))
	for _, r := range byUser {
		out = append(out, r)
	}
	return out
}
