package leaderboard

import (
	"testing"
	"time"

	"quiz-lobby-service/internal/domain"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func result(user string, score, timeTaken int, completedAt time.Time) domain.QuizResult {
	return domain.QuizResult{
		SessionID:    "s1",
		UserID:       user,
		Score:        score,
		TimeTakenSec: timeTaken,
		CompletedAt:  completedAt,
	}
}

func TestScoreDescendingTimeAscending(t *testing.T) {
	lb := Aggregate("s1", []domain.QuizResult{
		result("A", 90, 120, base),
		result("B", 90, 100, base),
		result("C", 95, 200, base),
	}, 3, base)

	want := []struct {
		user  string
		score int
		rank  int
	}{
		{"C", 95, 1},
		{"B", 90, 2},
		{"A", 90, 3},
	}
	if len(lb.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(lb.Entries))
	}
	for i, w := range want {
		got := lb.Entries[i]
		if got.UserID != w.user || got.Score != w.score || got.Rank != w.rank {
			t.Fatalf("entry %d: expected %+v, got %+v", i, w, got)
		}
	}
}

func TestEqualScoreEqualTimeRanksAreDistinctAndDeterministic(t *testing.T) {
	results := []domain.QuizResult{
		result("bob", 80, 60, base),
		result("alice", 80, 60, base),
	}
	lb := Aggregate("s1", results, 2, base)
	if lb.Entries[0].UserID != "alice" || lb.Entries[0].Rank != 1 {
		t.Fatalf("expected alice ranked 1 by user-id tie-break, got %+v", lb.Entries[0])
	}
	if lb.Entries[1].Rank != 2 {
		t.Fatalf("tied entries still get distinct ranks, got %+v", lb.Entries[1])
	}

	// Same input in reverse order yields the same table.
	again := Aggregate("s1", []domain.QuizResult{results[1], results[0]}, 2, base)
	for i := range lb.Entries {
		if lb.Entries[i] != again.Entries[i] {
			t.Fatalf("ordering depends on input order: %+v vs %+v", lb.Entries[i], again.Entries[i])
		}
	}
}

func TestLatestAttemptWins(t *testing.T) {
	lb := Aggregate("s1", []domain.QuizResult{
		result("A", 95, 90, base),
		result("A", 70, 110, base.Add(10*time.Minute)), // later but worse
	}, 1, base)

	if len(lb.Entries) != 1 {
		t.Fatalf("expected one entry per participant, got %d", len(lb.Entries))
	}
	if lb.Entries[0].Score != 70 {
		t.Fatalf("expected the latest attempt to count, got score %d", lb.Entries[0].Score)
	}
}

func TestSummaryStatistics(t *testing.T) {
	lb := Aggregate("s1", []domain.QuizResult{
		result("A", 90, 100, base),
		result("B", 85, 100, base),
	}, 5, base)

	if lb.Summary.Participants != 5 {
		t.Fatalf("expected 5 participants, got %d", lb.Summary.Participants)
	}
	if lb.Summary.Completed != 2 {
		t.Fatalf("expected 2 completed, got %d", lb.Summary.Completed)
	}
	// (90+85)/2 = 87.5 rounds to 88.
	if lb.Summary.MeanScore != 88 {
		t.Fatalf("expected mean 88, got %d", lb.Summary.MeanScore)
	}
}

func TestEmptyResults(t *testing.T) {
	lb := Aggregate("s1", nil, 0, base)
	if len(lb.Entries) != 0 || lb.Summary.MeanScore != 0 || lb.Summary.Completed != 0 {
		t.Fatalf("expected empty leaderboard, got %+v", lb)
	}
}
