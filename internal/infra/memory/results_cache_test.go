package memory

import (
	"context"
	"testing"
	"time"

	"quiz-lobby-service/internal/domain"
)

type countingLoader struct {
	ResultsLoader
	calls int
}

func (l *countingLoader) LoadResults(ctx context.Context, sessionID string) ([]domain.QuizResult, error) {
	l.calls++
	return l.ResultsLoader.LoadResults(ctx, sessionID)
}

func TestResultsCacheCaches(t *testing.T) {
	loader := &countingLoader{
		ResultsLoader: NewStaticResultsLoader(map[string][]domain.QuizResult{
			"s1": {{SessionID: "s1", UserID: "u1", Score: 80}},
		}),
	}
	cache := NewResultsCache(loader, time.Minute)

	results, err := cache.Results(context.Background(), "s1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 1 || loader.calls != 1 {
		t.Fatalf("expected one row via one load, got rows=%d calls=%d", len(results), loader.calls)
	}

	if _, err := cache.Results(context.Background(), "s1"); err != nil {
		t.Fatalf("results 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestResultsCacheExpires(t *testing.T) {
	loader := &countingLoader{ResultsLoader: NewStaticResultsLoader(nil)}
	cache := NewResultsCache(loader, time.Minute)

	now := time.Now()
	cache.clock = func() time.Time { return now }

	if _, err := cache.Results(context.Background(), "s1"); err != nil {
		t.Fatalf("results: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.Results(context.Background(), "s1"); err != nil {
		t.Fatalf("results after expiry: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after TTL, calls=%d", loader.calls)
	}
}
