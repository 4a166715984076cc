package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-lobby-service/internal/domain"
	"quiz-lobby-service/internal/infra/memory"
)

func TestResultsCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		ResultsLoader: memory.NewStaticResultsLoader(map[string][]domain.QuizResult{
			"s1": {{SessionID: "s1", UserID: "u1", Score: 85, TimeTakenSec: 90}},
		}),
	}
	cache := NewResultsCache(client, loader, time.Minute)

	results, err := cache.Results(context.Background(), "s1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 1 || results[0].Score != 85 {
		t.Fatalf("unexpected results %+v", results)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("session:s1:results") {
		t.Fatalf("expected cached redis key")
	}

	// Second call should hit cache, loader not incremented.
	_, _ = cache.Results(context.Background(), "s1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	ResultsLoader
	calls int
}

func (l *countingLoader) LoadResults(ctx context.Context, sessionID string) ([]domain.QuizResult, error) {
	l.calls++
	return l.ResultsLoader.LoadResults(ctx, sessionID)
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
