package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-lobby-service/internal/domain"
)

// ResultsLoader fetches completed quiz results from a backing store (results
// API, Postgres, etc).
type ResultsLoader interface {
	LoadResults(ctx context.Context, sessionID string) ([]domain.QuizResult, error)
}

// ResultsCache caches a session's result rows in Redis as a JSON blob:
//
//	SET session:{sessionID}:results {json} EX ttl
//
// and falls back to a loader on cache miss. Result rows are append-only, so
// a short TTL only delays new finishers.
type ResultsCache struct {
	client *redis.Client
	loader ResultsLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewResultsCache(client *redis.Client, loader ResultsLoader, ttl time.Duration) *ResultsCache {
	return &ResultsCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ResultsCache) Results(ctx context.Context, sessionID string) ([]domain.QuizResult, error) {
	key := c.key(sessionID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var results []domain.QuizResult
		if err := json.Unmarshal(raw, &results); err == nil {
			return results, nil
		}
		// Corrupt entry; fall through and rebuild it.
	}

	result, err, _ := c.sf.Do(sessionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var results []domain.QuizResult
			if err := json.Unmarshal(raw, &results); err == nil {
				return results, nil
			}
		}

		results, err := c.loader.LoadResults(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(results); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizResult), nil
}

func (c *ResultsCache) key(sessionID string) string {
	return "session:" + sessionID + ":results"
}

func (c *ResultsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
