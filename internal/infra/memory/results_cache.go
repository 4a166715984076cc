package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-lobby-service/internal/domain"
)

// ResultsLoader fetches completed quiz results from a backing store (results
// API, Postgres, etc).
type ResultsLoader interface {
	LoadResults(ctx context.Context, sessionID string) ([]domain.QuizResult, error)
}

// ResultsCache caches result rows with TTL to avoid hammering the backing
// store on every leaderboard refresh. Results are append-only, so a short TTL
// only delays new finishers, never shows wrong rows.
type ResultsCache struct {
	loader ResultsLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedResults
}

type cachedResults struct {
	results   []domain.QuizResult
	expiresAt time.Time
}

func NewResultsCache(loader ResultsLoader, ttl time.Duration) *ResultsCache {
	return &ResultsCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedResults),
	}
}

func (c *ResultsCache) Results(ctx context.Context, sessionID string) ([]domain.QuizResult, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[sessionID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.results, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(sessionID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[sessionID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.results, nil
		}
		c.mu.RUnlock()

		results, err := c.loader.LoadResults(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[sessionID] = cachedResults{
			results:   results,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizResult), nil
}

func (c *ResultsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticResultsLoader serves results from an in-memory map (tests/demos).
type StaticResultsLoader struct {
	mu      sync.RWMutex
	results map[string][]domain.QuizResult
}

func NewStaticResultsLoader(results map[string][]domain.QuizResult) *StaticResultsLoader {
	if results == nil {
		results = make(map[string][]domain.QuizResult)
	}
	return &StaticResultsLoader{results: results}
}

func (l *StaticResultsLoader) LoadResults(_ context.Context, sessionID string) ([]domain.QuizResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.results[sessionID], nil
}

// Append records a completed attempt, mirroring the append-only results table.
func (l *StaticResultsLoader) Append(result domain.QuizResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results[result.SessionID] = append(l.results[result.SessionID], result)
}
