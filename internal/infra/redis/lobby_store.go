package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-lobby-service/internal/app"
)

// LobbyStore is a Redis-aware implementation of app.LobbyRepository.
// Notes:
//   - Lobbies stay in a local in-memory map; they carry live timers and
//     subscriber channels that cannot cross processes.
//   - Redis marks lobby liveness so sibling instances (and operators) can see
//     which sessions currently have an open lobby.
//   - For true distribution you'd pair this with a pub/sub projector that
//     fans snapshots out across instances.
type LobbyStore struct {
	client  *redis.Client
	ttl     time.Duration
	mu      sync.RWMutex
	lobbies map[string]*app.Lobby
}

func NewLobbyStore(client *redis.Client, ttl time.Duration) *LobbyStore {
	return &LobbyStore{
		client:  client,
		ttl:     ttl,
		lobbies: make(map[string]*app.Lobby),
	}
}

func (s *LobbyStore) GetOrCreate(sessionID string, build func() *app.Lobby) *app.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lobby, ok := s.lobbies[sessionID]; ok {
		return lobby
	}
	lobby := build()
	s.lobbies[sessionID] = lobby
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(sessionID), "1", s.ttl).Err()
	return lobby
}

func (s *LobbyStore) Get(sessionID string) (*app.Lobby, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lobby, ok := s.lobbies[sessionID]
	return lobby, ok
}

func (s *LobbyStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[sessionID]; !ok {
		return
	}
	delete(s.lobbies, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (s *LobbyStore) key(sessionID string) string {
	return "lobby:session:" + sessionID
}
