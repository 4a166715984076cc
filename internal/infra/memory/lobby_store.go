package memory

import (
	"sync"

	"quiz-lobby-service/internal/app"
)

// LobbyStore is an in-memory implementation of app.LobbyRepository.
type LobbyStore struct {
	mu      sync.RWMutex
	lobbies map[string]*app.Lobby
}

func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
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
	delete(s.lobbies, sessionID)
}
