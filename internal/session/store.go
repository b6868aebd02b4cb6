package session

import (
	"sync"

	"github.com/glizzus/radio-relay/internal/util"
)

// Store is the registry of guild sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*GuildSession
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*GuildSession)}
}

// Ensure returns the session for guildID, creating an idle one if needed.
func (s *Store) Ensure(guildID string) *GuildSession {
	s.mu.RLock()
	g, ok := s.sessions[guildID]
	s.mu.RUnlock()
	if ok {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.sessions[guildID]; ok {
		return g
	}
	g = newGuildSession(guildID)
	s.sessions[guildID] = g
	return g
}

func (s *Store) Get(guildID string) (*GuildSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.sessions[guildID]
	return g, ok
}

// All returns every session ordered by guild ID.
func (s *Store) All() []*GuildSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*GuildSession, 0, len(s.sessions))
	for _, id := range util.SortedKeys(s.sessions) {
		out = append(out, s.sessions[id])
	}
	return out
}
