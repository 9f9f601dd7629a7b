package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"scala40-server/internal/lobby"
	"scala40-server/internal/scala40"
)

// MemoryStore keeps games and lobbies in process. Every read and write goes
// through a deep copy so callers never alias stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	games   map[string]*scala40.GameState
	lobbies map[string]*lobby.Lobby
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:   make(map[string]*scala40.GameState),
		lobbies: make(map[string]*lobby.Lobby),
	}
}

func (s *MemoryStore) Load(ctx context.Context, gameID string) (*scala40.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[gameID]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", gameID, scala40.ErrGameNotFound)
	}
	return g.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, g *scala40.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := 0
	if existing, ok := s.games[g.ID]; ok {
		stored = existing.Version
	}
	if stored != g.Version {
		return fmt.Errorf("save %s at version %d, stored %d: %w", g.ID, g.Version, stored, scala40.ErrVersionConflict)
	}

	g.Version++
	s.games[g.ID] = g.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[gameID]; !ok {
		return fmt.Errorf("delete %s: %w", gameID, scala40.ErrGameNotFound)
	}
	delete(s.games, gameID)
	return nil
}

// List returns every stored game id, newest update first.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]*scala40.GameState, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].UpdatedAt.After(games[j].UpdatedAt) })

	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	return ids, nil
}

// DeleteFinishedBefore drops finished games last touched before cutoff.
func (s *MemoryStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, g := range s.games {
		if g.Status == scala40.StatusFinished && g.UpdatedAt.Before(cutoff) {
			delete(s.games, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SaveLobby(ctx context.Context, l *lobby.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lobbies[l.ID] = l.Clone()
	return nil
}

func (s *MemoryStore) LoadLobby(ctx context.Context, lobbyID string) (*lobby.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, fmt.Errorf("load lobby %s: %w", lobbyID, lobby.ErrLobbyNotFound)
	}
	return l.Clone(), nil
}

func (s *MemoryStore) LoadLobbyByCode(ctx context.Context, code string) (*lobby.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.lobbies {
		if l.Code == code && l.Status != lobby.StatusClosed {
			return l.Clone(), nil
		}
	}
	return nil, fmt.Errorf("load lobby %s: %w", code, lobby.ErrLobbyNotFound)
}

func (s *MemoryStore) UsedCodes(ctx context.Context) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	used := make(map[string]bool, len(s.lobbies))
	for _, l := range s.lobbies {
		if l.Status != lobby.StatusClosed {
			used[l.Code] = true
		}
	}
	return used, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
