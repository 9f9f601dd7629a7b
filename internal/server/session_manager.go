package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("TOKEN_NOT_FOUND: Invalid session token")

// SessionInfo remembers who a token belongs to and where they last were, so
// a dropped socket can pick up again.
type SessionInfo struct {
	Token    string
	PlayerID string
	LobbyID  string
	GameID   string
}

type SessionManager struct {
	sessions map[string]SessionInfo // token → session
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]SessionInfo),
	}
}

// Create issues a fresh token for playerID.
func (sm *SessionManager) Create(playerID string) SessionInfo {
	info := SessionInfo{Token: uuid.NewString(), PlayerID: playerID}
	sm.StoreSession(info)
	return info
}

func (sm *SessionManager) StoreSession(info SessionInfo) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[info.Token] = info
}

func (sm *SessionManager) GetSession(token string) (SessionInfo, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[token]
	if !exists {
		return SessionInfo{}, ErrSessionNotFound
	}
	return session, nil
}

// Update applies fn to the session behind token, if it exists.
func (sm *SessionManager) Update(token string, fn func(*SessionInfo)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, ok := sm.sessions[token]; ok {
		fn(&session)
		sm.sessions[token] = session
	}
}

// UpdatePlayer applies fn to every session of playerID.
func (sm *SessionManager) UpdatePlayer(playerID string, fn func(*SessionInfo)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for token, session := range sm.sessions {
		if session.PlayerID == playerID {
			fn(&session)
			sm.sessions[token] = session
		}
	}
}

func (sm *SessionManager) RemoveSession(token string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, token)
}
