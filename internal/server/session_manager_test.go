package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_CreateAndGet(t *testing.T) {
	sm := NewSessionManager()
	session := sm.Create("alice")
	assert.NotEmpty(t, session.Token)

	got, err := sm.GetSession(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	_, err = sm.GetSession("unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sm.RemoveSession(session.Token)
	_, err = sm.GetSession(session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManager_Update(t *testing.T) {
	sm := NewSessionManager()
	phone := sm.Create("alice")
	laptop := sm.Create("alice")
	other := sm.Create("bob")

	sm.UpdatePlayer("alice", func(s *SessionInfo) { s.GameID = "g1" })
	sm.Update(laptop.Token, func(s *SessionInfo) { s.LobbyID = "l1" })
	sm.Update("unknown", func(s *SessionInfo) { t.Fatal("called for an unknown token") })

	for token, want := range map[string]SessionInfo{
		phone.Token:  {Token: phone.Token, PlayerID: "alice", GameID: "g1"},
		laptop.Token: {Token: laptop.Token, PlayerID: "alice", GameID: "g1", LobbyID: "l1"},
		other.Token:  {Token: other.Token, PlayerID: "bob"},
	} {
		got, err := sm.GetSession(token)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestSessionManager_Concurrent(t *testing.T) {
	sm := NewSessionManager()
	var wg sync.WaitGroup
	tokens := make([]string, 50)

	for i := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i] = sm.Create(fmt.Sprintf("player-%d", i)).Token
			sm.UpdatePlayer(fmt.Sprintf("player-%d", i), func(s *SessionInfo) { s.GameID = "g" })
		}()
	}
	wg.Wait()

	for i, token := range tokens {
		got, err := sm.GetSession(token)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("player-%d", i), got.PlayerID)
		assert.Equal(t, "g", got.GameID)
	}
}
