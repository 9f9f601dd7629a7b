package server

import (
	"sync"

	"github.com/coder/websocket"

	"scala40-server/internal/scala40"
)

type client struct {
	conn     *websocket.Conn
	playerID string
	token    string
	watching map[string]bool // gameID → spectating
}

// Recipient is one socket and the player it is identified as, if any.
type Recipient struct {
	ConnectionID string
	Conn         *websocket.Conn
	PlayerID     string
}

type ConnectionManager struct {
	clients map[string]*client // connectionID → client
	mu      sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*client),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.clients[id] = &client{conn: conn, watching: make(map[string]bool)}
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.clients, id)
}

// Bind attaches a session to a connection. It returns the connection that
// held the same token before, if there was one.
func (cm *ConnectionManager) Bind(connectionID, playerID, token string) string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	previous := ""
	for id, c := range cm.clients {
		if id != connectionID && token != "" && c.token == token {
			previous = id
		}
	}
	if c, ok := cm.clients[connectionID]; ok {
		c.playerID = playerID
		c.token = token
	}
	return previous
}

// PlayerOf returns the player a connection is identified as.
func (cm *ConnectionManager) PlayerOf(connectionID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if c, ok := cm.clients[connectionID]; ok {
		return c.playerID
	}
	return ""
}

func (cm *ConnectionManager) Watch(connectionID, gameID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if c, ok := cm.clients[connectionID]; ok {
		c.watching[gameID] = true
	}
}

// GetConnection returns the websocket for connectionID.
func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if c, ok := cm.clients[connectionID]; ok {
		return c.conn
	}
	return nil
}

// ForPlayers lists every connection identified as one of playerIDs.
func (cm *ConnectionManager) ForPlayers(playerIDs ...string) []Recipient {
	want := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		want[id] = true
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var out []Recipient
	for id, c := range cm.clients {
		if c.playerID != "" && want[c.playerID] {
			out = append(out, Recipient{ConnectionID: id, Conn: c.conn, PlayerID: c.playerID})
		}
	}
	return out
}

// Audience lists the seated players' connections plus the spectators of g.
func (cm *ConnectionManager) Audience(g *scala40.GameState) []Recipient {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var out []Recipient
	for id, c := range cm.clients {
		seated := c.playerID != "" && g.Player(c.playerID) != nil
		if seated || c.watching[g.ID] {
			out = append(out, Recipient{ConnectionID: id, Conn: c.conn, PlayerID: c.playerID})
		}
	}
	return out
}

func (cm *ConnectionManager) All() []Recipient {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make([]Recipient, 0, len(cm.clients))
	for id, c := range cm.clients {
		out = append(out, Recipient{ConnectionID: id, Conn: c.conn, PlayerID: c.playerID})
	}
	return out
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}
