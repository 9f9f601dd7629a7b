package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scala40-server/internal/scala40"
)

func recipients(rs []Recipient) map[string]string {
	out := make(map[string]string, len(rs))
	for _, r := range rs {
		out[r.ConnectionID] = r.PlayerID
	}
	return out
}

func TestConnectionManager_Bind(t *testing.T) {
	cm := NewConnectionManager()
	cm.AddConnection("c1", nil)
	cm.AddConnection("c2", nil)

	assert.Empty(t, cm.Bind("c1", "alice", "tok"))
	assert.Equal(t, "alice", cm.PlayerOf("c1"))

	assert.Equal(t, "c1", cm.Bind("c2", "alice", "tok"), "second socket takes over the token")
	assert.Equal(t, "alice", cm.PlayerOf("c2"))
	assert.Empty(t, cm.PlayerOf("missing"))

	cm.RemoveConnection("c1")
	assert.Equal(t, 1, cm.Count())
	assert.Nil(t, cm.GetConnection("c1"))
}

func TestConnectionManager_Audience(t *testing.T) {
	cm := NewConnectionManager()
	for _, id := range []string{"alice-conn", "bob-conn", "watcher", "stranger", "anonymous"} {
		cm.AddConnection(id, nil)
	}
	cm.Bind("alice-conn", "alice", "t1")
	cm.Bind("bob-conn", "bob", "t2")
	cm.Bind("watcher", "carol", "t3")
	cm.Bind("stranger", "dave", "t4")
	cm.Watch("watcher", "g1")
	cm.Watch("anonymous", "g1")
	cm.Watch("stranger", "g2")

	g := &scala40.GameState{ID: "g1", Players: []scala40.PlayerState{{ID: "alice"}, {ID: "bob"}}}
	assert.Equal(t, map[string]string{
		"alice-conn": "alice",
		"bob-conn":   "bob",
		"watcher":    "carol",
		"anonymous":  "",
	}, recipients(cm.Audience(g)))

	assert.Equal(t, map[string]string{"bob-conn": "bob", "stranger": "dave"}, recipients(cm.ForPlayers("bob", "dave")))
	assert.Len(t, cm.All(), 5)
}
