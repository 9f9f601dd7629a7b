package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scala40-server/internal/config"
	"scala40-server/internal/game"
	"scala40-server/internal/scala40"
	"scala40-server/internal/store"
)

func setupTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	backend, err := store.Open(context.Background(), store.Options{Driver: "memory"})
	require.NoError(t, err)
	return serveBackend(t, backend)
}

func serveBackend(t *testing.T, backend *store.Backend) (*Server, *httptest.Server) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s := newServer(config.Default(), logrus.NewEntry(logger), backend, nil, game.NewSeededRand(7))
	ts := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(ts.Close)
	return s, ts
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// inbound is a ServerMessage as the client sees it.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(msgType string, payload any) {
	c.t.Helper()
	msg := ClientMessage{Type: msgType}
	if payload != nil {
		msg.Payload = mustMarshal(payload)
	}
	require.NoError(c.t, c.conn.Write(context.Background(), websocket.MessageText, mustMarshal(msg)))
}

// read returns the next message of type msgType, skipping anything else.
func (c *testClient) read(msgType string, into any) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		_, data, err := c.conn.Read(ctx)
		require.NoError(c.t, err, "waiting for %s", msgType)

		var msg inbound
		require.NoError(c.t, json.Unmarshal(data, &msg))
		if msg.Type != msgType {
			continue
		}
		if into != nil {
			require.NoError(c.t, json.Unmarshal(msg.Payload, into))
		}
		return
	}
}

func (c *testClient) identify(playerID string) SessionResponse {
	c.t.Helper()
	c.send(MsgIdentify, IdentifyRequest{PlayerID: playerID})
	var resp SessionResponse
	c.read(MsgIdentified, &resp)
	return resp
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestHealthHandler(t *testing.T) {
	_, ts := setupTestServer(t)

	var health HealthResponse
	status := getJSON(t, ts.URL+"/health", &health)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", health.Status)
	assert.Equal(t, "memory", health.Store)
	assert.Equal(t, "off", health.Events)
}

func TestCORSPreflight(t *testing.T) {
	_, ts := setupTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/health", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestGameHandler(t *testing.T) {
	s, ts := setupTestServer(t)
	ctx := context.Background()

	g, err := s.engine.CreateGame(ctx, "", []string{"alice", "bob"}, scala40.DefaultSettings())
	require.NoError(t, err)
	_, err = s.engine.StartRound(ctx, g.ID)
	require.NoError(t, err)

	t.Run("unknown game", func(t *testing.T) {
		var e ErrorMessage
		assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/games/missing", &e))
		assert.Equal(t, "GAME_NOT_FOUND", e.Code)
	})

	t.Run("full snapshot", func(t *testing.T) {
		var snap GameSnapshot
		assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/games/"+g.ID, &snap))
		assert.Equal(t, g.ID, snap.Game.ID)
		assert.NotEmpty(t, snap.Game.Deck)
		assert.Empty(t, snap.Violations)
	})

	t.Run("player view", func(t *testing.T) {
		var raw map[string]any
		assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/games/"+g.ID+"?player=alice", &raw))
		assert.Equal(t, "alice", raw["playerId"])
		assert.Len(t, raw["hand"], game.CardsPerHand)
		assert.NotContains(t, raw, "deck")
	})
}

func TestLobbyHandler(t *testing.T) {
	s, ts := setupTestServer(t)
	l, err := s.lobbies.Create(context.Background(), "alice", scala40.DefaultSettings())
	require.NoError(t, err)

	var state LobbyState
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/lobbies/"+strings.ToLower(l.Code), &state))
	assert.Equal(t, l.ID, state.Lobby.ID)
	assert.False(t, state.AllReady)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/lobbies/ABC", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/lobbies/ZZZZZZ", nil))
}

func TestShutdownClosesSockets(t *testing.T) {
	s, ts := setupTestServer(t)
	c := dial(t, ts)
	c.send(MsgPing, nil)
	c.read(MsgPong, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Shutdown(ctx) }()

	var e ErrorMessage
	c.read(MsgError, &e)
	assert.Equal(t, "SERVER_SHUTDOWN", e.Code)

	_, _, err := c.conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	require.NoError(t, <-done)
}

func TestSweepFinished(t *testing.T) {
	s, _ := setupTestServer(t)
	ctx := context.Background()

	g, err := s.engine.CreateGame(ctx, "", []string{"alice", "bob"}, scala40.DefaultSettings())
	require.NoError(t, err)
	g.Status = scala40.StatusFinished
	g.UpdatedAt = time.Now().Add(-2 * s.cfg.FinishedGameTTL)
	require.NoError(t, s.backend.Games.Save(ctx, g))

	sweeper, ok := s.backend.Games.(store.Sweeper)
	require.True(t, ok)
	s.sweepFinished(ctx, sweeper)

	_, err = s.engine.Game(ctx, g.ID)
	assert.ErrorIs(t, err, scala40.ErrGameNotFound)
}
