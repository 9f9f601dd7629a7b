package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"scala40-server/internal/game"
	"scala40-server/internal/lobby"
	"scala40-server/internal/scala40"
)

var (
	ErrNotIdentified = errors.New("NOT_IDENTIFIED: Identify before doing that")
	ErrInvalidJSON   = errors.New("INVALID_PAYLOAD: Invalid request payload")
	ErrNotSeated     = errors.New("NOT_IN_GAME: You are not seated in this game")
)

const (
	broadcastTimeout  = 5 * time.Second
	maxActionAttempts = 3
)

func (s *Server) decode(ctx context.Context, c *conn, payload json.RawMessage, req any) bool {
	if err := json.Unmarshal(payload, req); err != nil {
		s.sendError(ctx, c.socket, ErrInvalidJSON)
		return false
	}
	return true
}

func (s *Server) identified(ctx context.Context, c *conn) (string, bool) {
	playerID := s.connectionManager.PlayerOf(c.id)
	if playerID == "" {
		s.sendError(ctx, c.socket, ErrNotIdentified)
		return "", false
	}
	return playerID, true
}

// ============================================================================
// SESSION
// ============================================================================

func (s *Server) handleIdentify(ctx context.Context, c *conn, payload json.RawMessage) {
	var req IdentifyRequest
	if !s.decode(ctx, c, payload, &req) {
		return
	}
	if err := ValidatePlayerID(req.PlayerID); err != nil {
		s.sendError(ctx, c.socket, err)
		return
	}

	session := s.sessionManager.Create(req.PlayerID)
	s.connectionManager.Bind(c.id, session.PlayerID, session.Token)
	c.log.WithField("playerId", session.PlayerID).Info("player identified")

	s.sendMessage(ctx, c.socket, ServerMessage{Type: MsgIdentified, Payload: SessionResponse{
		PlayerID: session.PlayerID,
		Token:    session.Token,
	}})
}

// handleReconnect moves a session onto this socket. An older socket still
// holding the token is told and closed.
func (s *Server) handleReconnect(ctx context.Context, c *conn, payload json.RawMessage) {
	var req ReconnectRequest
	if !s.decode(ctx, c, payload, &req) {
		return
	}
	session, err := s.sessionManager.GetSession(req.Token)
	if err != nil {
		s.sendError(ctx, c.socket, err)
		return
	}

	if previous := s.connectionManager.Bind(c.id, session.PlayerID, session.Token); previous != "" {
		if old := s.connectionManager.GetConnection(previous); old != nil {
			// Close waits for the peer's close frame; it must not hold up this socket.
			go s.supersede(old)
		}
		s.connectionManager.RemoveConnection(previous)
	}
	c.log.WithFields(logrus.Fields{"playerId": session.PlayerID, "gameId": session.GameID}).Info("player reconnected")

	s.sendMessage(ctx, c.socket, ServerMessage{Type: MsgReconnected, Payload: SessionResponse{
		PlayerID: session.PlayerID,
		Token:    session.Token,
		LobbyID:  session.LobbyID,
		GameID:   session.GameID,
	}})

	if session.LobbyID != "" {
		if l, err := s.lobbies.Get(ctx, session.LobbyID); err == nil {
			s.sendMessage(ctx, c.socket, lobbyUpdate(l))
		}
	}
	if session.GameID != "" {
		if g, err := s.engine.Game(ctx, session.GameID); err == nil {
			s.sendMessage(ctx, c.socket, gameState(g, session.PlayerID))
		}
	}
}

// supersede tells a socket its session moved and closes it.
func (s *Server) supersede(old *websocket.Conn) {
	s.push(Recipient{Conn: old}, ServerMessage{Type: MsgDisconnectedElsewhere, Payload: ErrorMessage{
		Code:    "DISCONNECTED_ELSEWHERE",
		Message: "This session was resumed on another connection",
	}})
	old.Close(websocket.StatusNormalClosure, "session moved")
}

// ============================================================================
// LOBBY
// ============================================================================

func lobbyUpdate(l *lobby.Lobby) ServerMessage {
	return ServerMessage{Type: MsgLobbyUpdate, Payload: LobbyState{Lobby: l, AllReady: l.AllReady()}}
}

func (s *Server) broadcastLobby(l *lobby.Lobby, extra ...string) {
	msg := lobbyUpdate(l)
	for _, r := range s.connectionManager.ForPlayers(append(l.PlayerIDs(), extra...)...) {
		s.push(r, msg)
	}
}

func (s *Server) handleCreateLobby(ctx context.Context, c *conn, payload json.RawMessage) {
	playerID, ok := s.identified(ctx, c)
	if !ok {
		return
	}
	var req CreateLobbyRequest
	if len(payload) > 0 && !s.decode(ctx, c, payload, &req) {
		return
	}

	settings := scala40.Settings{EliminationScore: s.cfg.EliminationScore}
	if req.EliminationScore > 0 {
		settings.EliminationScore = req.EliminationScore
	}
	l, err := s.lobbies.Create(ctx, playerID, settings)
	if err != nil {
		s.sendError(ctx, c.socket, err)
		return
	}
	s.sessionManager.UpdatePlayer(playerID, func(si *SessionInfo) { si.LobbyID = l.ID })
	s.broadcastLobby(l)
}

func (s *Server) handleJoinLobby(ctx context.Context, c *conn, payload json.RawMessage) {
	playerID, ok := s.identified(ctx, c)
	if !ok {
		return
	}
	var req JoinLobbyRequest
	if !s.decode(ctx, c, payload, &req) {
		return
	}

	l, err := s.lobbies.Join(ctx, req.Code, playerID)
	if err != nil {
		s.sendError(ctx, c.socket, err)
		return
	}
	s.sessionManager.UpdatePlayer(playerID, func(si *SessionInfo) { si.LobbyID = l.ID })
	s.broadcastLobby(l)
}

func (s *Server) handleLeaveLobby(ctx context.Context, c *conn, payload json.RawMessage) {
	playerID, ok := s.identified(ctx, c)
	if !ok {
		return
	}
	var req LobbyRequest
	if !s.decode(ctx, c, payload, &req) {
		return
	}

	l, err := s.lobbies.Leave(ctx, req.LobbyID, playerID)
	if err != nil {
		s.sendError(ctx, c.socket, err)
		return
	}
	s.sessionManager.UpdatePlayer(playerID, func(si *SessionInfo) { si.LobbyID = "" })
	s.broadcastLobby(l, playerID)
}

func (s *Server) handleSetReady(ctx context.Context, c *conn, payload json.RawMessage) {
	playerID, ok := s.identified(ctx, c)
	if !ok {
		return
	}
	var req SetReadyRequest
	if !s.decode(ctx, c, payload, &req) {
		return
	}

	l, _, err := s.lobbies.SetReady(ctx, req.LobbyID, playerID, req.Ready)
	if err != nil {
		s.sendError(ctx, c.socket, err)
		return
	}
	s.broadcastLobby(l)
}

func (s *Server) handleStartGame(ctx context.Context, c *conn, payload json.RawMessage) {
	playerID, ok := s.identified(ctx, c)
	if !ok {
		return
	}
	var req LobbyRequest
	if !s.decode(ctx, c, payload, &req) {
		return
	}

	l, outcome, err := s.lobbies.Start(ctx, req.LobbyID, playerID)
	if err != nil {
		s.sendError(ctx, c.socket, err)
		return
	}

	s.broadcastLobby(l)
	started := ServerMessage{Type: MsgGameStarted, Payload: GameStartedNotification{LobbyID: l.ID, GameID: l.GameID}}
	for _, id := range l.PlayerIDs() {
		s.sessionManager.UpdatePlayer(id, func(si *SessionInfo) { si.GameID = l.GameID })
	}
	for _, r := range s.connectionManager.ForPlayers(l.PlayerIDs()...) {
		s.push(r, started)
	}
	s.broadcastOutcome(outcome)
}

// ============================================================================
// GAME
// ============================================================================

func gameState(g *scala40.GameState, playerID string) ServerMessage {
	return ServerMessage{Type: MsgGameState, Payload: g.ClientViewFor(playerID)}
}

// handleWatchGame subscribes the socket to a game it may not be seated in.
func (s *Server) handleWatchGame(ctx context.Context, c *conn, payload json.RawMessage) {
	var req GameRequest
	if !s.decode(ctx, c, payload, &req) {
		return
	}
	g, err := s.engine.Game(ctx, req.GameID)
	if err != nil {
		s.sendError(ctx, c.socket, err)
		return
	}
	s.connectionManager.Watch(c.id, g.ID)
	s.sendMessage(ctx, c.socket, gameState(g, s.connectionManager.PlayerOf(c.id)))
}

func (s *Server) handleGetState(ctx context.Context, c *conn, payload json.RawMessage) {
	var req GameRequest
	if !s.decode(ctx, c, payload, &req) {
		return
	}
	g, err := s.engine.Game(ctx, req.GameID)
	if err != nil {
		s.sendError(ctx, c.socket, err)
		return
	}
	s.sendMessage(ctx, c.socket, gameState(g, s.connectionManager.PlayerOf(c.id)))
}

func parseCards(codes []string) ([]game.Card, error) {
	out := make([]game.Card, 0, len(codes))
	for _, code := range codes {
		card, err := game.ParseCard(code)
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	return out, nil
}

// action decodes one turn message into the engine call it stands for.
func (s *Server) action(ctx context.Context, msg ClientMessage, playerID string) (*scala40.Outcome, error) {
	switch msg.Type {
	case MsgStartRound:
		var req GameRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, ErrInvalidJSON
		}
		g, err := s.engine.Game(ctx, req.GameID)
		if err != nil {
			return nil, err
		}
		if g.Player(playerID) == nil {
			return nil, ErrNotSeated
		}
		return s.engine.StartRound(ctx, req.GameID)

	case MsgDraw:
		var req DrawRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, ErrInvalidJSON
		}
		return s.engine.Draw(ctx, req.GameID, playerID, req.Source)

	case MsgOpen:
		var req OpenRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, ErrInvalidJSON
		}
		groups := make([][]game.Card, 0, len(req.Combinations))
		for _, codes := range req.Combinations {
			cards, err := parseCards(codes)
			if err != nil {
				return nil, err
			}
			groups = append(groups, cards)
		}
		return s.engine.Open(ctx, req.GameID, playerID, groups)

	case MsgPlay:
		var req PlayRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, ErrInvalidJSON
		}
		cards, err := parseCards(req.Cards)
		if err != nil {
			return nil, err
		}
		return s.engine.Play(ctx, req.GameID, playerID, cards)

	case MsgAttach, MsgSubstituteWild:
		var req CardRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, ErrInvalidJSON
		}
		card, err := game.ParseCard(req.Card)
		if err != nil {
			return nil, err
		}
		if msg.Type == MsgAttach {
			return s.engine.Attach(ctx, req.GameID, playerID, card, req.CombinationID)
		}
		return s.engine.SubstituteWild(ctx, req.GameID, playerID, card, req.CombinationID)

	case MsgDiscard:
		var req DiscardRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, ErrInvalidJSON
		}
		card, err := game.ParseCard(req.Card)
		if err != nil {
			return nil, err
		}
		return s.engine.Discard(ctx, req.GameID, playerID, card)
	}
	return nil, ValidateMessageType(msg.Type)
}

// runAction retries an action from a fresh read when another writer saved
// the game first. The retry sees the new state, so a move that is no longer
// legal fails with its rule error instead of the conflict.
func (s *Server) runAction(ctx context.Context, msg ClientMessage, playerID string) (*scala40.Outcome, error) {
	for attempt := 1; ; attempt++ {
		outcome, err := s.action(ctx, msg, playerID)
		if !scala40.IsConflict(err) || attempt == maxActionAttempts {
			return outcome, err
		}
		s.log.WithFields(logrus.Fields{"action": msg.Type, "playerId": playerID, "attempt": attempt}).Debug("version conflict, retrying")
	}
}

// handleAction runs a turn action and answers with action_result. On
// success everyone watching the game gets the events and a fresh view.
func (s *Server) handleAction(ctx context.Context, c *conn, msg ClientMessage) {
	playerID, ok := s.identified(ctx, c)
	if !ok {
		return
	}

	outcome, err := s.runAction(ctx, msg, playerID)
	if err != nil {
		e := errorPayload(err)
		if e.Code == "INTERNAL" {
			c.log.WithError(err).WithFields(logrus.Fields{"action": msg.Type, "playerId": playerID}).Error("action failed")
		}
		s.sendMessage(ctx, c.socket, ServerMessage{Type: MsgActionResult, Payload: ActionResult{
			Action: msg.Type, Success: false, Code: e.Code, Message: e.Message,
		}})
		return
	}

	s.sendMessage(ctx, c.socket, ServerMessage{Type: MsgActionResult, Payload: ActionResult{Action: msg.Type, Success: true}})
	s.broadcastOutcome(outcome)
}

// broadcastOutcome sends each event as the recipient may see it, then each
// recipient's own view.
func (s *Server) broadcastOutcome(outcome *scala40.Outcome) {
	g := outcome.Game
	audience := s.connectionManager.Audience(g)

	for _, ev := range outcome.Events {
		for _, r := range audience {
			s.push(r, ServerMessage{Type: MsgGameEvent, Payload: GameEventMessage{
				GameID: g.ID, Event: ev.Kind(), Data: scala40.EventFor(ev, r.PlayerID),
			}})
		}
	}
	for _, r := range audience {
		s.push(r, gameState(g, r.PlayerID))
	}
}

// push writes outside the request context so a slow socket cannot hold up
// the sender for long.
func (s *Server) push(r Recipient, msg ServerMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()
	s.sendMessage(ctx, r.Conn, msg)
}
