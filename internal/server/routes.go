package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"scala40-server/internal/lobby"
	"scala40-server/internal/scala40"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(requestLogger(s.log))

	r.Get("/health", s.healthHandler)
	r.Get("/games/{gameID}", s.gameHandler)
	r.Get("/lobbies/{code}", s.lobbyHandler)
	r.Get("/websocket", s.websocketHandler)
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorPayload(err))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "up",
		Store:       s.cfg.StoreDriver,
		Events:      "off",
		Connections: s.connectionManager.Count(),
	}
	if s.nc != nil {
		resp.Events = s.nc.Status().String()
	}

	status := http.StatusOK
	if err := s.backend.Games.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.StoreError = err.Error()
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

// gameHandler returns the full state plus its integrity report, or with
// ?player= the view that player would get over the socket.
func (s *Server) gameHandler(w http.ResponseWriter, r *http.Request) {
	g, err := s.engine.Game(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		s.writeError(w, lookupStatus(err, scala40.ErrGameNotFound), err)
		return
	}
	if player := r.URL.Query().Get("player"); player != "" {
		s.writeJSON(w, http.StatusOK, g.ClientViewFor(player))
		return
	}
	violations := scala40.CheckIntegrity(g)
	if violations == nil {
		violations = []scala40.Violation{}
	}
	s.writeJSON(w, http.StatusOK, GameSnapshot{Game: g, Violations: violations})
}

func (s *Server) lobbyHandler(w http.ResponseWriter, r *http.Request) {
	l, err := s.lobbies.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		status := lookupStatus(err, lobby.ErrLobbyNotFound)
		if errorPayload(err).Code == "INVALID_CODE" {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, LobbyState{Lobby: l, AllReady: l.AllReady()})
}

func lookupStatus(err, notFound error) int {
	if errors.Is(err, notFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()
	connectionID := uuid.New().String()
	log := s.log.WithField("connectionId", connectionID)
	log.Info("connection opened")

	s.connectionManager.AddConnection(connectionID, socket)
	s.connectionHealth.UpdateActivity(connectionID)
	defer func() {
		s.connectionManager.RemoveConnection(connectionID)
		s.connectionHealth.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		log.Info("connection closed")
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.WithError(err).Debug("read failed")
			}
			return
		}
		s.connectionHealth.UpdateActivity(connectionID)

		if msgType != websocket.MessageText {
			continue
		}
		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(ctx, socket, errors.New("RATE_LIMITED: Too many messages, slow down"))
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(ctx, socket, errors.New("INVALID_JSON: Invalid JSON"))
			continue
		}
		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(ctx, socket, err)
			continue
		}

		log.WithFields(logrus.Fields{"type": msg.Type, "playerId": s.connectionManager.PlayerOf(connectionID)}).Debug("message")
		s.dispatch(ctx, &conn{id: connectionID, socket: socket, log: log}, msg)
	}
}

// conn is the socket a message arrived on.
type conn struct {
	id     string
	socket *websocket.Conn
	log    *logrus.Entry
}

func (s *Server) dispatch(ctx context.Context, c *conn, msg ClientMessage) {
	switch msg.Type {
	case MsgPing:
		s.sendMessage(ctx, c.socket, ServerMessage{Type: MsgPong, Payload: struct{}{}})
	case MsgIdentify:
		s.handleIdentify(ctx, c, msg.Payload)
	case MsgReconnect:
		s.handleReconnect(ctx, c, msg.Payload)
	case MsgCreateLobby:
		s.handleCreateLobby(ctx, c, msg.Payload)
	case MsgJoinLobby:
		s.handleJoinLobby(ctx, c, msg.Payload)
	case MsgLeaveLobby:
		s.handleLeaveLobby(ctx, c, msg.Payload)
	case MsgSetReady:
		s.handleSetReady(ctx, c, msg.Payload)
	case MsgStartGame:
		s.handleStartGame(ctx, c, msg.Payload)
	case MsgWatchGame:
		s.handleWatchGame(ctx, c, msg.Payload)
	case MsgGetState:
		s.handleGetState(ctx, c, msg.Payload)
	default:
		s.handleAction(ctx, c, msg)
	}
}

func (s *Server) sendMessage(ctx context.Context, socket *websocket.Conn, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.WithError(err).WithField("type", msg.Type).Error("failed to marshal message")
		return
	}
	if err := socket.Write(ctx, websocket.MessageText, data); err != nil {
		s.log.WithError(err).WithField("type", msg.Type).Debug("failed to send message")
	}
}

func (s *Server) sendError(ctx context.Context, socket *websocket.Conn, err error) {
	s.sendMessage(ctx, socket, ServerMessage{Type: MsgError, Payload: errorPayload(err)})
}
