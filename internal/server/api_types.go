package server

import (
	"scala40-server/internal/lobby"
	"scala40-server/internal/scala40"
)

// ============================================================================
// ERRORS
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// SESSION (identify, reconnect)
// ============================================================================
type IdentifyRequest struct {
	PlayerID string `json:"playerId"`
}

type ReconnectRequest struct {
	Token string `json:"token"`
}

type SessionResponse struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
	LobbyID  string `json:"lobbyId,omitempty"`
	GameID   string `json:"gameId,omitempty"`
}

// ============================================================================
// LOBBY (create_lobby, join_lobby, leave_lobby, set_ready, start_game)
// ============================================================================
type CreateLobbyRequest struct {
	EliminationScore int `json:"eliminationScore,omitempty"`
}

type JoinLobbyRequest struct {
	Code string `json:"code"`
}

type LobbyRequest struct {
	LobbyID string `json:"lobbyId"`
}

type SetReadyRequest struct {
	LobbyID string `json:"lobbyId"`
	Ready   bool   `json:"ready"`
}

type LobbyState struct {
	Lobby    *lobby.Lobby `json:"lobby"`
	AllReady bool         `json:"allReady"`
}

type GameStartedNotification struct {
	LobbyID string `json:"lobbyId"`
	GameID  string `json:"gameId"`
}

// ============================================================================
// GAME (watch_game, get_state and the turn actions)
// ============================================================================
type GameRequest struct {
	GameID string `json:"gameId"`
}

type DrawRequest struct {
	GameID string             `json:"gameId"`
	Source scala40.DrawSource `json:"source"`
}

type OpenRequest struct {
	GameID       string     `json:"gameId"`
	Combinations [][]string `json:"combinations"`
}

type PlayRequest struct {
	GameID string   `json:"gameId"`
	Cards  []string `json:"cards"`
}

// CardRequest carries attach and substitute_wild.
type CardRequest struct {
	GameID        string `json:"gameId"`
	Card          string `json:"card"`
	CombinationID string `json:"combinationId"`
}

type DiscardRequest struct {
	GameID string `json:"gameId"`
	Card   string `json:"card"`
}

type ActionResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type GameEventMessage struct {
	GameID string            `json:"gameId"`
	Event  scala40.EventKind `json:"event"`
	Data   scala40.Event     `json:"data"`
}

// GameSnapshot is the inspection payload of GET /games/{id}.
type GameSnapshot struct {
	Game       *scala40.GameState  `json:"game"`
	Violations []scala40.Violation `json:"violations"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	StoreError  string `json:"storeError,omitempty"`
	Events      string `json:"events"`
	Connections int    `json:"connections"`
}
