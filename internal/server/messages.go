package server

import (
	"encoding/json"
	"errors"
	"strings"

	"scala40-server/internal/scala40"
)

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Client message types.
const (
	MsgPing           = "ping"
	MsgIdentify       = "identify"
	MsgReconnect      = "reconnect"
	MsgCreateLobby    = "create_lobby"
	MsgJoinLobby      = "join_lobby"
	MsgLeaveLobby     = "leave_lobby"
	MsgSetReady       = "set_ready"
	MsgStartGame      = "start_game"
	MsgWatchGame      = "watch_game"
	MsgGetState       = "get_state"
	MsgStartRound     = "start_round"
	MsgDraw           = "draw"
	MsgOpen           = "open"
	MsgPlay           = "play"
	MsgAttach         = "attach"
	MsgSubstituteWild = "substitute_wild"
	MsgDiscard        = "discard"
)

// Server message types.
const (
	MsgPong                  = "pong"
	MsgError                 = "error"
	MsgIdentified            = "identified"
	MsgReconnected           = "reconnected"
	MsgDisconnectedElsewhere = "disconnected_elsewhere"
	MsgLobbyUpdate           = "lobby_update"
	MsgGameStarted           = "game_started"
	MsgGameEvent             = "game_event"
	MsgGameState             = "game_state"
	MsgActionResult          = "action_result"
)

// errorPayload finds the typed reason inside err. Rule errors and the
// version conflict are matched through the wrap chain; other coded errors
// are "CODE: message" strings, possibly wrapped. Anything else is INTERNAL.
func errorPayload(err error) ErrorMessage {
	var rule *scala40.RuleError
	if errors.As(err, &rule) {
		return ErrorMessage{Code: rule.Code, Message: rule.Message}
	}
	if errors.Is(err, scala40.ErrVersionConflict) {
		return ErrorMessage{Code: "VERSION_CONFLICT", Message: "The game changed while the action ran, try again"}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if code, message, ok := splitCode(e.Error()); ok {
			return ErrorMessage{Code: code, Message: message}
		}
	}
	return ErrorMessage{Code: "INTERNAL", Message: err.Error()}
}

func splitCode(text string) (code, message string, ok bool) {
	i := strings.Index(text, ": ")
	if i <= 0 || !isCode(text[:i]) {
		return "", "", false
	}
	return text[:i], text[i+2:], true
}

func isCode(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '_' {
			return false
		}
	}
	return true
}
