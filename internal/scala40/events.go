package scala40

import "encoding/json"

type EventKind string

const (
	EventRoundStart     EventKind = "round_start"
	EventDraw           EventKind = "draw"
	EventOpen           EventKind = "open"
	EventPlaySequence   EventKind = "play_sequence"
	EventPlaySet        EventKind = "play_set"
	EventAttach         EventKind = "attach"
	EventSubstituteWild EventKind = "substitute_wild"
	EventDiscard        EventKind = "discard"
	EventClosure        EventKind = "closure"
	EventElimination    EventKind = "elimination"
	EventGameEnd        EventKind = "game_end"
)

// Event is one structured record of something that happened in a game.
// Cards are carried in compact form.
type Event interface {
	Kind() EventKind
	Fields() map[string]any
}

type RoundStarted struct {
	GameID      string         `json:"gameId"`
	Smazzata    int            `json:"smazzata"`
	Dealer      string         `json:"dealer"`
	FirstPlayer string         `json:"firstPlayer"`
	HandSizes   map[string]int `json:"handSizes"`
	DeckSize    int            `json:"deckSize"`
}

func (RoundStarted) Kind() EventKind { return EventRoundStart }
func (e RoundStarted) Fields() map[string]any {
	return map[string]any{"gameId": e.GameID, "smazzata": e.Smazzata, "dealer": e.Dealer, "firstPlayer": e.FirstPlayer, "deckSize": e.DeckSize}
}

type CardDrawn struct {
	GameID        string     `json:"gameId"`
	PlayerID      string     `json:"playerId"`
	Source        DrawSource `json:"source"`
	Card          string     `json:"card,omitempty"`
	HandSize      int        `json:"handSize"`
	DeckRemaining int        `json:"deckRemaining"`
	Reshuffled    bool       `json:"reshuffled"`
}

func (CardDrawn) Kind() EventKind { return EventDraw }
func (e CardDrawn) Fields() map[string]any {
	return map[string]any{"gameId": e.GameID, "playerId": e.PlayerID, "source": e.Source, "card": e.Card, "handSize": e.HandSize, "deckRemaining": e.DeckRemaining, "reshuffled": e.Reshuffled}
}

type Opened struct {
	GameID         string   `json:"gameId"`
	PlayerID       string   `json:"playerId"`
	Points         int      `json:"points"`
	CombinationIDs []string `json:"combinationIds"`
	CardsRemaining int      `json:"cardsRemaining"`
}

func (Opened) Kind() EventKind { return EventOpen }
func (e Opened) Fields() map[string]any {
	return map[string]any{"gameId": e.GameID, "playerId": e.PlayerID, "points": e.Points, "combinations": len(e.CombinationIDs), "cardsRemaining": e.CardsRemaining}
}

type Played struct {
	GameID        string   `json:"gameId"`
	PlayerID      string   `json:"playerId"`
	Combination   Kind     `json:"kind"`
	CombinationID string   `json:"combinationId"`
	Cards         []string `json:"cards"`
	Points        int      `json:"points"`
}

func (e Played) Kind() EventKind {
	if e.Combination == KindSet {
		return EventPlaySet
	}
	return EventPlaySequence
}
func (e Played) Fields() map[string]any {
	return map[string]any{"gameId": e.GameID, "playerId": e.PlayerID, "combinationId": e.CombinationID, "cards": e.Cards, "points": e.Points}
}

type Attached struct {
	GameID        string `json:"gameId"`
	PlayerID      string `json:"playerId"`
	Card          string `json:"card"`
	CombinationID string `json:"combinationId"`
	Points        int    `json:"points"`
}

func (Attached) Kind() EventKind { return EventAttach }
func (e Attached) Fields() map[string]any {
	return map[string]any{"gameId": e.GameID, "playerId": e.PlayerID, "card": e.Card, "combinationId": e.CombinationID, "points": e.Points}
}

type WildSubstituted struct {
	GameID        string `json:"gameId"`
	PlayerID      string `json:"playerId"`
	Card          string `json:"card"`
	Wild          string `json:"wild"`
	CombinationID string `json:"combinationId"`
}

func (WildSubstituted) Kind() EventKind { return EventSubstituteWild }
func (e WildSubstituted) Fields() map[string]any {
	return map[string]any{"gameId": e.GameID, "playerId": e.PlayerID, "card": e.Card, "wild": e.Wild, "combinationId": e.CombinationID}
}

type Discarded struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	Card     string `json:"card"`
	HandSize int    `json:"handSize"`
}

func (Discarded) Kind() EventKind { return EventDiscard }
func (e Discarded) Fields() map[string]any {
	return map[string]any{"gameId": e.GameID, "playerId": e.PlayerID, "card": e.Card, "handSize": e.HandSize}
}

type Closed struct {
	GameID      string         `json:"gameId"`
	PlayerID    string         `json:"playerId"`
	Smazzata    int            `json:"smazzata"`
	RoundScores map[string]int `json:"roundScores"`
	Scores      map[string]int `json:"scores"`
}

func (Closed) Kind() EventKind { return EventClosure }
func (e Closed) Fields() map[string]any {
	return map[string]any{"gameId": e.GameID, "playerId": e.PlayerID, "smazzata": e.Smazzata, "scores": e.Scores}
}

type Eliminated struct {
	GameID    string `json:"gameId"`
	PlayerID  string `json:"playerId"`
	Score     int    `json:"score"`
	Threshold int    `json:"threshold"`
}

func (Eliminated) Kind() EventKind { return EventElimination }
func (e Eliminated) Fields() map[string]any {
	return map[string]any{"gameId": e.GameID, "playerId": e.PlayerID, "score": e.Score, "threshold": e.Threshold}
}

type GameEnded struct {
	GameID      string         `json:"gameId"`
	Winner      string         `json:"winner"`
	FinalScores map[string]int `json:"finalScores"`
}

func (GameEnded) Kind() EventKind { return EventGameEnd }
func (e GameEnded) Fields() map[string]any {
	return map[string]any{"gameId": e.GameID, "winner": e.Winner, "finalScores": e.FinalScores}
}

type envelope struct {
	Event EventKind `json:"event"`
	Data  Event     `json:"data"`
}

// MarshalEvent wraps an event with its kind for the wire.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(envelope{Event: e.Kind(), Data: e})
}
