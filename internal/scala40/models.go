package scala40

import (
	"fmt"
	"slices"
	"time"

	"scala40-server/internal/game"
)

const (
	DefaultEliminationScore = 101
	OpeningThreshold        = 40
	MinSequenceLength       = 3
	MaxSequenceLength       = 14
	MinSetSize              = 3
	MaxSetSize              = 4
	MaxWildsPerCombination  = 1
)

// Kind tells a sequence from a set.
type Kind int

const (
	KindSequence Kind = iota
	KindSet
)

var kindString = map[Kind]string{
	KindSequence: "sequence",
	KindSet:      "set",
}

func (k Kind) String() string {
	return kindString[k]
}

func (k Kind) MarshalText() ([]byte, error) {
	s, ok := kindString[k]
	if !ok {
		return nil, fmt.Errorf("unknown combination kind %d", int(k))
	}
	return []byte(s), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, s := range kindString {
		if s == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown combination kind %q", text)
}

// Phase is the step of the current player's turn.
type Phase int

const (
	PhaseDraw Phase = iota
	PhasePlay
	PhaseDiscard
	phaseInvalid Phase = -1
)

var phaseString = map[Phase]string{
	PhaseDraw:    "draw",
	PhasePlay:    "play",
	PhaseDiscard: "discard",
}

func (p Phase) Valid() bool {
	_, ok := phaseString[p]
	return ok
}

func (p Phase) String() string {
	if s, ok := phaseString[p]; ok {
		return s
	}
	return "invalid"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText keeps unknown phases as an invalid value so a damaged
// snapshot can still be loaded and reported by CheckIntegrity.
func (p *Phase) UnmarshalText(text []byte) error {
	*p = phaseInvalid
	for phase, s := range phaseString {
		if s == string(text) {
			*p = phase
		}
	}
	return nil
}

type Status int

const (
	StatusPlaying Status = iota
	StatusRoundEnd
	StatusFinished
)

var statusString = map[Status]string{
	StatusPlaying:  "playing",
	StatusRoundEnd: "round_end",
	StatusFinished: "finished",
}

func (s Status) String() string {
	return statusString[s]
}

func (s Status) MarshalText() ([]byte, error) {
	str, ok := statusString[s]
	if !ok {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(str), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, str := range statusString {
		if str == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// DrawSource is where a player takes their card from.
type DrawSource string

const (
	SourceDeck    DrawSource = "deck"
	SourceDiscard DrawSource = "discard"
)

type Settings struct {
	EliminationScore int `json:"eliminationScore"`
}

func DefaultSettings() Settings {
	return Settings{EliminationScore: DefaultEliminationScore}
}

type TableCombination struct {
	ID    string      `json:"id"`
	Owner string      `json:"owner"`
	Kind  Kind        `json:"kind"`
	Cards []game.Card `json:"cards"`
}

func (c TableCombination) HasWild() bool {
	return game.WildCount(c.Cards) > 0
}

type PlayerState struct {
	ID         string      `json:"playerId"`
	Hand       []game.Card `json:"hand"`
	HasOpened  bool        `json:"hasOpened"`
	Eliminated bool        `json:"isEliminated"`
	RoundScore int         `json:"roundScore"`
}

// GameState is the whole match. It is the unit a Store persists; Version is
// bumped on every successful save.
type GameState struct {
	ID                 string             `json:"gameId"`
	LobbyID            string             `json:"lobbyId,omitempty"`
	Players            []PlayerState      `json:"players"`
	Deck               []game.Card        `json:"deck"`
	DiscardPile        []game.Card        `json:"discardPile"`
	Table              []TableCombination `json:"tableCombinations"`
	CurrentTurn        string             `json:"currentTurnPlayer"`
	Phase              Phase              `json:"turnPhase"`
	RoundNumber        int                `json:"roundNumber"`
	Dealer             string             `json:"dealer"`
	RoundStarter       string             `json:"roundStarter"`
	FirstRoundComplete bool               `json:"firstRoundComplete"`
	Smazzata           int                `json:"smazzataNumber"`
	Scores             map[string]int     `json:"scores"`
	Status             Status             `json:"status"`
	Winner             string             `json:"winner,omitempty"`
	Settings           Settings           `json:"settings"`
	DrawnFromDiscard   *game.Card         `json:"lastDrawnFromDiscard"`
	PendingWild        *game.Card         `json:"pendingWild"`
	Version            int                `json:"version"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

func (g *GameState) Player(id string) *PlayerState {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return &g.Players[i]
		}
	}
	return nil
}

// ActivePlayers returns the ids of non-eliminated players in seat order.
func (g *GameState) ActivePlayers() []string {
	ids := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		if !p.Eliminated {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (g *GameState) Combination(id string) (int, *TableCombination) {
	for i := range g.Table {
		if g.Table[i].ID == id {
			return i, &g.Table[i]
		}
	}
	return -1, nil
}

// nextActiveAfter walks the seats clockwise from id and returns the first
// player still in the match. id itself need not be active.
func (g *GameState) nextActiveAfter(id string) string {
	start := slices.IndexFunc(g.Players, func(p PlayerState) bool { return p.ID == id })
	for step := 1; step <= len(g.Players); step++ {
		p := g.Players[(start+step+len(g.Players))%len(g.Players)]
		if !p.Eliminated {
			return p.ID
		}
	}
	return ""
}

// Clone is a deep copy. Stores hand out clones so callers never share slices
// with the stored record.
func (g *GameState) Clone() *GameState {
	c := *g
	c.Players = make([]PlayerState, len(g.Players))
	for i, p := range g.Players {
		p.Hand = slices.Clone(p.Hand)
		c.Players[i] = p
	}
	c.Deck = slices.Clone(g.Deck)
	c.DiscardPile = slices.Clone(g.DiscardPile)
	c.Table = make([]TableCombination, len(g.Table))
	for i, combo := range g.Table {
		combo.Cards = slices.Clone(combo.Cards)
		c.Table[i] = combo
	}
	c.Scores = make(map[string]int, len(g.Scores))
	for id, s := range g.Scores {
		c.Scores[id] = s
	}
	if g.DrawnFromDiscard != nil {
		card := *g.DrawnFromDiscard
		c.DrawnFromDiscard = &card
	}
	if g.PendingWild != nil {
		card := *g.PendingWild
		c.PendingWild = &card
	}
	return &c
}

// AllCards gathers every card in play: deck, discard pile, active hands and
// the table.
func (g *GameState) AllCards() []game.Card {
	cards := slices.Clone(g.Deck)
	cards = append(cards, g.DiscardPile...)
	for _, p := range g.Players {
		if !p.Eliminated {
			cards = append(cards, p.Hand...)
		}
	}
	for _, combo := range g.Table {
		cards = append(cards, combo.Cards...)
	}
	return cards
}

// removeCards takes each card out of hand once. It fails without touching
// hand if any card is missing.
func removeCards(hand []game.Card, cards []game.Card) ([]game.Card, error) {
	rest := slices.Clone(hand)
	for _, card := range cards {
		i := slices.Index(rest, card)
		if i < 0 {
			return hand, ErrCardNotInHand.withf("%s is not in your hand", card.Compact())
		}
		rest = slices.Delete(rest, i, i+1)
	}
	return rest, nil
}
