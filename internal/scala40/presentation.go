package scala40

import "scala40-server/internal/game"

// ClientView is what one player is allowed to see.
type ClientView struct {
	GameID             string             `json:"gameId"`
	PlayerID           string             `json:"playerId"`
	Hand               []game.Card        `json:"hand"`
	HasOpened          bool               `json:"hasOpened"`
	Players            []OtherPlayerView  `json:"players"`
	Table              []TableCombination `json:"tableCombinations"`
	DeckCount          int                `json:"deckCount"`
	DiscardCount       int                `json:"discardCount"`
	DiscardTopCard     *game.Card         `json:"discardTopCard"` // nil when the pile is empty
	CurrentTurn        string             `json:"currentTurnPlayer"`
	Phase              Phase              `json:"turnPhase"`
	Smazzata           int                `json:"smazzataNumber"`
	FirstRoundComplete bool               `json:"firstRoundComplete"`
	PendingWild        *game.Card         `json:"pendingWild,omitempty"`
	Scores             map[string]int     `json:"scores"`
	Status             Status             `json:"status"`
	Winner             string             `json:"winner,omitempty"`
	Version            int                `json:"version"`
}

type OtherPlayerView struct {
	PlayerID   string `json:"playerId"`
	HandLength int    `json:"handLength"`
	HasOpened  bool   `json:"hasOpened"`
	Eliminated bool   `json:"isEliminated"`
	Score      int    `json:"score"`
}

// ClientViewFor hides the deck order and every hand but the viewer's.
// Spectators (unknown ids) see no hand at all.
func (g *GameState) ClientViewFor(playerID string) *ClientView {
	view := &ClientView{
		GameID:             g.ID,
		PlayerID:           playerID,
		Hand:               []game.Card{},
		Players:            []OtherPlayerView{},
		Table:              g.Table,
		DeckCount:          len(g.Deck),
		DiscardCount:       len(g.DiscardPile),
		CurrentTurn:        g.CurrentTurn,
		Phase:              g.Phase,
		Smazzata:           g.Smazzata,
		FirstRoundComplete: g.FirstRoundComplete,
		Scores:             copyScores(g.Scores),
		Status:             g.Status,
		Winner:             g.Winner,
		Version:            g.Version,
	}
	if len(g.DiscardPile) > 0 {
		top := g.DiscardPile[len(g.DiscardPile)-1]
		view.DiscardTopCard = &top
	}

	for _, p := range g.Players {
		if p.ID == playerID {
			view.Hand = p.Hand
			view.HasOpened = p.HasOpened
			if g.CurrentTurn == playerID {
				view.PendingWild = g.PendingWild
			}
			continue
		}
		view.Players = append(view.Players, OtherPlayerView{
			PlayerID:   p.ID,
			HandLength: len(p.Hand),
			HasOpened:  p.HasOpened,
			Eliminated: p.Eliminated,
			Score:      g.Scores[p.ID],
		})
	}
	return view
}

// EventFor is the version of ev that viewer may see. A card drawn from the
// deck is only named to the player who drew it; everything else is public.
func EventFor(ev Event, viewer string) Event {
	if drawn, ok := ev.(CardDrawn); ok && drawn.Source == SourceDeck && drawn.PlayerID != viewer {
		drawn.Card = ""
		return drawn
	}
	return ev
}
