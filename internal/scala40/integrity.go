package scala40

import (
	"fmt"
	"slices"

	"scala40-server/internal/game"
)

// Violation is one broken invariant found by CheckIntegrity.
type Violation struct {
	Check  string `json:"check"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	return v.Check + ": " + v.Detail
}

// CheckIntegrity audits a game against the conservation and rule invariants.
// Card and turn checks only apply while a round is being played; an empty
// result means the state is consistent.
func CheckIntegrity(g *GameState) []Violation {
	var out []Violation
	add := func(check, format string, args ...any) {
		out = append(out, Violation{Check: check, Detail: fmt.Sprintf(format, args...)})
	}

	for id, score := range g.Scores {
		if score < 0 {
			add("scores", "player %s has negative score %d", id, score)
		}
	}

	if g.Status != StatusPlaying || g.Smazzata == 0 {
		return out
	}

	cards := g.AllCards()
	if len(cards) != game.TotalCards {
		add("card_count", "%d cards in play, %d expected", len(cards), game.TotalCards)
	}
	counts := make(map[game.Card]int)
	for _, card := range cards {
		counts[card]++
	}
	wilds := 0
	for card, n := range counts {
		switch {
		case card.IsWild():
			wilds += n
			if n > game.WildsPerDeck {
				add("duplicates", "%d wilds from deck %d", n, card.Deck)
			}
		case n > 1:
			add("duplicates", "%s appears %d times", card.Compact(), n)
		}
	}
	if wilds != game.TotalWilds {
		add("wild_count", "%d wilds in play, %d expected", wilds, game.TotalWilds)
	}

	for _, combo := range g.Table {
		var err error
		if combo.Kind == KindSet {
			_, err = ValidateSet(combo.Cards)
		} else {
			_, err = ValidateSequence(combo.Cards)
		}
		if err != nil {
			add("table", "combination %s is not a valid %s: %v", combo.ID, combo.Kind, err)
		}
		owner := g.Player(combo.Owner)
		switch {
		case owner == nil:
			add("table", "combination %s belongs to unknown player %s", combo.ID, combo.Owner)
		case !owner.HasOpened && !owner.Eliminated:
			add("table", "combination %s belongs to %s who has not opened", combo.ID, combo.Owner)
		}
	}

	current := g.Player(g.CurrentTurn)
	switch {
	case current == nil:
		add("turn", "current player %q is not in the game", g.CurrentTurn)
	case current.Eliminated:
		add("turn", "current player %s is eliminated", g.CurrentTurn)
	}
	if !g.Phase.Valid() {
		add("phase", "turn phase %q is not valid", g.Phase)
	}

	if g.PendingWild != nil {
		if current == nil || !slices.Contains(current.Hand, *g.PendingWild) {
			add("pending_wild", "freed wild %s is not in the current player's hand", g.PendingWild.Compact())
		}
		if g.Phase != PhasePlay {
			add("pending_wild", "a wild is pending outside the play phase")
		}
	}

	return out
}
