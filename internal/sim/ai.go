package sim

import (
	"context"
	"math/rand/v2"
	"slices"
	"sort"

	"scala40-server/internal/game"
	"scala40-server/internal/scala40"
)

// pickChance is how often an opened player takes the discard instead of
// the deck.
const pickChance = 0.3

// bot is a greedy player. It is not trying to win, only to drive an engine
// through every kind of legal move.
type bot struct {
	engine *scala40.Engine
	rng    *rand.Rand
}

// attempt turns a rule rejection into "try something else" and passes any
// other failure up.
func attempt(out *scala40.Outcome, err error) (*scala40.GameState, error) {
	if err != nil {
		if scala40.IsRuleError(err) {
			return nil, nil
		}
		return nil, err
	}
	return out.Game, nil
}

func reserve(g *scala40.GameState) int {
	if g.FirstRoundComplete {
		return 1
	}
	return 2
}

// turn plays the current player's whole turn and returns the state after
// their discard.
func (b *bot) turn(ctx context.Context, g *scala40.GameState) (*scala40.GameState, error) {
	id := g.CurrentTurn

	g, err := b.draw(ctx, g, id)
	if err != nil {
		return nil, err
	}

	if !g.Player(id).HasOpened {
		if groups := FindOpening(g.Player(id).Hand, reserve(g)); groups != nil {
			next, err := attempt(b.engine.Open(ctx, g.ID, id, groups))
			if err != nil {
				return nil, err
			}
			if next != nil {
				g = next
			}
		}
	}

	if g.Player(id).HasOpened && g.Phase == scala40.PhasePlay {
		if g, err = b.layDown(ctx, g, id); err != nil {
			return nil, err
		}
	}

	return b.discard(ctx, g, id)
}

func (b *bot) draw(ctx context.Context, g *scala40.GameState, id string) (*scala40.GameState, error) {
	me := g.Player(id)
	if me.HasOpened && len(g.DiscardPile) > 0 && b.rng.Float64() < pickChance {
		next, err := attempt(b.engine.Draw(ctx, g.ID, id, scala40.SourceDiscard))
		if err != nil || next != nil {
			return next, err
		}
	}
	out, err := b.engine.Draw(ctx, g.ID, id, scala40.SourceDeck)
	if err != nil {
		return nil, err
	}
	return out.Game, nil
}

// layDown plays one new combination of each size it can find and then
// attaches whatever fits, always keeping enough cards to end the turn.
func (b *bot) layDown(ctx context.Context, g *scala40.GameState, id string) (*scala40.GameState, error) {
	for _, size := range []int{3, 4} {
		hand := g.Player(id).Hand
		if len(hand)-size < reserve(g) {
			break
		}
		for _, cards := range combinations(hand, size) {
			if _, _, err := scala40.ValidateCombination(cards); err != nil {
				continue
			}
			next, err := attempt(b.engine.Play(ctx, g.ID, id, cards))
			if err != nil {
				return nil, err
			}
			if next != nil {
				g = next
				break
			}
		}
	}

	g, err := b.substitute(ctx, g, id)
	if err != nil {
		return nil, err
	}

	for attached := true; attached; {
		attached = false
		for _, combo := range g.Table {
			hand := g.Player(id).Hand
			if len(hand) <= reserve(g) {
				return g, nil
			}
			for _, card := range hand {
				if _, err := scala40.CanAttach(card, combo); err != nil {
					continue
				}
				next, err := attempt(b.engine.Attach(ctx, g.ID, id, card, combo.ID))
				if err != nil {
					return nil, err
				}
				if next != nil {
					g, attached = next, true
					break
				}
			}
			if attached {
				break
			}
		}
	}
	return g, nil
}

// substitute swaps one wild off the table and attaches it somewhere else.
func (b *bot) substitute(ctx context.Context, g *scala40.GameState, id string) (*scala40.GameState, error) {
	for _, combo := range g.Table {
		if !combo.HasWild() {
			continue
		}
		for _, card := range g.Player(id).Hand {
			if scala40.CanSubstituteWild(card, combo) != nil {
				continue
			}
			next, err := attempt(b.engine.SubstituteWild(ctx, g.ID, id, card, combo.ID))
			if err != nil {
				return nil, err
			}
			if next == nil {
				continue
			}
			return b.placeWild(ctx, next, id)
		}
	}
	return g, nil
}

func (b *bot) placeWild(ctx context.Context, g *scala40.GameState, id string) (*scala40.GameState, error) {
	wild := *g.PendingWild
	for _, combo := range g.Table {
		if _, err := scala40.CanAttach(wild, combo); err != nil {
			continue
		}
		next, err := attempt(b.engine.Attach(ctx, g.ID, id, wild, combo.ID))
		if err != nil {
			return nil, err
		}
		if next != nil {
			return next, nil
		}
	}
	return nil, &StuckError{PlayerID: id, Hand: game.CompactAll(g.Player(id).Hand), Last: scala40.ErrWildPending}
}

// discard throws a random legal card. The engine guarantees one exists, so
// running out of candidates means a rule bug.
func (b *bot) discard(ctx context.Context, g *scala40.GameState, id string) (*scala40.GameState, error) {
	hand := slices.Clone(g.Player(id).Hand)
	b.rng.Shuffle(len(hand), func(i, j int) { hand[i], hand[j] = hand[j], hand[i] })

	var last error
	for _, card := range hand {
		out, err := b.engine.Discard(ctx, g.ID, id, card)
		if err == nil {
			return out.Game, nil
		}
		if !scala40.IsRuleError(err) {
			return nil, err
		}
		last = err
	}
	return nil, &StuckError{PlayerID: id, Hand: game.CompactAll(hand), Last: last}
}

type scored struct {
	cards  []game.Card
	points int
}

// FindOpening looks for non-overlapping three and four card combinations in
// hand worth at least the opening threshold, highest scoring first, leaving
// at least keep cards behind. It returns nil when there is none.
func FindOpening(hand []game.Card, keep int) [][]game.Card {
	var found []scored
	for _, size := range []int{3, 4} {
		for _, cards := range combinations(hand, size) {
			if _, points, err := scala40.ValidateCombination(cards); err == nil {
				found = append(found, scored{cards, points})
			}
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].points > found[j].points })

	var (
		groups [][]game.Card
		left   = slices.Clone(hand)
		total  int
	)
	for _, f := range found {
		rest, ok := without(left, f.cards)
		if !ok || len(rest) < keep {
			continue
		}
		groups = append(groups, f.cards)
		left = rest
		total += f.points
		if total >= scala40.OpeningThreshold {
			return groups
		}
	}
	return nil
}

// without removes one copy of each card, reporting false if any is missing.
func without(hand, cards []game.Card) ([]game.Card, bool) {
	rest := slices.Clone(hand)
	for _, card := range cards {
		i := slices.Index(rest, card)
		if i < 0 {
			return nil, false
		}
		rest = slices.Delete(rest, i, i+1)
	}
	return rest, true
}

// combinations lists every size-card subset of hand, in hand order.
func combinations(hand []game.Card, size int) [][]game.Card {
	var out [][]game.Card
	pick := make([]game.Card, 0, size)
	var walk func(start int)
	walk = func(start int) {
		if len(pick) == size {
			out = append(out, slices.Clone(pick))
			return
		}
		for i := start; i <= len(hand)-(size-len(pick)); i++ {
			pick = append(pick, hand[i])
			walk(i + 1)
			pick = pick[:len(pick)-1]
		}
	}
	walk(0)
	return out
}
