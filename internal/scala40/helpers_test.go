package scala40_test

import (
	"context"
	"slices"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"scala40-server/internal/game"
	"scala40-server/internal/scala40"
	"scala40-server/internal/store"
)

// table is one dealt game plus the handles needed to rig it.
type table struct {
	t      *testing.T
	ctx    context.Context
	store  *store.MemoryStore
	engine *scala40.Engine
	logs   *test.Hook
	id     string
}

func newTable(t *testing.T, settings scala40.Settings, players ...string) *table {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	s := store.NewMemoryStore()
	tb := &table{
		t:      t,
		ctx:    context.Background(),
		store:  s,
		engine: scala40.NewEngine(s, game.NewSeededRand(40), scala40.WithLogger(logrus.NewEntry(logger))),
		logs:   hook,
	}
	g, err := tb.engine.CreateGame(tb.ctx, "", players, settings)
	require.NoError(t, err)
	tb.id = g.ID

	_, err = tb.engine.StartRound(tb.ctx, g.ID)
	require.NoError(t, err)
	return tb
}

func (tb *table) game() *scala40.GameState {
	tb.t.Helper()
	g, err := tb.engine.Game(tb.ctx, tb.id)
	require.NoError(tb.t, err)
	return g
}

// rig edits the stored game directly.
func (tb *table) rig(fn func(g *scala40.GameState)) {
	tb.t.Helper()
	g := tb.game()
	fn(g)
	require.NoError(tb.t, tb.store.Save(tb.ctx, g))
}

// requireIntact fails the test on any integrity violation.
func (tb *table) requireIntact() {
	tb.t.Helper()
	require.Empty(tb.t, scala40.CheckIntegrity(tb.game()))
}

// pull takes card out of wherever it is. A card taken from a hand, or the
// last card of the pile, is replaced by the top of the deck.
func pull(t *testing.T, g *scala40.GameState, card game.Card) {
	t.Helper()
	if i := slices.Index(g.Deck, card); i >= 0 {
		g.Deck = slices.Delete(g.Deck, i, i+1)
		return
	}
	if i := slices.Index(g.DiscardPile, card); i >= 0 {
		g.DiscardPile = slices.Delete(g.DiscardPile, i, i+1)
		if len(g.DiscardPile) == 0 {
			g.DiscardPile = append(g.DiscardPile, g.Deck[0])
			g.Deck = g.Deck[1:]
		}
		return
	}
	for p := range g.Players {
		if i := slices.Index(g.Players[p].Hand, card); i >= 0 {
			g.Players[p].Hand[i] = g.Deck[0]
			g.Deck = g.Deck[1:]
			return
		}
	}
	t.Fatalf("card %s is not on the deck, the pile or in a hand", card.Compact())
}

// setHand gives playerID exactly these cards; the old hand goes back to the
// deck.
func setHand(t *testing.T, g *scala40.GameState, playerID string, codes ...string) {
	t.Helper()
	p := g.Player(playerID)
	g.Deck = append(g.Deck, p.Hand...)
	p.Hand = []game.Card{}
	for _, card := range cards(codes...) {
		pull(t, g, card)
		p.Hand = append(p.Hand, card)
	}
}

// place lays a combination for owner straight onto the table.
func place(t *testing.T, g *scala40.GameState, id, owner string, kind scala40.Kind, codes ...string) {
	t.Helper()
	laid := cards(codes...)
	for _, card := range laid {
		pull(t, g, card)
	}
	g.Table = append(g.Table, scala40.TableCombination{ID: id, Owner: owner, Kind: kind, Cards: laid})
}

// inPlay puts playerID on turn in phase, already opened, after the first
// round of the smazzata.
func inPlay(g *scala40.GameState, playerID string, phase scala40.Phase) {
	g.CurrentTurn = playerID
	g.Phase = phase
	g.FirstRoundComplete = true
	g.Player(playerID).HasOpened = true
}

func kinds(events []scala40.Event) []scala40.EventKind {
	out := make([]scala40.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind()
	}
	return out
}
