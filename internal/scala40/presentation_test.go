package scala40_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scala40-server/internal/game"
	"scala40-server/internal/scala40"
)

func TestClientViewHidesOtherHands(t *testing.T) {
	assert := assert.New(t)
	tb := newTable(t, scala40.DefaultSettings(), "alice", "bob", "carol")
	g := tb.game()

	for _, p := range g.Players {
		view := g.ClientViewFor(p.ID)
		assert.Equal(p.Hand, view.Hand)
		require.Len(t, view.Players, 2)
		for _, other := range view.Players {
			assert.NotEqual(p.ID, other.PlayerID)
			assert.Equal(game.CardsPerHand, other.HandLength)
		}
		assert.Equal(len(g.Deck), view.DeckCount)
		assert.Equal(g.DiscardPile[len(g.DiscardPile)-1], *view.DiscardTopCard)
	}

	data, err := json.Marshal(g.ClientViewFor("alice"))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(raw, "deck")
	assert.NotContains(raw, "discardPile")
	for _, other := range raw["players"].([]any) {
		assert.NotContains(other, "hand")
	}
}

func TestClientViewForSpectator(t *testing.T) {
	tb := newTable(t, scala40.DefaultSettings(), "alice", "bob")
	view := tb.game().ClientViewFor("spectator")

	assert.Empty(t, view.Hand)
	assert.Len(t, view.Players, 2)
	assert.Nil(t, view.PendingWild)
}

func TestClientViewPendingWild(t *testing.T) {
	tb := newTable(t, scala40.DefaultSettings(), "alice", "bob")
	tb.rig(func(g *scala40.GameState) {
		place(t, g, "eights", "alice", scala40.KindSet, "8h0", "8d0", "J0")
		g.Player("alice").HasOpened = true
		setHand(t, g, "bob", "8c0", "Kd0")
		inPlay(g, "bob", scala40.PhasePlay)
	})
	out, err := tb.engine.SubstituteWild(tb.ctx, tb.id, "bob", cards("8c0")[0], "eights")
	require.NoError(t, err)

	assert.Equal(t, game.NewWild(0), *out.Game.ClientViewFor("bob").PendingWild)
	assert.Nil(t, out.Game.ClientViewFor("alice").PendingWild)
}

func TestMovesChangeView(t *testing.T) {
	tb := newTable(t, scala40.DefaultSettings(), "alice", "bob")
	before := tb.game().ClientViewFor("bob")

	out, err := tb.engine.Draw(tb.ctx, tb.id, "bob", scala40.SourceDeck)
	require.NoError(t, err)
	after := out.Game.ClientViewFor("bob")

	assert.Greater(t, before.DeckCount, after.DeckCount)
	assert.Len(t, after.Hand, len(before.Hand)+1)
	assert.Equal(t, scala40.PhaseDiscard, after.Phase)
	assert.Greater(t, after.Version, before.Version)
}

func TestEventForHidesDeckDraws(t *testing.T) {
	deckDraw := scala40.CardDrawn{GameID: "g", PlayerID: "bob", Source: scala40.SourceDeck, Card: "9s0", HandSize: 14}
	pileDraw := scala40.CardDrawn{GameID: "g", PlayerID: "bob", Source: scala40.SourceDiscard, Card: "Kc1", HandSize: 14}
	discard := scala40.Discarded{GameID: "g", PlayerID: "bob", Card: "4d0"}

	tests := []struct {
		name   string
		ev     scala40.Event
		viewer string
		card   string
	}{
		{"drawer sees the deck card", deckDraw, "bob", "9s0"},
		{"opponent does not", deckDraw, "alice", ""},
		{"spectator does not", deckDraw, "", ""},
		{"pile draws are public", pileDraw, "alice", "Kc1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scala40.EventFor(tt.ev, tt.viewer).(scala40.CardDrawn)
			assert.Equal(t, tt.card, got.Card)
			assert.Equal(t, 14, got.HandSize)
		})
	}

	data, err := scala40.MarshalEvent(scala40.EventFor(deckDraw, "alice"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "9s0")
	assert.NotContains(t, string(data), `"card"`)

	assert.Equal(t, scala40.Event(discard), scala40.EventFor(discard, "alice"))
}
