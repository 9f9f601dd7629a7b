package scala40_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scala40-server/internal/game"
	"scala40-server/internal/scala40"
)

func scoredGame(hands map[string][]game.Card, scores map[string]int) *scala40.GameState {
	g := &scala40.GameState{Scores: scores, Settings: scala40.DefaultSettings()}
	for _, id := range []string{"alice", "bob", "carol"} {
		g.Players = append(g.Players, scala40.PlayerState{ID: id, Hand: hands[id]})
	}
	return g
}

func TestApplyRoundScores(t *testing.T) {
	assert := assert.New(t)
	g := scoredGame(map[string][]game.Card{
		"alice": cards("Ah0", "J0", "5d0"),
		"bob":   cards("Kc0"),
		"carol": cards("2c0", "10s0"),
	}, map[string]int{"alice": 10, "bob": 20, "carol": 30})

	round := scala40.ApplyRoundScores(g, "bob")

	assert.Equal(map[string]int{"alice": 41, "bob": 0, "carol": 12}, round)
	assert.Equal(map[string]int{"alice": 51, "bob": 20, "carol": 42}, g.Scores)
	assert.Equal(41, g.Player("alice").RoundScore)
	assert.Equal(0, g.Player("bob").RoundScore, "the closer takes nothing for the card left")
}

func TestApplyRoundScoresSkipsEliminated(t *testing.T) {
	g := scoredGame(map[string][]game.Card{"carol": cards("Kc0")}, nil)
	g.Players[0].Eliminated = true

	round := scala40.ApplyRoundScores(g, "bob")
	assert.NotContains(t, round, "alice")
	assert.Equal(t, 10, g.Scores["carol"])
}

func TestCheckEliminations(t *testing.T) {
	tests := []struct {
		name       string
		threshold  int
		scores     map[string]int
		eliminated []string
	}{
		{"nobody", 101, map[string]int{"alice": 100, "bob": 0, "carol": 50}, nil},
		{"exactly the threshold", 101, map[string]int{"alice": 101, "bob": 0, "carol": 50}, []string{"alice"}},
		{"seat order", 101, map[string]int{"alice": 120, "bob": 0, "carol": 150}, []string{"alice", "carol"}},
		{"custom threshold", 51, map[string]int{"alice": 50, "bob": 51, "carol": 0}, []string{"bob"}},
		{"unset falls back to default", 0, map[string]int{"alice": 100, "bob": 101, "carol": 0}, []string{"bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := scoredGame(nil, tt.scores)
			g.Settings.EliminationScore = tt.threshold
			assert.Equal(t, tt.eliminated, scala40.CheckEliminations(g))
			for _, id := range tt.eliminated {
				assert.True(t, g.Player(id).Eliminated)
			}
		})
	}
}

func TestCheckEliminationsOnlyOnce(t *testing.T) {
	g := scoredGame(nil, map[string]int{"alice": 200})
	assert.Equal(t, []string{"alice"}, scala40.CheckEliminations(g))
	assert.Empty(t, scala40.CheckEliminations(g))
}

func TestCheckWinner(t *testing.T) {
	assert := assert.New(t)
	g := scoredGame(nil, nil)

	_, ok := scala40.CheckWinner(g)
	assert.False(ok)

	g.Players[0].Eliminated = true
	_, ok = scala40.CheckWinner(g)
	assert.False(ok)

	g.Players[2].Eliminated = true
	winner, ok := scala40.CheckWinner(g)
	assert.True(ok)
	assert.Equal("bob", winner)
}
