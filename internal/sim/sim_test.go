package sim_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scala40-server/internal/game"
	"scala40-server/internal/scala40"
	"scala40-server/internal/sim"
)

func TestSeededMatches(t *testing.T) {
	if testing.Short() {
		t.Skip("plays full matches")
	}
	for players := game.MinPlayers; players <= game.MaxPlayers; players++ {
		for seed := uint64(1); seed <= 5; seed++ {
			t.Run(fmt.Sprintf("%dp/seed%d", players, seed), func(t *testing.T) {
				result, err := sim.Play(context.Background(), sim.Options{Players: players, Seed: seed})
				require.NoError(t, err)
				assert.Positive(t, result.Turns)
				assert.Positive(t, result.Smazzate)
				if !result.Capped {
					assert.Contains(t, sim.PlayerIDs(players), result.Winner)
					assert.GreaterOrEqual(t, result.Scores[result.Winner], 0)
				}
			})
		}
	}
}

func TestSameSeedSameMatch(t *testing.T) {
	opts := sim.Options{Players: 2, Seed: 40, MaxTurns: 300}
	first, err := sim.Play(context.Background(), opts)
	require.NoError(t, err)
	second, err := sim.Play(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTurnCap(t *testing.T) {
	result, err := sim.Play(context.Background(), sim.Options{Players: 3, Seed: 9, MaxTurns: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, result.Turns)
	assert.True(t, result.Capped)
	assert.Empty(t, result.Winner)
}

func TestCancelledMatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Play(ctx, sim.Options{Players: 2, Seed: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindOpening(t *testing.T) {
	cards := game.MustParseCards

	tests := []struct {
		name string
		hand []game.Card
		keep int
		want int // groups found, 0 for none
	}{
		{"one big run", cards("10h0", "Jh0", "Qh0", "Kh0", "2c0", "5d1"), 1, 1},
		{"two groups", cards("5c0", "5d0", "5s0", "9h0", "10h0", "Jh0", "2c0"), 1, 2},
		{"not enough points", cards("2c0", "2d0", "2s0", "3h0", "4h0", "5h0", "Kc0"), 1, 0},
		{"would empty the hand", cards("10h0", "Jh0", "Qh0", "Kh0"), 1, 0},
		{"nothing", cards("2c0", "5d0", "9h0", "Kc0"), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := sim.FindOpening(tt.hand, tt.keep)
			assert.Len(t, groups, tt.want)
			if tt.want > 0 {
				points, err := scala40.ValidateOpening(groups)
				assert.NoError(t, err)
				assert.GreaterOrEqual(t, points, scala40.OpeningThreshold)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	assert := assert.New(t)
	var s sim.Summary
	s.Add(&sim.Result{Winner: "p1", Turns: 100, Smazzate: 3}, nil)
	s.Add(&sim.Result{Winner: "p2", Turns: 200, Smazzate: 5}, nil)
	s.Add(&sim.Result{Turns: 5000, Smazzate: 40, Capped: true}, nil)
	s.Add(nil, fmt.Errorf("boom"))

	assert.Equal(4, s.Games)
	assert.Equal(2, s.Completed)
	assert.Equal(1, s.Capped)
	assert.Len(s.Errors, 1)
	assert.Equal(map[string]int{"p1": 1, "p2": 1}, s.Wins)
	assert.InDelta(1766.67, s.AverageTurns(), 0.01)
}
