package scala40

import "scala40-server/internal/game"

// ApplyRoundScores charges every active player except the closer the value
// of the cards left in their hand, and returns what each one took this round.
func ApplyRoundScores(g *GameState, closer string) map[string]int {
	round := make(map[string]int)
	if g.Scores == nil {
		g.Scores = make(map[string]int)
	}
	for i := range g.Players {
		p := &g.Players[i]
		if p.Eliminated {
			continue
		}
		points := 0
		if p.ID != closer {
			points = game.HandValue(p.Hand)
		}
		p.RoundScore = points
		g.Scores[p.ID] += points
		round[p.ID] = points
	}
	return round
}

// CheckEliminations marks players at or over the threshold and returns the
// ones newly eliminated, in seat order.
func CheckEliminations(g *GameState) []string {
	threshold := g.Settings.EliminationScore
	if threshold <= 0 {
		threshold = DefaultEliminationScore
	}
	var out []string
	for i := range g.Players {
		p := &g.Players[i]
		if !p.Eliminated && g.Scores[p.ID] >= threshold {
			p.Eliminated = true
			out = append(out, p.ID)
		}
	}
	return out
}

// CheckWinner returns the last player standing, if only one remains.
func CheckWinner(g *GameState) (string, bool) {
	active := g.ActivePlayers()
	if len(active) == 1 {
		return active[0], true
	}
	return "", false
}
