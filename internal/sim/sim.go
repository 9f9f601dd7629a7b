// Package sim plays whole Scala 40 matches between greedy bots. It exists to
// shake out rule bugs: the integrity checker runs before every turn.
package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"scala40-server/internal/game"
	"scala40-server/internal/scala40"
	"scala40-server/internal/store"
)

const DefaultMaxTurns = 5000

type Options struct {
	Players  int
	Seed     uint64
	MaxTurns int
	Settings scala40.Settings
	Log      *logrus.Entry
}

type Result struct {
	Seed     uint64         `json:"seed"`
	Winner   string         `json:"winner,omitempty"`
	Turns    int            `json:"turns"`
	Smazzate int            `json:"smazzate"`
	Scores   map[string]int `json:"scores"`
	Capped   bool           `json:"capped,omitempty"` // stopped at MaxTurns with no winner
}

// IntegrityError reports the first turn at which the state broke.
type IntegrityError struct {
	Turn       int
	Violations []scala40.Violation
}

func (e *IntegrityError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("INTEGRITY: turn %d: %s", e.Turn, strings.Join(parts, "; "))
}

// StuckError means a bot found no legal way to end its turn.
type StuckError struct {
	PlayerID string
	Hand     []string
	Last     error
}

func (e *StuckError) Error() string {
	return fmt.Sprintf("STUCK: %s cannot end the turn holding %v: %v", e.PlayerID, e.Hand, e.Last)
}

func (e *StuckError) Unwrap() error { return e.Last }

func PlayerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i+1)
	}
	return ids
}

// Play runs one match to the end, or to MaxTurns, against an in-memory
// store. The same seed always plays the same match.
func Play(ctx context.Context, opts Options) (*Result, error) {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Settings.EliminationScore <= 0 {
		opts.Settings = scala40.DefaultSettings()
	}
	log := opts.Log
	if log == nil {
		quiet := logrus.New()
		quiet.SetLevel(logrus.WarnLevel)
		log = logrus.NewEntry(quiet)
	}
	log = log.WithField("seed", opts.Seed)

	engine := scala40.NewEngine(store.NewMemoryStore(), game.NewSeededRand(opts.Seed), scala40.WithLogger(log))
	b := &bot{engine: engine, rng: game.NewSeededRand(opts.Seed + 1)}

	g, err := engine.CreateGame(ctx, "sim", PlayerIDs(opts.Players), opts.Settings)
	if err != nil {
		return nil, err
	}

	result := &Result{Seed: opts.Seed}
	for g.Status != scala40.StatusFinished {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if result.Turns >= opts.MaxTurns {
			result.Capped = true
			break
		}

		if g.Status != scala40.StatusPlaying || g.Smazzata == 0 {
			out, err := engine.StartRound(ctx, g.ID)
			if err != nil {
				return nil, fmt.Errorf("start smazzata %d: %w", g.Smazzata+1, err)
			}
			g = out.Game
		}

		if violations := scala40.CheckIntegrity(g); len(violations) > 0 {
			return nil, &IntegrityError{Turn: result.Turns, Violations: violations}
		}

		if g, err = b.turn(ctx, g); err != nil {
			return nil, fmt.Errorf("turn %d: %w", result.Turns, err)
		}
		result.Turns++
	}

	result.Winner = g.Winner
	result.Smazzate = g.Smazzata
	result.Scores = g.Scores
	log.WithFields(logrus.Fields{"winner": result.Winner, "turns": result.Turns, "smazzate": result.Smazzate}).Info("match finished")
	return result, nil
}

// Summary aggregates many matches.
type Summary struct {
	Games     int            `json:"games"`
	Completed int            `json:"completed"`
	Capped    int            `json:"capped"`
	Errors    []string       `json:"errors,omitempty"`
	Wins      map[string]int `json:"wins"`
	Turns     int            `json:"turns"`
	Smazzate  int            `json:"smazzate"`
}

func (s *Summary) Add(r *Result, err error) {
	s.Games++
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
		return
	}
	if s.Wins == nil {
		s.Wins = make(map[string]int)
	}
	if r.Capped {
		s.Capped++
	} else {
		s.Completed++
		s.Wins[r.Winner]++
	}
	s.Turns += r.Turns
	s.Smazzate += r.Smazzate
}

func (s *Summary) AverageTurns() float64 {
	if n := s.Games - len(s.Errors); n > 0 {
		return float64(s.Turns) / float64(n)
	}
	return 0
}

func (s *Summary) AverageSmazzate() float64 {
	if n := s.Games - len(s.Errors); n > 0 {
		return float64(s.Smazzate) / float64(n)
	}
	return 0
}
