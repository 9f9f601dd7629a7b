// Command simulate plays bot matches and reports rule breakage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/sirupsen/logrus"

	"scala40-server/internal/scala40"
	"scala40-server/internal/sim"
)

func main() {
	games := flag.Int("games", 100, "number of matches to play")
	players := flag.Int("players", 4, "players per match (2-4)")
	seed := flag.Uint64("seed", 1, "seed of the first match; match i uses seed+i")
	maxTurns := flag.Int("max-turns", sim.DefaultMaxTurns, "turn cap per match")
	elimination := flag.Int("elimination", scala40.DefaultEliminationScore, "elimination score")
	verbose := flag.Bool("verbose", false, "log every action")
	asJSON := flag.Bool("json", false, "print the summary as JSON")
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var summary sim.Summary
	for i := range *games {
		result, err := sim.Play(ctx, sim.Options{
			Players:  *players,
			Seed:     *seed + uint64(i),
			MaxTurns: *maxTurns,
			Settings: scala40.Settings{EliminationScore: *elimination},
			Log:      logrus.NewEntry(logger),
		})
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			logger.WithError(err).WithField("seed", *seed+uint64(i)).Error("match failed")
		}
		summary.Add(result, err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			logger.WithError(err).Fatal("failed to encode summary")
		}
	} else {
		printSummary(summary)
	}
	if len(summary.Errors) > 0 {
		os.Exit(1)
	}
}

func printSummary(s sim.Summary) {
	fmt.Printf("matches:   %d (%d finished, %d capped, %d failed)\n", s.Games, s.Completed, s.Capped, len(s.Errors))
	fmt.Printf("turns:     %.1f per match\n", s.AverageTurns())
	fmt.Printf("smazzate:  %.1f per match\n", s.AverageSmazzate())

	players := make([]string, 0, len(s.Wins))
	for id := range s.Wins {
		players = append(players, id)
	}
	slices.Sort(players)
	for _, id := range players {
		fmt.Printf("  %-4s won %d\n", id, s.Wins[id])
	}
	for _, e := range s.Errors {
		fmt.Printf("error: %s\n", e)
	}
}
