// Command inspect prints a saved game and checks it for broken invariants.
//
//	inspect -file game.json -validate
//	inspect -id 6f1c... -hand p2
//	inspect -id 6f1c... -follow
//
// With -id the game is loaded through the store named by STORE_DRIVER.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"scala40-server/internal/config"
	"scala40-server/internal/game"
	"scala40-server/internal/notify"
	"scala40-server/internal/scala40"
	"scala40-server/internal/store"
)

func main() {
	file := flag.String("file", "", "game JSON file, - for stdin")
	id := flag.String("id", "", "game id to load from the configured store")
	hand := flag.String("hand", "", "print this player's hand")
	table := flag.Bool("table", false, "print the table combinations")
	validate := flag.Bool("validate", false, "run the integrity checker; exit 1 on violations")
	follow := flag.Bool("follow", false, "stream the game's events from NATS_URL")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logrus.NewEntry(cfg.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var g *scala40.GameState
	switch {
	case *file != "":
		g, err = readFile(*file)
	case *id != "":
		g, err = loadFromStore(ctx, cfg, *id)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Fatal("failed to load game")
	}

	printSummary(os.Stdout, g)
	if *hand != "" {
		if err := printHand(os.Stdout, g, *hand); err != nil {
			log.WithError(err).Fatal("cannot show hand")
		}
	}
	if *table {
		printTable(os.Stdout, g)
	}

	if *validate {
		violations := scala40.CheckIntegrity(g)
		if len(violations) > 0 {
			for _, v := range violations {
				fmt.Printf("VIOLATION %s\n", v)
			}
			os.Exit(1)
		}
		fmt.Println("integrity: ok")
	}

	if *follow {
		if cfg.NATSURL == "" {
			log.Fatal("-follow needs NATS_URL")
		}
		nc, err := notify.Connect(cfg.NATSURL, log)
		if err != nil {
			log.WithError(err).Fatal("cannot reach NATS")
		}
		defer nc.Close()
		err = notify.Watch(ctx, nc, notify.GameSubject(g.ID), func(m notify.Message) {
			fmt.Printf("%-16s %s\n", m.Event, m.Data)
		})
		if err != nil {
			log.WithError(err).Fatal("watch failed")
		}
	}
}

// readFile accepts either a bare game or the GET /games/{id} snapshot.
func readFile(path string) (*scala40.GameState, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return decodeGame(data)
}

func decodeGame(data []byte) (*scala40.GameState, error) {
	var snapshot struct {
		Game *scala40.GameState `json:"game"`
	}
	if err := json.Unmarshal(data, &snapshot); err == nil && snapshot.Game != nil {
		return snapshot.Game, nil
	}

	var g scala40.GameState
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	if g.ID == "" {
		return nil, fmt.Errorf("decode game: no gameId")
	}
	return &g, nil
}

func loadFromStore(ctx context.Context, cfg config.Config, id string) (*scala40.GameState, error) {
	backend, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisAddr:   cfg.RedisAddr,
		RedisTTL:    cfg.RedisTTL,
	})
	if err != nil {
		return nil, err
	}
	defer backend.Close()
	return backend.Games.Load(ctx, id)
}

func printSummary(w io.Writer, g *scala40.GameState) {
	fmt.Fprintf(w, "game %s  status=%s  smazzata=%d  version=%d\n", g.ID, g.Status, g.Smazzata, g.Version)
	if g.Winner != "" {
		fmt.Fprintf(w, "winner: %s\n", g.Winner)
	}
	fmt.Fprintf(w, "turn: %s (%s)  dealer: %s  first round complete: %t\n", g.CurrentTurn, g.Phase, g.Dealer, g.FirstRoundComplete)
	fmt.Fprintf(w, "deck: %d  discard: %d", len(g.Deck), len(g.DiscardPile))
	if n := len(g.DiscardPile); n > 0 {
		fmt.Fprintf(w, "  top: %s", g.DiscardPile[n-1].Compact())
	}
	fmt.Fprintln(w)
	if g.PendingWild != nil {
		fmt.Fprintf(w, "pending wild: %s\n", g.PendingWild.Compact())
	}

	for _, p := range g.Players {
		flags := []string{}
		if p.HasOpened {
			flags = append(flags, "opened")
		}
		if p.Eliminated {
			flags = append(flags, "eliminated")
		}
		fmt.Fprintf(w, "  %-12s score=%-4d cards=%-2d %s\n", p.ID, g.Scores[p.ID], len(p.Hand), strings.Join(flags, ","))
	}
}

func printHand(w io.Writer, g *scala40.GameState, playerID string) error {
	p := g.Player(playerID)
	if p == nil {
		return fmt.Errorf("no player %q in game %s", playerID, g.ID)
	}
	fmt.Fprintf(w, "hand of %s (%d points): %s\n", p.ID, game.HandValue(p.Hand), strings.Join(game.CompactAll(p.Hand), " "))
	return nil
}

func printTable(w io.Writer, g *scala40.GameState) {
	if len(g.Table) == 0 {
		fmt.Fprintln(w, "table: empty")
		return
	}
	fmt.Fprintln(w, "table:")
	for _, c := range g.Table {
		fmt.Fprintf(w, "  %-8s %-8s %-12s %s\n", c.ID[:min(8, len(c.ID))], c.Kind, c.Owner, strings.Join(game.CompactAll(c.Cards), " "))
	}
}
