package scala40

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"scala40-server/internal/game"
)

// Store persists games. Save must refuse to overwrite a record whose stored
// version differs from g.Version, returning ErrVersionConflict, and bump
// g.Version on success. Load returns ErrGameNotFound for unknown ids.
type Store interface {
	Load(ctx context.Context, gameID string) (*GameState, error)
	Save(ctx context.Context, g *GameState) error
	Delete(ctx context.Context, gameID string) error
}

// EventSink receives the events of every successful action after it has been
// saved.
type EventSink interface {
	Publish(ctx context.Context, gameID string, events []Event) error
}

// Outcome is the saved state after an action plus what it emitted.
type Outcome struct {
	Game   *GameState
	Events []Event
}

type Engine struct {
	store Store
	sink  EventSink
	log   *logrus.Entry
	now   func() time.Time

	rngMu sync.Mutex
	rng   game.Rand
}

type Option func(*Engine)

func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) { e.log = log }
}

func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires an engine to store. A nil rng means cryptographic
// shuffling.
func NewEngine(store Store, rng game.Rand, opts ...Option) *Engine {
	if rng == nil {
		rng = game.NewSecureRand()
	}
	e := &Engine{
		store: store,
		rng:   rng,
		log:   logrus.NewEntry(logrus.StandardLogger()),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) shuffle(cards []game.Card) []game.Card {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return game.Shuffle(cards, e.rng)
}

func (e *Engine) reshuffle(pile []game.Card) ([]game.Card, game.Card, error) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return game.ReshuffleDiscard(pile, e.rng)
}

// CreateGame seats players in the given order. No cards are dealt until
// StartRound.
func (e *Engine) CreateGame(ctx context.Context, lobbyID string, playerIDs []string, settings Settings) (*GameState, error) {
	if len(playerIDs) < game.MinPlayers || len(playerIDs) > game.MaxPlayers {
		return nil, ErrBadRoster.withf("%d players given", len(playerIDs))
	}
	seen := make(map[string]bool)
	for _, id := range playerIDs {
		if id == "" || seen[id] {
			return nil, ErrBadRoster.withf("player ids must be distinct and non-empty")
		}
		seen[id] = true
	}
	if settings.EliminationScore <= 0 {
		settings.EliminationScore = DefaultEliminationScore
	}

	g := &GameState{
		ID:          uuid.NewString(),
		LobbyID:     lobbyID,
		Players:     make([]PlayerState, len(playerIDs)),
		Deck:        []game.Card{},
		DiscardPile: []game.Card{},
		Table:       []TableCombination{},
		Scores:      make(map[string]int, len(playerIDs)),
		Status:      StatusPlaying,
		Settings:    settings,
		UpdatedAt:   e.now(),
	}
	for i, id := range playerIDs {
		g.Players[i] = PlayerState{ID: id, Hand: []game.Card{}}
		g.Scores[id] = 0
	}

	if err := e.store.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("save new game: %w", err)
	}
	e.log.WithFields(logrus.Fields{"gameId": g.ID, "players": playerIDs}).Info("game created")
	return g, nil
}

// Game loads the current state.
func (e *Engine) Game(ctx context.Context, gameID string) (*GameState, error) {
	return e.store.Load(ctx, gameID)
}

// apply runs one action against a fresh copy of the game. The copy is only
// saved if fn succeeds, so a rejected action leaves the stored game as it was.
func (e *Engine) apply(ctx context.Context, gameID, action string, fn func(g *GameState) ([]Event, error)) (*Outcome, error) {
	g, err := e.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}

	events, err := fn(g)
	if err != nil {
		if IsRuleError(err) {
			e.log.WithFields(logrus.Fields{"gameId": gameID, "action": action}).WithError(err).Debug("action rejected")
		}
		return nil, err
	}

	g.UpdatedAt = e.now()
	if err := e.store.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("save game %s after %s: %w", gameID, action, err)
	}

	for _, ev := range events {
		e.log.WithFields(logrus.Fields(ev.Fields())).Info(string(ev.Kind()))
	}
	if e.sink != nil && len(events) > 0 {
		if err := e.sink.Publish(ctx, gameID, events); err != nil {
			e.log.WithField("gameId", gameID).WithError(err).Warn("failed to publish events")
		}
	}
	return &Outcome{Game: g, Events: events}, nil
}

// StartRound deals a new smazzata. The dealer moves one active seat along
// each time and the player after the dealer acts first.
func (e *Engine) StartRound(ctx context.Context, gameID string) (*Outcome, error) {
	return e.apply(ctx, gameID, "start_round", func(g *GameState) ([]Event, error) {
		switch {
		case g.Status == StatusFinished:
			return nil, ErrGameFinished
		case g.Status == StatusPlaying && g.Smazzata > 0:
			return nil, ErrRoundInProgress
		}
		active := g.ActivePlayers()
		if len(active) < game.MinPlayers {
			return nil, ErrNotEnoughPlayers
		}

		hands, deck, first, err := game.Deal(e.shuffle(game.NewDeck()), len(active), game.CardsPerHand)
		if err != nil {
			return nil, err
		}

		sizes := make(map[string]int, len(active))
		for i := range g.Players {
			p := &g.Players[i]
			p.Hand = []game.Card{}
			p.HasOpened = false
			p.RoundScore = 0
		}
		for i, id := range active {
			g.Player(id).Hand = hands[i]
			sizes[id] = len(hands[i])
		}

		if g.Smazzata == 0 {
			g.Dealer = g.Players[0].ID
		} else {
			g.Dealer = g.nextActiveAfter(g.Dealer)
		}
		g.Smazzata++
		g.Deck = deck
		g.DiscardPile = []game.Card{first}
		g.Table = []TableCombination{}
		g.CurrentTurn = g.nextActiveAfter(g.Dealer)
		g.RoundStarter = g.CurrentTurn
		g.Phase = PhaseDraw
		g.RoundNumber = 1
		g.FirstRoundComplete = false
		g.DrawnFromDiscard = nil
		g.PendingWild = nil
		g.Status = StatusPlaying

		return []Event{RoundStarted{
			GameID:      g.ID,
			Smazzata:    g.Smazzata,
			Dealer:      g.Dealer,
			FirstPlayer: g.CurrentTurn,
			HandSizes:   sizes,
			DeckSize:    len(g.Deck),
		}}, nil
	})
}

func checkTurn(g *GameState, playerID string, phases ...Phase) (*PlayerState, error) {
	if g.Status != StatusPlaying {
		return nil, ErrNotPlaying.withf("the game is %s", g.Status)
	}
	if g.Smazzata == 0 {
		return nil, ErrRoundNotStarted
	}
	if g.CurrentTurn != playerID {
		return nil, ErrNotYourTurn
	}
	p := g.Player(playerID)
	if p == nil || p.Eliminated {
		return nil, ErrPlayerInactive
	}
	if !slices.Contains(phases, g.Phase) {
		return nil, ErrWrongPhase.withf("cannot do that in the %s phase", g.Phase)
	}
	return p, nil
}

// Draw takes one card. The discard pile is only open to players who have
// opened. An exhausted deck is rebuilt from the discard pile first.
func (e *Engine) Draw(ctx context.Context, gameID, playerID string, source DrawSource) (*Outcome, error) {
	return e.apply(ctx, gameID, "draw", func(g *GameState) ([]Event, error) {
		p, err := checkTurn(g, playerID, PhaseDraw)
		if err != nil {
			return nil, err
		}

		var card game.Card
		reshuffled := false
		switch source {
		case SourceDeck:
			if len(g.Deck) == 0 {
				deck, top, err := e.reshuffle(g.DiscardPile)
				if err != nil {
					return nil, ErrNoCardsToDraw
				}
				g.Deck, g.DiscardPile = deck, []game.Card{top}
				reshuffled = true
			}
			card, g.Deck, _ = game.DrawFromDeck(g.Deck)
			g.DrawnFromDiscard = nil
		case SourceDiscard:
			if !p.HasOpened {
				return nil, ErrMustOpenToTakeDiscard
			}
			if len(g.DiscardPile) == 0 {
				return nil, ErrEmptyDiscard
			}
			top := g.DiscardPile[len(g.DiscardPile)-1]
			if !slices.ContainsFunc(p.Hand, func(c game.Card) bool { return c != top }) {
				return nil, ErrDiscardPickedCard.withf("taking %s would leave nothing else to discard", top.Compact())
			}
			card, g.DiscardPile, _ = game.DrawFromDiscard(g.DiscardPile)
			taken := card
			g.DrawnFromDiscard = &taken
		default:
			return nil, ErrBadDrawSource.withf("unknown source %q", source)
		}

		p.Hand = append(p.Hand, card)
		if p.HasOpened {
			g.Phase = PhasePlay
		} else {
			g.Phase = PhaseDiscard
		}

		return []Event{CardDrawn{
			GameID:        g.ID,
			PlayerID:      playerID,
			Source:        source,
			Card:          card.Compact(),
			HandSize:      len(p.Hand),
			DeckRemaining: len(g.Deck),
			Reshuffled:    reshuffled,
		}}, nil
	})
}

// keepsDiscard reports whether hand still leaves a legal end to the turn. One
// card must stay for the discard, two while closing is not yet allowed, and
// the card just taken from the pile does not count.
func keepsDiscard(g *GameState, hand []game.Card) bool {
	reserve := 1
	if !g.FirstRoundComplete {
		reserve = 2
	}
	if len(hand) < reserve {
		return false
	}
	if g.DrawnFromDiscard == nil {
		return true
	}
	return slices.ContainsFunc(hand, func(c game.Card) bool { return c != *g.DrawnFromDiscard })
}

func newCombination(owner string, kind Kind, cards []game.Card) TableCombination {
	if kind == KindSequence {
		if slots, err := ladder(cards); err == nil {
			cards = slotCards(slots)
		}
	}
	return TableCombination{
		ID:    uuid.NewString()[:8],
		Owner: owner,
		Kind:  kind,
		Cards: slices.Clone(cards),
	}
}

// Open lays the first combinations of the smazzata. Together they must be
// worth at least OpeningThreshold, and the hand reserve must stay in hand.
func (e *Engine) Open(ctx context.Context, gameID, playerID string, groups [][]game.Card) (*Outcome, error) {
	return e.apply(ctx, gameID, "open", func(g *GameState) ([]Event, error) {
		p, err := checkTurn(g, playerID, PhasePlay, PhaseDiscard)
		if err != nil {
			return nil, err
		}
		if p.HasOpened {
			return nil, ErrAlreadyOpened
		}

		points, err := ValidateOpening(groups)
		if err != nil {
			return nil, err
		}
		hand, err := removeCards(p.Hand, slices.Concat(groups...))
		if err != nil {
			return nil, err
		}
		if !keepsDiscard(g, hand) {
			return nil, ErrMustKeepDiscard
		}

		ids := make([]string, 0, len(groups))
		for _, group := range groups {
			kind, _ := DetectKind(group)
			combo := newCombination(playerID, kind, group)
			g.Table = append(g.Table, combo)
			ids = append(ids, combo.ID)
		}
		p.Hand = hand
		p.HasOpened = true
		g.Phase = PhasePlay

		return []Event{Opened{
			GameID:         g.ID,
			PlayerID:       playerID,
			Points:         points,
			CombinationIDs: ids,
			CardsRemaining: len(hand),
		}}, nil
	})
}

// Play lays one more combination after opening.
func (e *Engine) Play(ctx context.Context, gameID, playerID string, cards []game.Card) (*Outcome, error) {
	return e.apply(ctx, gameID, "play", func(g *GameState) ([]Event, error) {
		p, err := checkTurn(g, playerID, PhasePlay)
		if err != nil {
			return nil, err
		}
		if !p.HasOpened {
			return nil, ErrMustOpenFirst
		}
		if g.PendingWild != nil && !slices.Contains(cards, *g.PendingWild) {
			return nil, ErrWildPending
		}

		kind, points, err := ValidateCombination(cards)
		if err != nil {
			return nil, err
		}
		hand, err := removeCards(p.Hand, cards)
		if err != nil {
			return nil, err
		}
		if !keepsDiscard(g, hand) {
			return nil, ErrMustKeepDiscard
		}

		combo := newCombination(playerID, kind, cards)
		g.Table = append(g.Table, combo)
		p.Hand = hand
		g.PendingWild = nil

		return []Event{Played{
			GameID:        g.ID,
			PlayerID:      playerID,
			Combination:   kind,
			CombinationID: combo.ID,
			Cards:         game.CompactAll(combo.Cards),
			Points:        points,
		}}, nil
	})
}

// Attach adds a single card from hand to any combination on the table.
func (e *Engine) Attach(ctx context.Context, gameID, playerID string, card game.Card, combinationID string) (*Outcome, error) {
	return e.apply(ctx, gameID, "attach", func(g *GameState) ([]Event, error) {
		p, err := checkTurn(g, playerID, PhasePlay)
		if err != nil {
			return nil, err
		}
		if !p.HasOpened {
			return nil, ErrMustOpenFirst
		}
		if g.PendingWild != nil && card != *g.PendingWild {
			return nil, ErrWildPending
		}

		i, combo := g.Combination(combinationID)
		if combo == nil {
			return nil, ErrNoSuchCombination.withf("no combination %q", combinationID)
		}
		hand, err := removeCards(p.Hand, []game.Card{card})
		if err != nil {
			return nil, err
		}
		cards, points, err := attach(card, *combo)
		if err != nil {
			return nil, err
		}
		if !keepsDiscard(g, hand) {
			return nil, ErrMustKeepDiscard
		}

		g.Table[i].Cards = cards
		p.Hand = hand
		g.PendingWild = nil

		return []Event{Attached{
			GameID:        g.ID,
			PlayerID:      playerID,
			Card:          card.Compact(),
			CombinationID: combinationID,
			Points:        points,
		}}, nil
	})
}

// SubstituteWild trades a natural card from hand for the wild in a table
// combination. The freed wild must be played or attached again before the
// player may discard.
func (e *Engine) SubstituteWild(ctx context.Context, gameID, playerID string, card game.Card, combinationID string) (*Outcome, error) {
	return e.apply(ctx, gameID, "substitute_wild", func(g *GameState) ([]Event, error) {
		p, err := checkTurn(g, playerID, PhasePlay)
		if err != nil {
			return nil, err
		}
		if !p.HasOpened {
			return nil, ErrMustOpenFirst
		}
		if g.PendingWild != nil {
			return nil, ErrWildPending
		}

		i, combo := g.Combination(combinationID)
		if combo == nil {
			return nil, ErrNoSuchCombination.withf("no combination %q", combinationID)
		}
		hand, err := removeCards(p.Hand, []game.Card{card})
		if err != nil {
			return nil, err
		}
		// The freed wild still has to leave the hand with a card to spare.
		if !keepsDiscard(g, hand) {
			return nil, ErrMustKeepDiscard
		}
		cards, wild, err := substitute(card, *combo)
		if err != nil {
			return nil, err
		}
		g.Table[i].Cards = cards

		placeable := false
		for _, c := range g.Table {
			if _, err := CanAttach(wild, c); err == nil {
				placeable = true
				break
			}
		}
		if !placeable {
			return nil, ErrNoWildTarget
		}

		p.Hand = append(hand, wild)
		g.PendingWild = &wild

		return []Event{WildSubstituted{
			GameID:        g.ID,
			PlayerID:      playerID,
			Card:          card.Compact(),
			Wild:          wild.Compact(),
			CombinationID: combinationID,
		}}, nil
	})
}

// Discard ends the turn. Discarding the last card closes the smazzata, which
// is only allowed once everyone has had a turn.
func (e *Engine) Discard(ctx context.Context, gameID, playerID string, card game.Card) (*Outcome, error) {
	return e.apply(ctx, gameID, "discard", func(g *GameState) ([]Event, error) {
		p, err := checkTurn(g, playerID, PhasePlay, PhaseDiscard)
		if err != nil {
			return nil, err
		}
		if g.PendingWild != nil {
			return nil, ErrWildPending
		}

		hand, err := removeCards(p.Hand, []game.Card{card})
		if err != nil {
			return nil, err
		}
		err = ValidateDiscard(card, DiscardContext{
			DrawnFromDiscard: g.DrawnFromDiscard,
			Table:            g.Table,
			HasOpened:        p.HasOpened,
			ActivePlayers:    len(g.ActivePlayers()),
			Rest:             hand,
		})
		if err != nil {
			return nil, err
		}
		closing := len(hand) == 0
		if closing && !p.HasOpened {
			return nil, ErrCloseWithoutOpening
		}
		if closing && !g.FirstRoundComplete {
			return nil, ErrCloseTooEarly
		}

		p.Hand = hand
		g.DiscardPile = append(g.DiscardPile, card)
		events := []Event{Discarded{
			GameID:   g.ID,
			PlayerID: playerID,
			Card:     card.Compact(),
			HandSize: len(hand),
		}}

		if closing {
			return append(events, closeSmazzata(g, playerID)...), nil
		}
		advanceTurn(g)
		return events, nil
	})
}

func advanceTurn(g *GameState) {
	g.CurrentTurn = g.nextActiveAfter(g.CurrentTurn)
	g.Phase = PhaseDraw
	g.RoundNumber++
	g.DrawnFromDiscard = nil
	if g.CurrentTurn == g.RoundStarter {
		g.FirstRoundComplete = true
	}
}

func closeSmazzata(g *GameState, closer string) []Event {
	round := ApplyRoundScores(g, closer)
	events := []Event{Closed{
		GameID:      g.ID,
		PlayerID:    closer,
		Smazzata:    g.Smazzata,
		RoundScores: round,
		Scores:      copyScores(g.Scores),
	}}

	for _, id := range CheckEliminations(g) {
		events = append(events, Eliminated{
			GameID:    g.ID,
			PlayerID:  id,
			Score:     g.Scores[id],
			Threshold: g.Settings.EliminationScore,
		})
	}

	g.DrawnFromDiscard = nil
	g.PendingWild = nil
	if winner, ok := CheckWinner(g); ok {
		g.Status = StatusFinished
		g.Winner = winner
		events = append(events, GameEnded{
			GameID:      g.ID,
			Winner:      winner,
			FinalScores: copyScores(g.Scores),
		})
	} else {
		g.Status = StatusRoundEnd
	}
	return events
}

func copyScores(scores map[string]int) map[string]int {
	out := make(map[string]int, len(scores))
	for id, s := range scores {
		out[id] = s
	}
	return out
}

// IsConflict reports whether err came from a concurrent write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
