package game_test

import (
	"errors"
	"slices"
	"testing"

	"scala40-server/internal/game"
)

func countCards(cards []game.Card) map[game.Card]int {
	counts := make(map[game.Card]int)
	for _, c := range cards {
		counts[c]++
	}
	return counts
}

func TestBuildDeck(t *testing.T) {
	deck := game.NewDeck()

	if len(deck) != 108 {
		t.Errorf("Deck should be %d cards, %d given.", 108, len(deck))
	}
	if game.WildCount(deck) != 4 {
		t.Errorf("Deck should hold 4 wilds, %d given.", game.WildCount(deck))
	}

	for card, n := range countCards(deck) {
		want := 1
		if card.IsWild() {
			want = 2
		}
		if n != want {
			t.Errorf("%s appears %d times, %d expected", card.Compact(), n, want)
		}
	}
}

func TestShuffleIsDeterministic(t *testing.T) {
	deckA := game.Shuffle(game.NewDeck(), game.NewSeededRand(42))
	deckB := game.Shuffle(game.NewDeck(), game.NewSeededRand(42))
	deckC := game.Shuffle(game.NewDeck(), game.NewSeededRand(43))

	if !slices.Equal(deckA, deckB) {
		t.Error("Same seed should give the same order")
	}
	if slices.Equal(deckA, deckC) {
		t.Error("Different seeds should give different orders")
	}
	if slices.Equal(deckA, game.NewDeck()) {
		t.Error("Shuffling didn't work")
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	original := game.NewDeck()
	shuffled := game.Shuffle(original, game.NewSecureRand())

	if len(shuffled) != len(original) {
		t.Fatalf("Shuffle changed the size: %d", len(shuffled))
	}
	want := countCards(original)
	got := countCards(shuffled)
	for card, n := range want {
		if got[card] != n {
			t.Errorf("%s: %d after shuffle, %d before", card.Compact(), got[card], n)
		}
	}
	if !slices.Equal(original, game.NewDeck()) {
		t.Error("Shuffle mutated its input")
	}
}

func TestDeal(t *testing.T) {
	for players := game.MinPlayers; players <= game.MaxPlayers; players++ {
		deck := game.NewDeck()
		hands, remaining, first, err := game.Deal(deck, players, game.CardsPerHand)
		if err != nil {
			t.Fatal(err)
		}

		for i, hand := range hands {
			if len(hand) != 13 {
				t.Errorf("Player %d has %d cards in their hand, 13 expected", i, len(hand))
			}
		}
		if want := 108 - players*13 - 1; len(remaining) != want {
			t.Errorf("Have %d in deck, %d expected.", len(remaining), want)
		}
		// Round robin: the second card dealt goes to the second player.
		if hands[1][0] != deck[1] {
			t.Errorf("Deal is not round-robin")
		}
		if first != deck[players*13] {
			t.Errorf("First discard should follow the dealt cards")
		}
	}
}

func TestDealTooSmall(t *testing.T) {
	_, _, _, err := game.Deal(game.NewDeck()[:20], 2, 13)
	if !errors.Is(err, game.ErrNotEnoughToDeal) {
		t.Errorf("Expected ErrNotEnoughToDeal, got %v", err)
	}
}

func TestDraw(t *testing.T) {
	deck := game.NewDeck()
	card, rest, err := game.DrawFromDeck(deck)
	if err != nil {
		t.Fatal(err)
	}
	if card != deck[0] || len(rest) != 107 {
		t.Errorf("Expected to draw %s from the front, got %s", deck[0].Compact(), card.Compact())
	}

	if _, _, err := game.DrawFromDeck(nil); !errors.Is(err, game.ErrEmptyDeck) {
		t.Errorf("Expected ErrEmptyDeck, got %v", err)
	}
}

func TestDrawFromDiscard(t *testing.T) {
	pile := game.MustParseCards("3h0", "Kd1")
	card, rest, err := game.DrawFromDiscard(pile)
	if err != nil {
		t.Fatal(err)
	}
	if card.Compact() != "Kd1" || len(rest) != 1 {
		t.Errorf("Expected to take the top card, got %s", card.Compact())
	}

	if _, _, err := game.DrawFromDiscard(nil); !errors.Is(err, game.ErrEmptyPile) {
		t.Errorf("Expected ErrEmptyPile, got %v", err)
	}
}

func TestReshuffleDiscard(t *testing.T) {
	pile := game.MustParseCards("3h0", "4h0", "5h0", "6h0")
	deck, top, err := game.ReshuffleDiscard(pile, game.NewSeededRand(7))
	if err != nil {
		t.Fatal(err)
	}
	if top.Compact() != "6h0" {
		t.Errorf("Top discard should stay aside, got %s", top.Compact())
	}
	if len(deck) != 3 || slices.Contains(deck, top) {
		t.Errorf("New deck should hold the other three cards, got %v", deck)
	}

	if _, _, err := game.ReshuffleDiscard(pile[:1], game.NewSeededRand(7)); !errors.Is(err, game.ErrNotEnoughToShuffle) {
		t.Errorf("Expected ErrNotEnoughToShuffle, got %v", err)
	}
}
