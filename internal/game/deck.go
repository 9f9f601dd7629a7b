package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"math/rand/v2"
)

var (
	ErrEmptyDeck          = errors.New("EMPTY_DECK: No cards left in the deck")
	ErrEmptyPile          = errors.New("EMPTY_PILE: The discard pile is empty")
	ErrNotEnoughToShuffle = errors.New("NOT_ENOUGH_CARDS: Need at least two discards to rebuild the deck")
	ErrNotEnoughToDeal    = errors.New("NOT_ENOUGH_CARDS: Deck too small to deal")
)

// Rand is the only randomness the deck needs. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// NewSeededRand is deterministic for a given seed; use it for tests and replay.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewSecureRand draws from the operating system CSPRNG.
func NewSecureRand() *rand.Rand {
	return rand.New(cryptoSource{})
}

type cryptoSource struct{}

func (cryptoSource) Uint64() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint64(b[:])
}

// NewDeck builds the 108 card shoe: two 52 card decks tagged by deck index,
// each with two wilds.
func NewDeck() []Card {
	deck := make([]Card, 0, TotalCards)
	for d := range DecksInShoe {
		for _, suit := range Suits {
			for rank := Ace; rank <= King; rank++ {
				deck = append(deck, Card{Suit: suit, Rank: rank, Deck: d})
			}
		}
		for range WildsPerDeck {
			deck = append(deck, NewWild(d))
		}
	}
	return deck
}

// Shuffle returns a Fisher-Yates permutation of cards; the input is untouched.
func Shuffle(cards []Card, rng Rand) []Card {
	shuffled := make([]Card, len(cards))
	copy(shuffled, cards)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// Deal hands out perPlayer cards one at a time in seat order, then turns the
// next card up as the first discard.
func Deal(deck []Card, players, perPlayer int) (hands [][]Card, remaining []Card, firstDiscard Card, err error) {
	if players*perPlayer+1 > len(deck) {
		return nil, nil, Card{}, ErrNotEnoughToDeal
	}

	hands = make([][]Card, players)
	for p := range hands {
		hands[p] = make([]Card, 0, perPlayer)
	}

	next := 0
	for range perPlayer {
		for p := range players {
			hands[p] = append(hands[p], deck[next])
			next++
		}
	}
	firstDiscard = deck[next]
	next++

	remaining = make([]Card, len(deck)-next)
	copy(remaining, deck[next:])
	return hands, remaining, firstDiscard, nil
}

// DrawFromDeck takes the front card.
func DrawFromDeck(deck []Card) (Card, []Card, error) {
	if len(deck) == 0 {
		return Card{}, deck, ErrEmptyDeck
	}
	return deck[0], deck[1:], nil
}

// DrawFromDiscard takes the top (last) card.
func DrawFromDiscard(pile []Card) (Card, []Card, error) {
	if len(pile) == 0 {
		return Card{}, pile, ErrEmptyPile
	}
	return pile[len(pile)-1], pile[:len(pile)-1], nil
}

// ReshuffleDiscard keeps the top discard aside and shuffles the rest into a
// new deck.
func ReshuffleDiscard(pile []Card, rng Rand) (deck []Card, top Card, err error) {
	if len(pile) < 2 {
		return nil, Card{}, ErrNotEnoughToShuffle
	}
	top = pile[len(pile)-1]
	return Shuffle(pile[:len(pile)-1], rng), top, nil
}
