package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
	Wild
)

var suitString = map[Suit]string{
	Hearts:   "Hearts",
	Diamonds: "Diamonds",
	Clubs:    "Clubs",
	Spades:   "Spades",
	Wild:     "Wild",
}

// Compact letters used by the interchange encoding.
var suitCode = map[Suit]string{
	Hearts:   "h",
	Diamonds: "d",
	Clubs:    "c",
	Spades:   "s",
	Wild:     "j",
}

var suitSymbol = map[Suit]string{
	Hearts:   "♥",
	Diamonds: "♦",
	Clubs:    "♣",
	Spades:   "♠",
	Wild:     "🃏",
}

// Suits lists the four ranked suits in deck-building order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

func (s Suit) String() string {
	return suitString[s]
}

func (s Suit) MarshalText() ([]byte, error) {
	code, ok := suitCode[s]
	if !ok {
		return nil, fmt.Errorf("unknown suit %d", int(s))
	}
	return []byte(code), nil
}

func (s *Suit) UnmarshalText(text []byte) error {
	suit, err := parseSuit(string(text))
	if err != nil {
		return err
	}
	*s = suit
	return nil
}

func parseSuit(code string) (Suit, error) {
	for suit, c := range suitCode {
		if c == code {
			return suit, nil
		}
	}
	return 0, fmt.Errorf("unknown suit %q", code)
}

type Rank int

const (
	RankWild Rank = iota
	Ace
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// AceHigh is the ladder position of an ace played after a King. It is never
// stored on a Card.
const AceHigh Rank = 14

var rankString = map[Rank]string{
	RankWild: "Wild",
	Ace:      "A",
	Two:      "2",
	Three:    "3",
	Four:     "4",
	Five:     "5",
	Six:      "6",
	Seven:    "7",
	Eight:    "8",
	Nine:     "9",
	Ten:      "10",
	Jack:     "J",
	Queen:    "Q",
	King:     "K",
}

func (r Rank) String() string {
	if r == AceHigh {
		return rankString[Ace]
	}
	return rankString[r]
}

const (
	WildPoints    = 25
	AcePointsHigh = 11
	AcePointsLow  = 1
	FacePoints    = 10
)

const (
	DecksInShoe   = 2
	WildsPerDeck  = 2
	TotalCards    = 52*DecksInShoe + WildsPerDeck*DecksInShoe
	TotalWilds    = WildsPerDeck * DecksInShoe
	CardsPerHand  = 13
	MinPlayers    = 2
	MaxPlayers    = 4
	LowestRank    = Ace
	HighestRank   = King
	firstDeckCode = '0'
)

// Card is a value type. Two wilds from the same source deck compare equal.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
	Deck int  `json:"deck"`
}

func NewWild(deck int) Card {
	return Card{Suit: Wild, Rank: RankWild, Deck: deck}
}

func (c Card) IsWild() bool {
	return c.Suit == Wild
}

// Value is the penalty value of the card left in a hand. Aces count high.
func (c Card) Value() int {
	switch {
	case c.IsWild():
		return WildPoints
	case c.Rank == Ace:
		return AcePointsHigh
	case c.Rank >= Jack:
		return FacePoints
	default:
		return int(c.Rank)
	}
}

// RankPoints is the value a card standing at ladder position r contributes to
// a combination.
func RankPoints(r Rank) int {
	switch {
	case r == Ace:
		return AcePointsLow
	case r == AceHigh:
		return AcePointsHigh
	case r >= Jack:
		return FacePoints
	default:
		return int(r)
	}
}

func (c Card) Compact() string {
	if c.IsWild() {
		return fmt.Sprintf("J%d", c.Deck)
	}
	return fmt.Sprintf("%s%s%d", c.Rank, suitCode[c.Suit], c.Deck)
}

func (c Card) Display() string {
	if c.IsWild() {
		return suitSymbol[Wild]
	}
	return c.Rank.String() + suitSymbol[c.Suit]
}

func (c Card) String() string {
	if c.IsWild() {
		return "Wild"
	}
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}

var ErrBadCardCode = errors.New("INVALID_CARD: unrecognised card code")

// ParseCard decodes the compact form: "8h0", "10c1", "Ks" (deck 0), "J1".
func ParseCard(code string) (Card, error) {
	code = strings.TrimSpace(code)
	if len(code) == 2 && code[0] == 'J' && isDigit(code[1]) {
		deck := int(code[1] - firstDeckCode)
		if deck >= DecksInShoe {
			return Card{}, fmt.Errorf("%w: deck index %d", ErrBadCardCode, deck)
		}
		return NewWild(deck), nil
	}

	deck := 0
	rest := code
	if len(rest) >= 3 && isDigit(rest[len(rest)-1]) && !isDigit(rest[len(rest)-2]) {
		deck = int(rest[len(rest)-1] - firstDeckCode)
		rest = rest[:len(rest)-1]
	}
	if len(rest) < 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrBadCardCode, code)
	}

	suit, err := parseSuit(rest[len(rest)-1:])
	if err != nil || suit == Wild {
		return Card{}, fmt.Errorf("%w: %q", ErrBadCardCode, code)
	}

	rank, err := parseRank(rest[:len(rest)-1])
	if err != nil {
		return Card{}, fmt.Errorf("%w: %q", ErrBadCardCode, code)
	}

	if deck >= DecksInShoe {
		return Card{}, fmt.Errorf("%w: deck index %d", ErrBadCardCode, deck)
	}

	return Card{Suit: suit, Rank: rank, Deck: deck}, nil
}

// MustParseCards is for fixtures; it panics on a bad code.
func MustParseCards(codes ...string) []Card {
	cards := make([]Card, 0, len(codes))
	for _, code := range codes {
		card, err := ParseCard(code)
		if err != nil {
			panic(err)
		}
		cards = append(cards, card)
	}
	return cards
}

func parseRank(s string) (Rank, error) {
	switch s {
	case "A":
		return Ace, nil
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 2 || n > 10 {
		return 0, fmt.Errorf("unknown rank %q", s)
	}
	return Rank(n), nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func WildCount(cards []Card) (count int) {
	for _, card := range cards {
		if card.IsWild() {
			count++
		}
	}
	return
}

// HandValue sums the penalty value of every card.
func HandValue(cards []Card) (total int) {
	for _, card := range cards {
		total += card.Value()
	}
	return
}

func CompactAll(cards []Card) []string {
	codes := make([]string, len(cards))
	for i, card := range cards {
		codes[i] = card.Compact()
	}
	return codes
}
