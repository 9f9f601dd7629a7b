package scala40

import (
	"slices"

	"scala40-server/internal/game"
)

// slot is one position of a resolved ladder. For a wild, rank is the rank it
// stands for.
type slot struct {
	rank game.Rank
	card game.Card
}

// ladder resolves cards into consecutive positions of one suit. Aces are
// tried low first, then high. A wild first fills an inner gap; otherwise it
// extends the run, downward when it was laid first and upward when not.
func ladder(cards []game.Card) ([]slot, error) {
	if len(cards) < MinSequenceLength {
		return nil, ErrSequenceTooShort
	}
	if len(cards) > MaxSequenceLength {
		return nil, ErrSequenceTooLong
	}

	var wild *game.Card
	wildFirst := false
	natural := make([]game.Card, 0, len(cards))
	for i, card := range cards {
		if !card.IsWild() {
			natural = append(natural, card)
			continue
		}
		if wild != nil {
			return nil, ErrTooManyWilds
		}
		wild = &cards[i]
		wildFirst = i == 0
	}
	if len(natural) == 0 {
		return nil, ErrAllWild
	}

	suit := natural[0].Suit
	seen := make(map[game.Rank]bool)
	hasAce := false
	for _, card := range natural {
		if card.Suit != suit {
			return nil, ErrMixedSuits
		}
		if seen[card.Rank] {
			return nil, ErrDuplicateRank.withf("%s appears twice", card.Rank)
		}
		seen[card.Rank] = true
		hasAce = hasAce || card.Rank == game.Ace
	}

	if slots, ok := resolveRun(natural, wild, wildFirst, false); ok {
		return slots, nil
	}
	if hasAce {
		if slots, ok := resolveRun(natural, wild, wildFirst, true); ok {
			return slots, nil
		}
	}
	return nil, ErrNotARun
}

func resolveRun(natural []game.Card, wild *game.Card, wildFirst, aceHigh bool) ([]slot, bool) {
	ordered := make([]slot, len(natural))
	for i, card := range natural {
		rank := card.Rank
		if aceHigh && rank == game.Ace {
			rank = game.AceHigh
		}
		ordered[i] = slot{rank: rank, card: card}
	}
	slices.SortFunc(ordered, func(a, b slot) int { return int(a.rank) - int(b.rank) })

	wildUsed := wild == nil
	slots := make([]slot, 0, len(natural)+1)
	slots = append(slots, ordered[0])
	for _, s := range ordered[1:] {
		gap := s.rank - slots[len(slots)-1].rank
		switch {
		case gap == 1:
		case gap == 2 && !wildUsed:
			slots = append(slots, slot{rank: s.rank - 1, card: *wild})
			wildUsed = true
		default:
			return nil, false
		}
		slots = append(slots, s)
	}

	if wildUsed {
		return slots, true
	}

	low, high := slots[0].rank, slots[len(slots)-1].rank
	canDown := low > game.Ace
	canUp := high < game.AceHigh
	switch {
	case wildFirst && canDown:
		return append([]slot{{rank: low - 1, card: *wild}}, slots...), true
	case canUp:
		return append(slots, slot{rank: high + 1, card: *wild}), true
	case canDown:
		return append([]slot{{rank: low - 1, card: *wild}}, slots...), true
	}
	return nil, false
}

func slotCards(slots []slot) []game.Card {
	cards := make([]game.Card, len(slots))
	for i, s := range slots {
		cards[i] = s.card
	}
	return cards
}

func wildSlot(slots []slot) (slot, bool) {
	for _, s := range slots {
		if s.card.IsWild() {
			return s, true
		}
	}
	return slot{}, false
}

// ValidateSequence checks a run and returns its point value. An ace counts 1
// low and 11 high; a wild counts the rank it stands for.
func ValidateSequence(cards []game.Card) (int, error) {
	slots, err := ladder(cards)
	if err != nil {
		return 0, err
	}
	points := 0
	for _, s := range slots {
		points += game.RankPoints(s.rank)
	}
	return points, nil
}

// ValidateSet checks three or four cards of one rank in distinct suits. A
// wild is worth the set's rank.
func ValidateSet(cards []game.Card) (int, error) {
	if len(cards) < MinSetSize || len(cards) > MaxSetSize {
		return 0, ErrSetSize
	}

	wilds := game.WildCount(cards)
	if wilds > MaxWildsPerCombination {
		return 0, ErrTooManyWilds
	}
	if len(cards)-wilds < 2 {
		return 0, ErrSetTooFewNatural
	}

	var rank game.Rank
	suits := make(map[game.Suit]bool)
	points := 0
	for _, card := range cards {
		if card.IsWild() {
			continue
		}
		if rank == game.RankWild {
			rank = card.Rank
		}
		if card.Rank != rank {
			return 0, ErrMixedRanks
		}
		if suits[card.Suit] {
			return 0, ErrRepeatedSuit.withf("%s appears twice", card.Suit)
		}
		suits[card.Suit] = true
		points += card.Value()
	}
	if wilds > 0 {
		points += game.Card{Rank: rank}.Value()
	}
	return points, nil
}

// ValidateCombination accepts either shape, a sequence taking precedence.
func ValidateCombination(cards []game.Card) (Kind, int, error) {
	points, seqErr := ValidateSequence(cards)
	if seqErr == nil {
		return KindSequence, points, nil
	}
	points, setErr := ValidateSet(cards)
	if setErr == nil {
		return KindSet, points, nil
	}
	return 0, 0, ErrInvalidCombination.withf("not a sequence (%s); not a set (%s)", message(seqErr), message(setErr))
}

// DetectKind reports which shape cards form, if any.
func DetectKind(cards []game.Card) (Kind, bool) {
	kind, _, err := ValidateCombination(cards)
	return kind, err == nil
}

func message(err error) string {
	if re, ok := err.(*RuleError); ok {
		return re.Message
	}
	return err.Error()
}

// ValidateOpening requires every group to be valid and the groups together
// to reach OpeningThreshold. The total is returned even when it falls short.
func ValidateOpening(groups [][]game.Card) (int, error) {
	if len(groups) == 0 {
		return 0, ErrEmptyOpening
	}
	total := 0
	for i, group := range groups {
		_, points, err := ValidateCombination(group)
		if err != nil {
			return total, ErrInvalidOpening.withf("group %d: %s", i+1, message(err))
		}
		total += points
	}
	if total < OpeningThreshold {
		return total, ErrOpeningTooLow.withf("%d points, %d required", total, OpeningThreshold)
	}
	return total, nil
}

type attachEnd int

const (
	attachFront attachEnd = iota
	attachBack
)

// placement works out where card would go on combo.
func placement(card game.Card, combo TableCombination) (attachEnd, int, error) {
	if combo.Kind == KindSet {
		points, err := attachToSet(card, combo.Cards)
		return attachBack, points, err
	}

	slots, err := ladder(combo.Cards)
	if err != nil {
		return 0, 0, ErrBrokenOnTable
	}
	if len(slots) >= MaxSequenceLength {
		return 0, 0, ErrSequenceFull
	}
	low, high := slots[0].rank, slots[len(slots)-1].rank

	if card.IsWild() {
		if combo.HasWild() {
			return 0, 0, ErrTooManyWilds
		}
		switch {
		case high < game.AceHigh:
			return attachBack, game.RankPoints(high + 1), nil
		case low > game.Ace:
			return attachFront, game.RankPoints(low - 1), nil
		}
		return 0, 0, ErrSequenceFull
	}

	if card.Suit != sequenceSuit(slots) {
		return 0, 0, ErrWrongSuit
	}
	switch {
	case card.Rank == game.Ace && low == game.Two:
		return attachFront, game.RankPoints(game.Ace), nil
	case card.Rank == game.Ace && high == game.King:
		return attachBack, game.RankPoints(game.AceHigh), nil
	case card.Rank != game.Ace && card.Rank == low-1:
		return attachFront, game.RankPoints(card.Rank), nil
	case card.Rank != game.Ace && card.Rank == high+1 && high < game.King:
		return attachBack, game.RankPoints(card.Rank), nil
	}
	return 0, 0, ErrDoesNotExtend
}

func sequenceSuit(slots []slot) game.Suit {
	for _, s := range slots {
		if !s.card.IsWild() {
			return s.card.Suit
		}
	}
	return game.Wild
}

func attachToSet(card game.Card, cards []game.Card) (int, error) {
	if len(cards) >= MaxSetSize {
		return 0, ErrSetFull
	}
	var rank game.Rank
	suits := make(map[game.Suit]bool)
	for _, c := range cards {
		if c.IsWild() {
			continue
		}
		rank = c.Rank
		suits[c.Suit] = true
	}
	if card.IsWild() {
		if game.WildCount(cards) >= MaxWildsPerCombination {
			return 0, ErrTooManyWilds
		}
		return game.Card{Rank: rank}.Value(), nil
	}
	if card.Rank != rank {
		return 0, ErrWrongRank
	}
	if suits[card.Suit] {
		return 0, ErrSuitTaken
	}
	return card.Value(), nil
}

// CanAttach reports whether card legally extends combo and what it adds.
func CanAttach(card game.Card, combo TableCombination) (int, error) {
	_, points, err := placement(card, combo)
	return points, err
}

// attach returns combo's cards with card added, kept in ladder order for
// sequences.
func attach(card game.Card, combo TableCombination) ([]game.Card, int, error) {
	end, points, err := placement(card, combo)
	if err != nil {
		return nil, 0, err
	}
	cards := make([]game.Card, 0, len(combo.Cards)+1)
	if end == attachFront {
		cards = append(cards, card)
		cards = append(cards, combo.Cards...)
	} else {
		cards = append(cards, combo.Cards...)
		cards = append(cards, card)
	}
	if combo.Kind == KindSequence {
		slots, err := ladder(cards)
		if err != nil {
			return nil, 0, ErrDoesNotExtend
		}
		cards = slotCards(slots)
	} else if _, err := ValidateSet(cards); err != nil {
		return nil, 0, err
	}
	return cards, points, nil
}

// CanSubstituteWild reports whether card may take the place of the wild in
// combo. In a set any missing suit of the rank fits; in a sequence only the
// exact card the wild stands for.
func CanSubstituteWild(card game.Card, combo TableCombination) error {
	if !combo.HasWild() {
		return ErrNoWildToTake
	}
	if card.IsWild() {
		return ErrWildForWild
	}

	if combo.Kind == KindSet {
		for _, c := range combo.Cards {
			if c.IsWild() {
				continue
			}
			if c.Rank != card.Rank {
				return ErrWrongRank
			}
			if c.Suit == card.Suit {
				return ErrSuitTaken
			}
		}
		return nil
	}

	slots, err := ladder(combo.Cards)
	if err != nil {
		return ErrBrokenOnTable
	}
	ws, _ := wildSlot(slots)
	want := ws.rank
	if want == game.AceHigh {
		want = game.Ace
	}
	if card.Suit != sequenceSuit(slots) || card.Rank != want {
		return ErrWrongWildPosition.withf("the wild stands for %s of %s", want, sequenceSuit(slots))
	}
	return nil
}

// substitute swaps card in for the wild and returns the new cards and the
// freed wild.
func substitute(card game.Card, combo TableCombination) ([]game.Card, game.Card, error) {
	if err := CanSubstituteWild(card, combo); err != nil {
		return nil, game.Card{}, err
	}
	cards := slices.Clone(combo.Cards)
	i := slices.IndexFunc(cards, game.Card.IsWild)
	freed := cards[i]
	cards[i] = card
	if combo.Kind == KindSequence {
		slots, err := ladder(cards)
		if err != nil {
			return nil, game.Card{}, ErrWrongWildPosition
		}
		cards = slotCards(slots)
	}
	return cards, freed, nil
}

// DiscardContext is what ValidateDiscard needs to know about the turn.
type DiscardContext struct {
	DrawnFromDiscard *game.Card
	Table            []TableCombination
	HasOpened        bool
	ActivePlayers    int
	Rest             []game.Card // the hand left after the discard
}

func (turn DiscardContext) attaches(card game.Card) (string, bool) {
	for _, combo := range turn.Table {
		if _, err := CanAttach(card, combo); err == nil {
			return combo.ID, true
		}
	}
	return "", false
}

// ValidateDiscard enforces the two discard restrictions. A card just taken
// from the discard pile can never go straight back. With more than two
// players, an opened player may not throw a card that attaches to the table
// while another card could be thrown instead. The last card is always free.
func ValidateDiscard(card game.Card, turn DiscardContext) error {
	if turn.DrawnFromDiscard != nil && *turn.DrawnFromDiscard == card {
		return ErrDiscardPickedCard
	}
	if turn.ActivePlayers <= 2 || !turn.HasOpened || len(turn.Rest) == 0 {
		return nil
	}
	id, ok := turn.attaches(card)
	if !ok {
		return nil
	}
	for _, other := range turn.Rest {
		if turn.DrawnFromDiscard != nil && *turn.DrawnFromDiscard == other {
			continue
		}
		if _, attachable := turn.attaches(other); !attachable {
			return ErrDiscardAttachable.withf("%s attaches to combination %s", card.Compact(), id)
		}
	}
	return nil
}
