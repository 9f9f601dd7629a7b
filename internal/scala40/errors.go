package scala40

import (
	"errors"
	"fmt"
)

// RuleError is a rejected action. The stored game is never modified when one
// is returned. errors.Is matches on Code, so callers compare against the
// exported sentinels below.
type RuleError struct {
	Code    string
	Message string
}

func (e *RuleError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *RuleError) Is(target error) bool {
	t, ok := target.(*RuleError)
	return ok && t.Code == e.Code
}

func (e *RuleError) withf(format string, args ...any) *RuleError {
	return &RuleError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

func rule(code, message string) *RuleError {
	return &RuleError{Code: code, Message: message}
}

// IsRuleError separates rule rejections from infrastructure failures.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// Preconditions.
var (
	ErrGameNotFound      = rule("GAME_NOT_FOUND", "Game not found")
	ErrNotPlaying        = rule("GAME_NOT_PLAYING", "The game is not in progress")
	ErrRoundNotStarted   = rule("ROUND_NOT_STARTED", "No round has been dealt yet")
	ErrRoundInProgress   = rule("ROUND_IN_PROGRESS", "A round is already being played")
	ErrGameFinished      = rule("GAME_FINISHED", "The game is over")
	ErrNotYourTurn       = rule("NOT_YOUR_TURN", "It is not your turn")
	ErrPlayerInactive    = rule("PLAYER_INACTIVE", "You are not an active player")
	ErrWrongPhase        = rule("WRONG_PHASE", "Action not allowed in this phase")
	ErrBadRoster         = rule("INVALID_ROSTER", "A game needs 2 to 4 distinct players")
	ErrNotEnoughPlayers  = rule("NOT_ENOUGH_PLAYERS", "At least two active players are required")
	ErrBadDrawSource     = rule("INVALID_SOURCE", "Draw from the deck or the discard pile")
	ErrCardNotInHand     = rule("CARD_NOT_IN_HAND", "Card not in hand")
	ErrNoSuchCombination = rule("COMBINATION_NOT_FOUND", "No such combination on the table")
)

// Combination shape.
var (
	ErrSequenceTooShort   = rule("INVALID_SEQUENCE", "A sequence needs at least 3 cards")
	ErrSequenceTooLong    = rule("INVALID_SEQUENCE", "A sequence cannot exceed 14 cards")
	ErrMixedSuits         = rule("INVALID_SEQUENCE", "All cards in a sequence must share a suit")
	ErrDuplicateRank      = rule("INVALID_SEQUENCE", "Duplicate rank in sequence")
	ErrNotARun            = rule("INVALID_SEQUENCE", "The cards do not form a run")
	ErrSetSize            = rule("INVALID_SET", "A set needs 3 or 4 cards")
	ErrSetTooFewNatural   = rule("INVALID_SET", "A set needs at least 2 natural cards")
	ErrMixedRanks         = rule("INVALID_SET", "All cards in a set must share a rank")
	ErrRepeatedSuit       = rule("INVALID_SET", "All cards in a set must have different suits")
	ErrTooManyWilds       = rule("TOO_MANY_WILDS", "At most one wild per combination")
	ErrAllWild            = rule("TOO_MANY_WILDS", "A combination cannot be only wilds")
	ErrInvalidCombination = rule("INVALID_COMBINATION", "Not a valid sequence or set")
)

// Opening and playing.
var (
	ErrEmptyOpening    = rule("INVALID_OPENING", "Nothing to open with")
	ErrInvalidOpening  = rule("INVALID_OPENING", "Opening contains an invalid combination")
	ErrOpeningTooLow   = rule("OPENING_TOO_LOW", "Opening is below the threshold")
	ErrAlreadyOpened   = rule("ALREADY_OPENED", "You have already opened")
	ErrMustOpenFirst   = rule("MUST_OPEN_FIRST", "You must open before playing")
	ErrMustKeepDiscard = rule("MUST_KEEP_DISCARD", "Keep at least one card to discard")
)

// Attaching and substituting.
var (
	ErrWrongSuit     = rule("CANNOT_ATTACH", "Card suit does not match the sequence")
	ErrWrongRank     = rule("CANNOT_ATTACH", "Card rank does not match the set")
	ErrSuitTaken     = rule("CANNOT_ATTACH", "Suit already present in the set")
	ErrSetFull       = rule("CANNOT_ATTACH", "The set already has 4 cards")
	ErrSequenceFull  = rule("CANNOT_ATTACH", "The sequence is complete")
	ErrDoesNotExtend = rule("CANNOT_ATTACH", "Card does not extend the sequence")
	ErrBrokenOnTable = rule("CANNOT_ATTACH", "The table combination is not valid")

	ErrNoWildToTake      = rule("CANNOT_SUBSTITUTE", "No wild in this combination")
	ErrWildForWild       = rule("CANNOT_SUBSTITUTE", "A wild cannot replace a wild")
	ErrWrongWildPosition = rule("CANNOT_SUBSTITUTE", "Card does not match what the wild stands for")
	ErrNoWildTarget      = rule("CANNOT_SUBSTITUTE", "The freed wild could not be placed anywhere")
	ErrWildPending       = rule("WILD_PENDING", "Use the freed wild before anything else")
)

// Drawing, discarding and closing.
var (
	ErrMustOpenToTakeDiscard = rule("MUST_OPEN_FIRST", "Open before taking from the discard pile")
	ErrEmptyDiscard          = rule("EMPTY_PILE", "The discard pile is empty")
	ErrNoCardsToDraw         = rule("NO_CARDS_TO_DRAW", "Deck exhausted and discard pile too small to reshuffle")
	ErrDiscardPickedCard     = rule("DISCARD_PICKED_CARD", "Cannot discard the card just taken from the discard pile")
	ErrDiscardAttachable     = rule("DISCARD_ATTACHABLE", "Cannot discard a card that attaches to the table")
	ErrCloseWithoutOpening   = rule("CLOSE_NOT_OPENED", "Cannot close without having opened")
	ErrCloseTooEarly         = rule("CLOSE_TOO_EARLY", "Cannot close during the first round")
)

// ErrVersionConflict is returned by stores when the stored version moved on.
// The whole action must be retried from a fresh read.
var ErrVersionConflict = errors.New("VERSION_CONFLICT: game was modified concurrently")
