package lobby

import (
	"errors"
	"strings"

	"scala40-server/internal/game"
)

// CodeAlphabet leaves out I, O, 0 and 1 so codes can be read aloud.
const (
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 6
)

func GenerateCode(usedCodes map[string]bool, rng game.Rand) string {
	for {
		code := make([]byte, CodeLength)
		for i := range code {
			code[i] = CodeAlphabet[rng.IntN(len(CodeAlphabet))]
		}
		if !usedCodes[string(code)] {
			return string(code)
		}
	}
}

func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return errors.New("INVALID_CODE: Lobby code must be exactly 6 characters")
	}
	for _, ch := range code {
		if !strings.ContainsRune(CodeAlphabet, ch) {
			return errors.New("INVALID_CODE: Lobby code contains an unexpected character")
		}
	}
	return nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
