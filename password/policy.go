package password

import (
	"errors"
	"unicode"
)

const minPassBytes = 10

// ErrPolicy is an exported constant or variable used by the identity engine.
var ErrPolicy = errors.New("password must be at least 10 bytes and contain a letter and a digit")

// CheckPolicy enforces the minimum-entropy registration policy: at least 10
// raw bytes, with at least one letter and one digit. Byte length is used
// rather than rune count so the bound matches what the hash consumes.
func CheckPolicy(password string) error {
	if len(password) < minPassBytes {
		return ErrPolicy
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrPolicy
	}

	return nil
}
