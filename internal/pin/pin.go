// Package pin holds the 6-digit PIN rules and the keypad state machine used
// to unlock the app and the Dark Side.
package pin

import (
	"errors"

	"life.tape/internal/crypto"
)

const Length = 6

var (
	ErrIncorrect = errors.New("Incorrect PIN")
	ErrMismatch  = errors.New("PINs do not match")
	ErrFormat    = errors.New("PIN must be 6 digits")
)

// Valid reports whether s is exactly six ASCII digits.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Verify reports whether attempt is the PIN behind the stored digest. An
// empty stored digest never verifies.
func Verify(stored, attempt string) bool {
	if stored == "" || !Valid(attempt) {
		return false
	}
	return crypto.CompareDigest(stored, attempt) == nil
}

// Digest hashes a valid PIN for storage.
func Digest(p string, cost int) (string, error) {
	if !Valid(p) {
		return "", ErrFormat
	}
	return crypto.Digest(p, cost)
}
