package crypto

import (
	"crypto/subtle"
)

func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// EqualHash compares two hex hashes. Both must be in the fixed-width form; an empty hash never matches.
func EqualHash(a, b string) bool {
	if len(a) != HashLen || len(b) != HashLen {
		return false
	}
	return ConstantTimeEqual([]byte(a), []byte(b))
}

func ConstantTimeEqualString(a, b string) bool {
	return ConstantTimeEqual([]byte(a), []byte(b))
}
