package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// HashLen is the width of every hex-encoded hash handled by the chain.
const HashLen = 2 * sha256.Size

var ErrInvalidHash = errors.New("invalid hash")

func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func Hex32(h [32]byte) string {
	return hex.EncodeToString(h[:])
}

// HashHex returns the lowercase hex SHA-256 of text. The result is always HashLen characters.
func HashHex(text string) string {
	return Hex32(sha256.Sum256([]byte(text)))
}

// PadHash64 normalizes s into the fixed-width form: lowercase, left padded with '0' to HashLen.
// Longer or non-hex input is rejected.
func PadHash64(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		s = "0"
	}
	if len(s) > HashLen {
		return "", ErrInvalidHash
	}
	if !isHex(s) {
		return "", ErrInvalidHash
	}
	return strings.Repeat("0", HashLen-len(s)) + s, nil
}

// ZeroHash is the previous hash of the first block.
func ZeroHash() string {
	return strings.Repeat("0", HashLen)
}

func IsHash64(s string) bool {
	return len(s) == HashLen && isHex(s) && strings.ToLower(s) == s
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
