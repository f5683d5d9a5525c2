package consensus

import (
	"fmt"
	"strings"
)

const (
	DefaultDigit  byte = '1'
	DefaultLength      = 4
)

// PoW accepts a hash when it starts with Length copies of Digit.
// Difficulty is tuned by changing either; the rule itself never varies.
type PoW struct {
	digit  byte
	length int
	prefix string
}

func NewPoW(digit byte, length int) (*PoW, error) {
	if !isLowerHexDigit(digit) {
		return nil, fmt.Errorf("%w: digit %q is not a lowercase hex digit", ErrInvalidConsensus, digit)
	}
	if length <= 0 || length > 64 {
		return nil, fmt.Errorf("%w: prefix length out of range: %d", ErrInvalidConsensus, length)
	}
	return &PoW{
		digit:  digit,
		length: length,
		prefix: strings.Repeat(string(digit), length),
	}, nil
}

// Default is the four-'1' rule.
func Default() *PoW {
	p, _ := NewPoW(DefaultDigit, DefaultLength)
	return p
}

func (p *PoW) Signed(hash string) bool {
	return strings.HasPrefix(hash, p.prefix)
}

func (p *PoW) Prefix() string { return p.prefix }

func (p *PoW) Digit() byte { return p.digit }

func (p *PoW) Length() int { return p.length }

func (p *PoW) Describe() string {
	return fmt.Sprintf("pow(prefix=%s)", p.prefix)
}

func isLowerHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}
