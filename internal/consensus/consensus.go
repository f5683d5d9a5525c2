package consensus

import "errors"

// Engine decides whether a block hash carries enough work to be admitted.
type Engine interface {
	Signed(hash string) bool
	Describe() string
}

var ErrInvalidConsensus = errors.New("invalid consensus")
