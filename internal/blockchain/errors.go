package blockchain

import (
	"errors"

	vcrypto "github.com/VeltarosLabs/blockforge/internal/crypto"
)

var (
	// ErrMiningExhausted means no signed nonce was found within the attempt ceiling.
	// Retry with a fresh draft or an easier difficulty.
	ErrMiningExhausted = errors.New("mining exhausted")

	// ErrLinkageOrProofRejected is returned by Append for an unsigned block or one that does not extend the tip.
	ErrLinkageOrProofRejected = errors.New("block rejected: linkage or proof of work")

	ErrIndexOutOfRange = errors.New("index out of range")
	ErrAlreadyMined    = errors.New("block already mined")
	ErrChainInvalid    = errors.New("chain is not valid")

	ErrInvalidHash = vcrypto.ErrInvalidHash
)
