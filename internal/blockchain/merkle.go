package blockchain

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"

	vcrypto "github.com/VeltarosLabs/blockforge/internal/crypto"
)

// PayloadDigest reduces a transaction payload to the integer stored in the block header.
type PayloadDigest interface {
	Digest(text string) uint64
}

// CharSumDigest sums the UTF-16 code units of the payload.
type CharSumDigest struct{}

func (CharSumDigest) Digest(text string) uint64 {
	var sum uint64
	for _, u := range utf16.Encode([]rune(text)) {
		sum += uint64(u)
	}
	return sum
}

// MerkleDigest builds a merkle tree over the payload lines and keeps the first 8 bytes of the root.
// Rules:
// - Leaves are sha256(line), blank lines skipped
// - If odd number of nodes at any level, duplicate the last
// - Parent = sha256(left || right)
type MerkleDigest struct{}

func (MerkleDigest) Digest(text string) uint64 {
	root := MerkleRoot(text)
	return binary.BigEndian.Uint64(root[:8])
}

// MerkleRoot returns the zero root for a payload with no lines.
func MerkleRoot(text string) [32]byte {
	var nodes [][32]byte
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		nodes = append(nodes, vcrypto.Sha256([]byte(line)))
	}
	if len(nodes) == 0 {
		return [32]byte{}
	}

	for len(nodes) > 1 {
		if len(nodes)%2 == 1 {
			nodes = append(nodes, nodes[len(nodes)-1])
		}

		next := make([][32]byte, 0, len(nodes)/2)
		for i := 0; i < len(nodes); i += 2 {
			concat := make([]byte, 0, 64)
			concat = append(concat, nodes[i][:]...)
			concat = append(concat, nodes[i+1][:]...)
			next = append(next, vcrypto.Sha256(concat))
		}
		nodes = next
	}
	return nodes[0]
}

// DigestByName maps a configuration name to an implementation.
func DigestByName(name string) (PayloadDigest, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "charsum":
		return CharSumDigest{}, true
	case "merkle":
		return MerkleDigest{}, true
	case "blake3":
		return Blake3Digest{}, true
	default:
		return nil, false
	}
}
