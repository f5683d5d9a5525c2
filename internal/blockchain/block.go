package blockchain

import (
	"fmt"
	"strconv"

	"github.com/VeltarosLabs/blockforge/internal/clock"
	"github.com/VeltarosLabs/blockforge/internal/consensus"
	vcrypto "github.com/VeltarosLabs/blockforge/internal/crypto"
)

// Block is a draft until Hash is set by a successful mine.
type Block struct {
	Sequence     uint64 `json:"sequenceNumber"`
	Timestamp    int64  `json:"timestamp"`
	Merkle       uint64 `json:"merkle"`
	PrevHash     string `json:"previousHash"`
	Transactions string `json:"transactions"`
	Nonce        uint64 `json:"nonce"`
	Hash         string `json:"hash"`
}

// BlockParams carries draft fields. Nil Timestamp and Merkle are derived from Clock and Digest.
type BlockParams struct {
	Sequence     uint64
	Timestamp    *int64
	Merkle       *uint64
	PrevHash     string
	Transactions string

	Clock  clock.Clock
	Digest PayloadDigest
}

func NewBlock(p BlockParams) (Block, error) {
	prev, err := vcrypto.PadHash64(p.PrevHash)
	if err != nil {
		return Block{}, fmt.Errorf("previous hash %q: %w", p.PrevHash, err)
	}

	var ts int64
	if p.Timestamp != nil {
		ts = *p.Timestamp
	} else {
		c := p.Clock
		if c == nil {
			c = clock.System{}
		}
		ts = c.NowMillis()
	}

	var merkle uint64
	if p.Merkle != nil {
		merkle = *p.Merkle
	} else {
		d := p.Digest
		if d == nil {
			d = CharSumDigest{}
		}
		merkle = d.Digest(p.Transactions)
	}

	return Block{
		Sequence:     p.Sequence,
		Timestamp:    ts,
		Merkle:       merkle,
		PrevHash:     prev,
		Transactions: p.Transactions,
	}, nil
}

// Header is sequence, timestamp, merkle and previous hash concatenated without separators.
func (b Block) Header() string {
	buf := make([]byte, 0, 20+20+20+vcrypto.HashLen)
	buf = strconv.AppendUint(buf, b.Sequence, 10)
	buf = strconv.AppendInt(buf, b.Timestamp, 10)
	buf = strconv.AppendUint(buf, b.Merkle, 10)
	buf = append(buf, b.PrevHash...)
	return string(buf)
}

// HashText hashes text, or the header when text is empty.
func (b Block) HashText(text string) string {
	if text == "" {
		text = b.Header()
	}
	return vcrypto.HashHex(text)
}

// ComputeHash recomputes the proof-of-work hash from the header and the stored nonce.
func (b Block) ComputeHash() string {
	return vcrypto.HashHex(b.Header() + strconv.FormatUint(b.Nonce, 10))
}

func (b Block) IsMined() bool {
	return b.Hash != ""
}

// Signed reports whether the stored hash satisfies the engine's predicate.
func (b Block) Signed(engine consensus.Engine) bool {
	return b.IsMined() && engine.Signed(b.Hash)
}

// Reset returns the block in draft form so it can be mined again.
func (b Block) Reset() Block {
	b.Nonce = 0
	b.Hash = ""
	return b
}

func (b Block) String() string {
	hash := b.Hash
	if hash == "" {
		hash = "(not mined)"
	}
	return fmt.Sprintf("Block #%d\nTimestamp: %d\nMerkle Root: %d\nPrevious Hash: %s\nNonce: %d\nHash: %s\nTransactions:\n%s",
		b.Sequence, b.Timestamp, b.Merkle, b.PrevHash, b.Nonce, hash, b.Transactions)
}
