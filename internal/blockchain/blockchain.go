package blockchain

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/VeltarosLabs/blockforge/internal/consensus"
	vcrypto "github.com/VeltarosLabs/blockforge/internal/crypto"
	"github.com/VeltarosLabs/blockforge/internal/logging"
)

// Chain is an append-only sequence of mined blocks. Stored blocks are never mutated.
type Chain struct {
	mu sync.RWMutex

	blocks []Block
	engine consensus.Engine
	log    *slog.Logger
}

func New(engine consensus.Engine, log *slog.Logger) *Chain {
	if engine == nil {
		engine = consensus.Default()
	}
	return &Chain{
		engine: engine,
		log:    logging.OrDiscard(log).With("component", "chain"),
	}
}

func (c *Chain) Engine() consensus.Engine { return c.engine }

// Append admits b if it is signed and extends the current tip (any signed block may start an empty chain).
// On rejection the chain is unchanged and the error wraps ErrLinkageOrProofRejected.
func (c *Chain) Append(b Block) error {
	if !b.Signed(c.engine) {
		c.log.Warn("block rejected", "sequence", b.Sequence, "reason", "not signed", "hash", b.Hash)
		return fmt.Errorf("%w: block %d is not signed", ErrLinkageOrProofRejected, b.Sequence)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.blocks); n > 0 {
		tip := c.blocks[n-1]
		if !vcrypto.EqualHash(b.PrevHash, tip.Hash) {
			c.log.Warn("block rejected", "sequence", b.Sequence, "reason", "previous hash mismatch",
				"previousHash", b.PrevHash, "tip", tip.Hash)
			return fmt.Errorf("%w: previous hash does not match tip %s", ErrLinkageOrProofRejected, tip.Hash)
		}
	}

	c.blocks = append(c.blocks, b)
	c.log.Info("block appended", "sequence", b.Sequence, "height", len(c.blocks), "hash", b.Hash)
	return nil
}

func (c *Chain) Tip() (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return Block{}, false
	}
	return c.blocks[len(c.blocks)-1], true
}

func (c *Chain) Get(i int) (Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.blocks) {
		return Block{}, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(c.blocks))
	}
	return c.blocks[i], nil
}

func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Blocks returns a copy of the current sequence.
func (c *Chain) Blocks() []Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Snapshot returns an independent chain holding the blocks present at the time of the call.
func (c *Chain) Snapshot() *Chain {
	return &Chain{
		blocks: c.Blocks(),
		engine: c.engine,
		log:    c.log,
	}
}

// Validate reports whether every block after the first is signed and linked to its predecessor.
func (c *Chain) Validate() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := 1; i < len(c.blocks); i++ {
		prev, cur := c.blocks[i-1], c.blocks[i]
		if !cur.Signed(c.engine) || !vcrypto.EqualHash(cur.PrevHash, prev.Hash) {
			return false
		}
	}
	return true
}
