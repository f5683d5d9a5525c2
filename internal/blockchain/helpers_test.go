package blockchain

import (
	"testing"

	"github.com/VeltarosLabs/blockforge/internal/clock"
	"github.com/VeltarosLabs/blockforge/internal/consensus"
)

func mustPoW(t *testing.T, digit byte, length int) *consensus.PoW {
	t.Helper()
	p, err := consensus.NewPoW(digit, length)
	if err != nil {
		t.Fatalf("pow: %v", err)
	}
	return p
}

// easyPoW needs about 16 hashes per block.
func easyPoW(t *testing.T) *consensus.PoW {
	t.Helper()
	return mustPoW(t, '1', 1)
}

// impossiblePoW can never be satisfied within a small ceiling.
func impossiblePoW(t *testing.T) *consensus.PoW {
	t.Helper()
	return mustPoW(t, '1', 64)
}

func newTestBuilder(t *testing.T, engine consensus.Engine, maxAttempts uint64) *Builder {
	t.Helper()
	return NewBuilder(BuilderConfig{
		Clock: clock.NewSimulated(1_700_000_000_000, 1),
		Miner: NewMiner(engine, maxAttempts, nil),
	})
}
