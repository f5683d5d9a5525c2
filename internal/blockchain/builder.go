package blockchain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/VeltarosLabs/blockforge/internal/clock"
	"github.com/VeltarosLabs/blockforge/internal/logging"
)

// Draft is an unmined block plus the hash of its header, shown to users before mining.
type Draft struct {
	Block       Block  `json:"block"`
	ContentHash string `json:"contentHash"`
}

// DraftFields are the user-visible draft values a mine starts from.
type DraftFields struct {
	Timestamp    *int64  `json:"timestamp,omitempty"`
	Merkle       *uint64 `json:"merkle,omitempty"`
	PrevHash     string  `json:"previousHash"`
	Transactions string  `json:"transactions"`
}

func (d Draft) Fields() DraftFields {
	ts := d.Block.Timestamp
	mr := d.Block.Merkle
	return DraftFields{
		Timestamp:    &ts,
		Merkle:       &mr,
		PrevHash:     d.Block.PrevHash,
		Transactions: d.Block.Transactions,
	}
}

type BuilderConfig struct {
	Counter *SequenceCounter
	Clock   clock.Clock
	Digest  PayloadDigest
	Miner   *Miner
	Log     *slog.Logger
}

// Builder owns the sequence counter and turns payloads into drafts and mined blocks.
type Builder struct {
	counter *SequenceCounter
	clock   clock.Clock
	digest  PayloadDigest
	miner   *Miner
	log     *slog.Logger
}

func NewBuilder(cfg BuilderConfig) *Builder {
	b := &Builder{
		counter: cfg.Counter,
		clock:   cfg.Clock,
		digest:  cfg.Digest,
		miner:   cfg.Miner,
		log:     logging.OrDiscard(cfg.Log).With("component", "builder"),
	}
	if b.counter == nil {
		b.counter = NewSequenceCounter(0)
	}
	if b.clock == nil {
		b.clock = clock.System{}
	}
	if b.digest == nil {
		b.digest = CharSumDigest{}
	}
	if b.miner == nil {
		b.miner = NewMiner(nil, 0, cfg.Log)
	}
	return b
}

func (b *Builder) Miner() *Miner { return b.miner }

func (b *Builder) Counter() *SequenceCounter { return b.counter }

// Draft builds the next unmined block on top of tip (nil for an empty chain).
func (b *Builder) Draft(tip *Block, txs string) (Draft, error) {
	prev := "0"
	if tip != nil {
		if !tip.IsMined() {
			return Draft{}, fmt.Errorf("tip %d is not mined: %w", tip.Sequence, ErrInvalidHash)
		}
		prev = tip.Hash
	}

	blk, err := NewBlock(BlockParams{
		Sequence:     b.counter.Current(),
		PrevHash:     prev,
		Transactions: txs,
		Clock:        b.clock,
		Digest:       b.digest,
	})
	if err != nil {
		return Draft{}, err
	}
	return Draft{Block: blk, ContentHash: blk.HashText("")}, nil
}

// Mine builds a block from f and mines it. The sequence counter advances only on success.
func (b *Builder) Mine(ctx context.Context, f DraftFields) (Block, error) {
	blk, err := NewBlock(BlockParams{
		Sequence:     b.counter.Current(),
		Timestamp:    f.Timestamp,
		Merkle:       f.Merkle,
		PrevHash:     f.PrevHash,
		Transactions: f.Transactions,
		Clock:        b.clock,
		Digest:       b.digest,
	})
	if err != nil {
		return Block{}, err
	}

	mined, _, err := b.miner.Mine(ctx, blk)
	if err != nil {
		return Block{}, err
	}
	b.counter.Advance()
	return mined, nil
}

// Produce runs the whole flow against chain: refuse if the chain does not validate,
// draft on the tip, mine, append.
func (b *Builder) Produce(ctx context.Context, chain *Chain, txs string) (Block, error) {
	if !chain.Validate() {
		return Block{}, ErrChainInvalid
	}

	var tip *Block
	if t, ok := chain.Tip(); ok {
		tip = &t
	}
	d, err := b.Draft(tip, txs)
	if err != nil {
		return Block{}, err
	}

	mined, err := b.Mine(ctx, d.Fields())
	if err != nil {
		return Block{}, err
	}
	if err := chain.Append(mined); err != nil {
		return Block{}, err
	}
	b.log.Info("block produced", "sequence", mined.Sequence, "nonce", mined.Nonce)
	return mined, nil
}
