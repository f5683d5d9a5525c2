package blockchain

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/VeltarosLabs/blockforge/internal/consensus"
	vcrypto "github.com/VeltarosLabs/blockforge/internal/crypto"
	"github.com/VeltarosLabs/blockforge/internal/logging"
)

const (
	DefaultMaxAttempts uint64 = 1_000_000

	// ctx is polled once per this many hashes.
	cancelCheckInterval = 1024
)

// Outcome is the result of a nonce search. Hash is empty unless the search succeeded.
type Outcome struct {
	Nonce    uint64 `json:"nonce"`
	Hash     string `json:"hash"`
	Attempts uint64 `json:"attempts"`
}

// Search hashes header+nonce for nonce = 0, 1, ... until the engine accepts a hash,
// maxAttempts is reached (ErrMiningExhausted) or ctx is done.
func Search(ctx context.Context, header string, engine consensus.Engine, maxAttempts uint64) (Outcome, error) {
	buf := make([]byte, 0, len(header)+20)
	buf = append(buf, header...)

	for nonce := uint64(0); nonce < maxAttempts; nonce++ {
		if nonce%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Outcome{Attempts: nonce}, err
			}
		}
		buf = strconv.AppendUint(buf[:len(header)], nonce, 10)
		h := vcrypto.Hex32(vcrypto.Sha256(buf))
		if engine.Signed(h) {
			return Outcome{Nonce: nonce, Hash: h, Attempts: nonce + 1}, nil
		}
	}
	return Outcome{Attempts: maxAttempts}, ErrMiningExhausted
}

type Miner struct {
	engine      consensus.Engine
	maxAttempts uint64
	log         *slog.Logger
}

func NewMiner(engine consensus.Engine, maxAttempts uint64, log *slog.Logger) *Miner {
	if engine == nil {
		engine = consensus.Default()
	}
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Miner{
		engine:      engine,
		maxAttempts: maxAttempts,
		log:         logging.OrDiscard(log).With("component", "miner"),
	}
}

func (m *Miner) Engine() consensus.Engine { return m.engine }

func (m *Miner) MaxAttempts() uint64 { return m.maxAttempts }

// Mine searches for a nonce for draft. draft is taken by value: on failure the
// caller's block is untouched and still a draft.
func (m *Miner) Mine(ctx context.Context, draft Block) (Block, Outcome, error) {
	if draft.IsMined() {
		return draft, Outcome{}, ErrAlreadyMined
	}

	out, err := Search(ctx, draft.Header(), m.engine, m.maxAttempts)
	if err != nil {
		m.log.Warn("mining stopped", "sequence", draft.Sequence, "attempts", out.Attempts, "err", err)
		return draft, out, err
	}

	draft.Nonce = out.Nonce
	draft.Hash = out.Hash
	m.log.Debug("block mined", "sequence", draft.Sequence, "nonce", out.Nonce, "attempts", out.Attempts, "hash", out.Hash)
	return draft, out, nil
}

// Job is a mine running on its own goroutine. It exclusively owns its copy of the draft.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}

	block   Block
	outcome Outcome
	err     error
}

func (m *Miner) Start(ctx context.Context, draft Block) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(j.done)
		defer cancel()
		j.block, j.outcome, j.err = m.Mine(ctx, draft)
	}()
	return j
}

func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel abandons the search. Wait still returns, with ctx's error.
func (j *Job) Cancel() { j.cancel() }

func (j *Job) Wait() (Block, Outcome, error) {
	<-j.done
	return j.block, j.outcome, j.err
}
