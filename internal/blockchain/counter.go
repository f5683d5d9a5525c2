package blockchain

import "sync/atomic"

// SequenceCounter hands out block sequence numbers. It only moves forward on Advance,
// which the builder calls after a successful mine, so failed attempts reuse the number.
type SequenceCounter struct {
	next atomic.Uint64
}

func NewSequenceCounter(start uint64) *SequenceCounter {
	c := &SequenceCounter{}
	c.next.Store(start)
	return c
}

func (c *SequenceCounter) Current() uint64 {
	return c.next.Load()
}

func (c *SequenceCounter) Advance() uint64 {
	return c.next.Add(1)
}
