package clock

import (
	"sync"
	"time"
)

// Clock supplies block timestamps in unix milliseconds.
type Clock interface {
	NowMillis() int64
}

type System struct{}

func (System) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Simulated advances by step on every read. Used for reproducible drafts.
type Simulated struct {
	mu   sync.Mutex
	now  int64
	step int64
}

func NewSimulated(start int64, step int64) *Simulated {
	return &Simulated{now: start, step: step}
}

func (c *Simulated) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}
