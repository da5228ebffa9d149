package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps outbound actions.
//
// Every outbound action carries a strictly increasing seq, so a transport
// or trace can order one engine's emissions without wall-clock time.
//
// Clock is safe for concurrent use, though an engine only advances it from
// its single dispatch path.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start, e.g. when a checkpoint
// is restored.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// AdvanceTo moves the clock forward to seq. A clock already past seq is
// left unchanged.
func (c *Clock) AdvanceTo(seq int64) {
	for {
		cur := c.seq.Load()
		if cur >= seq || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
