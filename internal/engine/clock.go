package engine

import "sync/atomic"

// SeqClock hands out the logical sequence numbers stamped on evaluations.
// Implemented by Clock (production) and testutil.Clock (tests).
type SeqClock interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock for evaluation ordering.
//
// Every evaluation is stamped with a strictly increasing seq from this clock,
// so ordering never depends on wall time and replay reads records back in
// the order they were made.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to resume after the last seq already in the store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
