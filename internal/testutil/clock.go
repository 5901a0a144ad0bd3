package testutil

import "sync"

// Clock is a deterministic seq clock for tests and scenario runs. It
// satisfies engine.SeqClock.
//
// Every run of a scenario starts from zero, so repeated runs stamp the same
// seqs and produce the same evaluation IDs. The clock also remembers each
// seq it issued: a query the model rejects is still stamped, an unknown
// machine is not, and tests can check which happened.
type Clock struct {
	mu     sync.Mutex
	seq    int64
	issued []int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next stamps one evaluation.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.issued = append(c.issued, c.seq)
	return c.seq
}

// Current returns the last seq issued, or 0.
func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Issued returns a copy of every seq handed out since the last Reset.
func (c *Clock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.issued...)
}

// Reset rewinds the clock so the next scenario run stamps the same seqs.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
	c.issued = nil
}
