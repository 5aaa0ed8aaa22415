// Package testutil holds deterministic stand-ins for the sources of
// nondeterminism in a run: the logical clock, run IDs and the store file.
package testutil

import "sync"

// DeterministicClock is a resettable logical clock.
//
// It satisfies engine.Sequencer. Unlike engine.Clock it can be reset, so a
// harness can share one clock across scenarios and still start every
// scenario at seq 1.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock at 0. The first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last issued sequence number.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset moves the clock back to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
