package util

import (
	"sync"
	"time"
)

type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// ManualClock is a deterministic clock for tests. Now() advances by Step
// on every call so consecutive timestamps are strictly ordered.
type ManualClock struct {
	mu   sync.Mutex
	t    time.Time
	Step time.Duration
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{t: start, Step: time.Millisecond}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.Step)
	return c.t
}

func (c *ManualClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	c.t = c.t.Add(d)
	ch <- c.t
	c.mu.Unlock()
	return ch
}
