package util

import "time"

// Clock abstracts wall-clock time so the book and tape can be driven
// through time in tests.
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// FakeClock is a manually advanced clock for tests.
type FakeClock struct {
	current time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

func (c *FakeClock) Now() time.Time { return c.current }

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.current.Add(d)
	return ch
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

// Set jumps the clock to an absolute instant.
func (c *FakeClock) Set(t time.Time) {
	c.current = t
}
