package utils

import (
	"sync"
	"time"
)

// Clock is the wall-clock source. Gateway requests are signed with Now().Unix().
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant until moved with Set or Advance.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// FirstOfNextMonth returns the first instant of the month after month/year
// in loc.
func FirstOfNextMonth(month, year int, loc *time.Location) time.Time {
	return time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, loc)
}
