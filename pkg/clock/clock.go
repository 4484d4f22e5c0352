package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in a fixed location
type System struct {
	loc *time.Location
}

// NewSystem returns a wall clock reporting times in loc; nil means time.Local
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.Local
	}
	return &System{loc: loc}
}

func (c *System) Now() time.Time {
	return time.Now().In(c.loc)
}

// FakeClock is a manually advanced clock for tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
