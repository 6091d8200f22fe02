package integration

import (
	"fmt"
	"sync"
	"time"
)

// TestIdentifier generates a unique lockout identifier using timestamp
func TestIdentifier(suffix string) string {
	return fmt.Sprintf("test-%d-%s@eishro.example", time.Now().UnixNano(), suffix)
}

// Clock is a settable time source shared by the repositories under test.
// Postgres keeps microseconds, so the start time is truncated to match.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now().UTC().Truncate(time.Microsecond)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
