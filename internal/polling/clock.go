package polling

import (
	"sync"
	"time"
)

// Clock is a playback clock: it starts at a chosen instant and advances
// speed times faster than the wall clock. A zero Clock follows the wall
// clock, which is what displaced real-time archives are built for.
type Clock struct {
	mu     sync.Mutex
	start  time.Time
	anchor time.Time
	speed  float64
	now    func() time.Time
}

// NewClock returns a clock reading start right now.
func NewClock(start time.Time, speed float64) *Clock {
	c := &Clock{now: time.Now}
	c.Reset(start, speed)
	return c
}

// Reset restarts the clock from start.
func (c *Clock) Reset(start time.Time, speed float64) {
	if speed <= 0 {
		speed = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now == nil {
		c.now = time.Now
	}
	c.start = start.UTC()
	c.anchor = c.now()
	c.speed = speed
}

func (c *Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now == nil {
		c.now = time.Now
	}
	if c.start.IsZero() {
		return c.now().UTC()
	}
	elapsed := c.now().Sub(c.anchor)
	return c.start.Add(time.Duration(float64(elapsed) * c.speed))
}

func (c *Clock) Speed() float64 {
	if c == nil {
		return 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speed == 0 {
		return 1
	}
	return c.speed
}
