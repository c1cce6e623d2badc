package playback

import (
	"sync"
	"time"
)

// Clock exposes the player's transport.
type Clock interface {
	Position() time.Duration
	Playing() bool
	Play()
	Pause()
	Seek(pos time.Duration)
}

// SimulatedClock advances with wall time while playing. A positive Duration
// stops the position at the end of the media.
type SimulatedClock struct {
	mu        sync.Mutex
	now       func() time.Time
	base      time.Duration
	startedAt time.Time
	playing   bool
	duration  time.Duration
}

// NewSimulatedClock returns a paused clock at position zero. now defaults to
// time.Now.
func NewSimulatedClock(duration time.Duration, now func() time.Time) *SimulatedClock {
	if now == nil {
		now = time.Now
	}
	return &SimulatedClock{now: now, duration: duration}
}

func (c *SimulatedClock) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *SimulatedClock) positionLocked() time.Duration {
	pos := c.base
	if c.playing {
		pos += c.now().Sub(c.startedAt)
	}
	if c.duration > 0 && pos > c.duration {
		pos = c.duration
	}
	return pos
}

func (c *SimulatedClock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing && c.duration > 0 && c.positionLocked() >= c.duration {
		return false
	}
	return c.playing
}

func (c *SimulatedClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.startedAt = c.now()
	c.playing = true
}

func (c *SimulatedClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.base = c.positionLocked()
	c.playing = false
}

func (c *SimulatedClock) Seek(pos time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	if c.duration > 0 && pos > c.duration {
		pos = c.duration
	}
	c.base = pos
	c.startedAt = c.now()
}

// Duration returns the media length, or zero when unknown.
func (c *SimulatedClock) Duration() time.Duration {
	return c.duration
}
