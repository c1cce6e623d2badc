package playback

import "time"

// BufferingDetector flags a stalled player: the position has not moved for
// Threshold consecutive checks while the clock claims to be playing.
type BufferingDetector struct {
	Threshold int

	last    time.Duration
	hasLast bool
	stalled int
}

// NewBufferingDetector returns a detector; threshold defaults to 3.
func NewBufferingDetector(threshold int) *BufferingDetector {
	if threshold <= 0 {
		threshold = 3
	}
	return &BufferingDetector{Threshold: threshold}
}

// Observe records one check and reports whether the player is buffering.
func (d *BufferingDetector) Observe(pos time.Duration, playing bool) bool {
	if playing && d.hasLast && pos == d.last {
		d.stalled++
	} else {
		d.stalled = 0
	}
	d.last = pos
	d.hasLast = true
	return d.stalled >= d.Threshold
}

// Reset forgets the last observed position.
func (d *BufferingDetector) Reset() {
	d.hasLast = false
	d.stalled = 0
}
