package subtitles

import (
	"strings"
	"time"
)

// Cue is a single timed subtitle ready for display.
type Cue struct {
	Index  int           `json:"index"`
	Start  time.Duration `json:"start"`
	End    time.Duration `json:"end"`
	Text   string        `json:"text"`
	Source string        `json:"source,omitempty"`
}

// Covers reports whether pos falls inside the cue window (inclusive).
func (c Cue) Covers(pos time.Duration) bool {
	return c.Start <= pos && pos <= c.End
}

// Duration returns the cue display length.
func (c Cue) Duration() time.Duration {
	if c.End <= c.Start {
		return 0
	}
	return c.End - c.Start
}

// Normalize enforces ordering against the previously emitted cue: a cue that
// starts before prev ends is clipped to start at prev.End. The second return
// is false when the cue is empty after clipping or has no text.
func Normalize(prev *Cue, c Cue) (Cue, bool) {
	c.Text = strings.TrimSpace(c.Text)
	if c.Text == "" {
		return c, false
	}
	if prev != nil && c.Start < prev.End {
		c.Start = prev.End
	}
	if c.End <= c.Start {
		return c, false
	}
	return c, true
}
