package subtitles

import (
	"slices"
	"sync"
	"time"
)

// Track owns the cues of one playback session. Cues stay in the track until
// Prune observes that their window has passed. It is safe for concurrent use:
// the pipeline appends while the synchronizer reads.
type Track struct {
	mu       sync.RWMutex
	cues     []Cue
	last     Cue
	hasLast  bool
	complete bool
}

// NewTrack returns an empty track.
func NewTrack() *Track {
	return &Track{}
}

// Add appends c after normalizing it against the last cue. It reports whether
// the cue was kept.
func (t *Track) Add(c Cue) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	var prev *Cue
	if t.hasLast {
		prev = &t.last
	}
	normalized, ok := Normalize(prev, c)
	if !ok {
		return false
	}
	t.cues = append(t.cues, normalized)
	t.last = normalized
	t.hasLast = true
	return true
}

// Replace swaps the track contents for cues, ordered by start time. Used when
// refreshing from a transcript file.
func (t *Track) Replace(cues []Cue) {
	sorted := slices.Clone(cues)
	slices.SortStableFunc(sorted, func(a, b Cue) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cues = sorted
	if len(sorted) > 0 {
		t.last = sorted[len(sorted)-1]
		t.hasLast = true
	} else {
		t.last = Cue{}
		t.hasLast = false
	}
}

// At returns the first cue covering pos.
func (t *Track) At(pos time.Duration) (Cue, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.cues {
		if c.Covers(pos) {
			return c, true
		}
		if c.Start > pos {
			break
		}
	}
	return Cue{}, false
}

// Last returns the most recently added cue, even if it has been pruned.
func (t *Track) Last() (Cue, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.hasLast
}

// Len returns the number of cues currently held.
func (t *Track) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.cues)
}

// Cues returns a copy of the held cues.
func (t *Track) Cues() []Cue {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.cues)
}

// Prune discards cues that ended before pos and returns how many were
// removed.
func (t *Track) Prune(pos time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	keep := t.cues[:0]
	for _, c := range t.cues {
		if c.End >= pos {
			keep = append(keep, c)
		}
	}
	removed := len(t.cues) - len(keep)
	clear(t.cues[len(keep):])
	t.cues = keep
	return removed
}

// MarkComplete records that no further cues will be added.
func (t *Track) MarkComplete() {
	t.mu.Lock()
	t.complete = true
	t.mu.Unlock()
}

// Complete reports whether transcription has finished.
func (t *Track) Complete() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.complete
}

// Reset clears all cues and the completion flag, e.g. after a seek.
func (t *Track) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cues = nil
	t.last = Cue{}
	t.hasLast = false
	t.complete = false
}
