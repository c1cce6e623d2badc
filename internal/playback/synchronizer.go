package playback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"livesub/internal/logging"
	"livesub/internal/subtitles"
)

// Display receives the text to show; an empty string clears it.
type Display interface {
	Show(text string)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(text string)

func (f DisplayFunc) Show(text string) { f(text) }

// Options tunes the synchronizer.
type Options struct {
	// PauseGrace is how far playback may run with no cues at all before it is
	// held.
	PauseGrace time.Duration
	// RefreshEvery reloads the track from Transcript every N ticks; zero
	// disables refreshing.
	RefreshEvery int
	Transcript   *subtitles.TranscriptFile
	// BufferingChecks is the stall threshold for the buffering detector.
	BufferingChecks int
	// OnBuffering is called when the buffering state flips.
	OnBuffering func(buffering bool)
	// OnSeek restarts subtitle generation at the new position. It runs after
	// the clock has moved and before display state is cleared.
	OnSeek func(pos time.Duration)
}

// TickResult describes what one tick observed and did.
type TickResult struct {
	Position  time.Duration
	Text      string
	Found     bool
	Paused    bool
	Resumed   bool
	Buffering bool
	Refreshed bool
}

// Synchronizer matches cues to the clock position.
type Synchronizer struct {
	clock   Clock
	track   *subtitles.Track
	display Display
	opts    Options
	logger  *slog.Logger

	current      string
	pausedBySync bool
	ticks        int
	buffering    *BufferingDetector
	isBuffering  bool
	seeks        chan time.Duration
}

// NewSynchronizer wires a clock, a track, and a display.
func NewSynchronizer(clock Clock, track *subtitles.Track, display Display, opts Options, logger *slog.Logger) *Synchronizer {
	if opts.PauseGrace <= 0 {
		opts.PauseGrace = 200 * time.Millisecond
	}
	if display == nil {
		display = DisplayFunc(func(string) {})
	}
	return &Synchronizer{
		clock:     clock,
		track:     track,
		display:   display,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "synchronizer"),
		buffering: NewBufferingDetector(opts.BufferingChecks),
		seeks:     make(chan time.Duration, 1),
	}
}

// Waiting reports whether the synchronizer is holding playback.
func (s *Synchronizer) Waiting() bool { return s.pausedBySync }

// Reset clears display state, e.g. after a seek.
func (s *Synchronizer) Reset() {
	if s.current != "" {
		s.display.Show("")
	}
	s.current = ""
	s.ticks = 0
	s.buffering.Reset()
}

// Seek moves the clock to pos, restarts subtitle generation through OnSeek and
// clears display state. It must run on the goroutine driving Tick; other
// goroutines use RequestSeek.
func (s *Synchronizer) Seek(pos time.Duration) {
	s.clock.Seek(pos)
	if s.opts.OnSeek != nil {
		s.opts.OnSeek(pos)
	}
	s.Reset()
	s.logger.Info("playback seek", logging.Duration("position", pos))
}

// RequestSeek queues a seek for Run. A newer request replaces one that has
// not been applied yet.
func (s *Synchronizer) RequestSeek(pos time.Duration) {
	for {
		select {
		case s.seeks <- pos:
			return
		default:
		}
		select {
		case <-s.seeks:
		default:
		}
	}
}

// Tick runs one synchronisation step.
func (s *Synchronizer) Tick(ctx context.Context) TickResult {
	pos := s.clock.Position()
	res := TickResult{Position: pos}

	cue, found := s.track.At(pos)
	res.Found = found
	if found {
		res.Text = cue.Text
	}
	if res.Text != s.current {
		s.current = res.Text
		s.display.Show(res.Text)
	}

	complete := s.track.Complete()
	playing := s.clock.Playing()
	switch {
	case !complete && !found:
		if last, ok := s.track.Last(); ok {
			if pos >= last.End && playing {
				s.hold()
				res.Paused = true
				s.logger.Info("playback held; no subtitle past last cue",
					logging.Duration("position", pos),
					logging.Duration("last_cue_end", last.End),
				)
			}
		} else if pos > s.opts.PauseGrace && playing {
			s.hold()
			res.Paused = true
			s.logger.Info("playback held; no subtitles yet", logging.Duration("position", pos))
		}
	case s.pausedBySync && (found || complete):
		s.pausedBySync = false
		if !s.clock.Playing() {
			s.clock.Play()
			res.Resumed = true
			reason := "subtitle available"
			if !found {
				reason = "transcription complete"
			}
			s.logger.Info("playback resumed", logging.String("reason", reason), logging.Duration("position", pos))
		}
	}

	res.Buffering = s.buffering.Observe(pos, s.clock.Playing())
	if res.Buffering != s.isBuffering {
		s.isBuffering = res.Buffering
		if s.opts.OnBuffering != nil {
			s.opts.OnBuffering(res.Buffering)
		}
	}

	s.track.Prune(pos)

	s.ticks++
	if s.opts.RefreshEvery > 0 && s.opts.Transcript != nil && s.ticks >= s.opts.RefreshEvery {
		s.ticks = 0
		res.Refreshed = s.refresh(ctx)
	}
	return res
}

func (s *Synchronizer) hold() {
	s.clock.Pause()
	s.pausedBySync = true
}

func (s *Synchronizer) refresh(ctx context.Context) bool {
	cues, err := s.opts.Transcript.Load(ctx)
	if err != nil {
		if errors.Is(err, subtitles.ErrLockTimeout) {
			s.logger.Debug("transcript locked during refresh; retrying later")
			return false
		}
		logging.WarnWithContext(s.logger, "transcript refresh failed", "transcript_refresh_failed",
			logging.String("path", s.opts.Transcript.Path()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the task work directory"),
			logging.String(logging.FieldImpact, "subtitles may lag until the next refresh"),
		)
		return false
	}
	if len(cues) == 0 {
		return false
	}
	s.track.Replace(cues)
	return true
}

// Finished reports whether transcription is complete and playback has moved
// past the last cue or reached the end of the media.
func (s *Synchronizer) Finished() bool {
	if !s.track.Complete() {
		return false
	}
	last, ok := s.track.Last()
	if !ok {
		return true
	}
	pos := s.clock.Position()
	if bounded, ok := s.clock.(interface{ Duration() time.Duration }); ok {
		if end := bounded.Duration(); end > 0 && pos >= end {
			return true
		}
	}
	return pos > last.End
}

// Run ticks every interval until ctx is done or Finished reports true.
func (s *Synchronizer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pos := <-s.seeks:
			s.Seek(pos)
		case <-ticker.C:
			s.Tick(ctx)
			if s.Finished() {
				if s.current != "" {
					s.current = ""
					s.display.Show("")
				}
				return nil
			}
		}
	}
}
