package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"livesub/internal/logging"
	"livesub/internal/subtitles"
)

// Session owns the current pipeline run for a playing video and feeds its cues
// into a Track.
type Session struct {
	ctx        context.Context
	pipeline   *Pipeline
	track      *subtitles.Track
	transcript *subtitles.TranscriptFile
	logger     *slog.Logger
	onEvent    func(Event)

	generation atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	errMu sync.Mutex
	err   error
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithTranscript mirrors every accepted cue into the transcript file.
func WithTranscript(file *subtitles.TranscriptFile) SessionOption {
	return func(s *Session) { s.transcript = file }
}

// WithEventHook registers a callback for every event of the current
// generation, after the cue has been applied to the track.
func WithEventHook(fn func(Event)) SessionOption {
	return func(s *Session) { s.onEvent = fn }
}

// NewSession binds a pipeline to a track. Runs are children of ctx.
func NewSession(ctx context.Context, p *Pipeline, track *subtitles.Track, logger *slog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		ctx:      ctx,
		pipeline: p,
		track:    track,
		logger:   logging.NewComponentLogger(logger, "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generation returns the identifier of the current run.
func (s *Session) Generation() int64 { return s.generation.Load() }

// Start begins a new generation at playback offset from, stopping any run in
// progress.
func (s *Session) Start(from time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.startLocked(from)
}

// Seek cancels the current run, waits for it, clears the track and the
// transcript file, and starts a new generation at pos.
func (s *Session) Seek(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.track.Reset()
	if s.transcript != nil {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		if err := s.transcript.Truncate(ctx); err != nil {
			logging.WarnWithContext(s.logger, "transcript truncate failed", "transcript_truncate_failed",
				logging.String(logging.FieldErrorHint, "check permissions on the task work directory"),
				logging.String(logging.FieldImpact, "stale cues may reappear on refresh"),
				logging.Error(err),
			)
		}
		cancel()
	}
	s.logger.Info("seek", logging.Duration("position", pos))
	s.startLocked(pos)
}

// Stop cancels the current run and waits for it to finish.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Done is closed when the current generation's event stream has ended.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// Err returns the failure of the current generation, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) startLocked(from time.Duration) {
	gen := s.generation.Add(1)
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.errMu.Lock()
	s.err = nil
	s.errMu.Unlock()
	events := s.pipeline.Run(ctx, from)
	go s.consume(ctx, gen, events, done)
}

func (s *Session) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
}

func (s *Session) consume(ctx context.Context, gen int64, events <-chan Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		if s.generation.Load() != gen {
			continue
		}
		switch ev.Kind {
		case EventCue:
			if !s.track.Add(ev.Cue) {
				continue
			}
			if s.transcript != nil {
				if err := s.transcript.Append(ctx, ev.Cue); err != nil && ctx.Err() == nil {
					logging.WarnWithContext(s.logger, "transcript append failed", "transcript_append_failed",
						logging.String(logging.FieldErrorHint, "check free space in the task work directory"),
						logging.String(logging.FieldImpact, "cue kept in memory only"),
						logging.Error(err),
					)
				}
			}
		case EventCompleted:
			s.track.MarkComplete()
		case EventError:
			s.setErr(gen, ev.Err)
			s.track.MarkComplete()
		case EventCancelled:
		}
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
}

func (s *Session) setErr(gen int64, err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.generation.Load() == gen {
		s.err = err
	}
}
