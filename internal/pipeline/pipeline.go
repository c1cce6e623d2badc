package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"livesub/internal/audio"
	"livesub/internal/chunker"
	"livesub/internal/config"
	"livesub/internal/logging"
	"livesub/internal/subtitles"
	"livesub/internal/transcribe"
	"livesub/internal/translate"
)

// Fixed queue between the extractor and the chunker.
const frameQueueSize = 16

// Options configures a Pipeline.
type Options struct {
	Source        audio.Source
	SampleRate    int
	FrameDuration time.Duration
	Chunker       chunker.Options
	Transcriber   transcribe.Backend
	Translator    translate.Translator
	Metrics       *Metrics

	SegmentQueue    int
	TranscriptQueue int
	OutputQueue     int
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = audio.DefaultSampleRate
	}
	if o.FrameDuration <= 0 {
		o.FrameDuration = 100 * time.Millisecond
	}
	if o.Chunker.SampleRate <= 0 {
		o.Chunker.SampleRate = o.SampleRate
	}
	if o.Chunker.FrameDuration <= 0 {
		o.Chunker.FrameDuration = o.FrameDuration
	}
	if o.SegmentQueue <= 0 {
		o.SegmentQueue = 4
	}
	if o.TranscriptQueue <= 0 {
		o.TranscriptQueue = 50
	}
	if o.OutputQueue <= 0 {
		o.OutputQueue = 100
	}
	if o.Translator == nil {
		o.Translator = translate.Passthrough{}
	}
	return o
}

// Pipeline turns a media source into a stream of subtitle cues.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a pipeline. Source and Transcriber are required.
func New(opts Options, logger *slog.Logger) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, errors.New("pipeline: audio source is required")
	}
	if opts.Transcriber == nil {
		return nil, errors.New("pipeline: transcription backend is required")
	}
	return &Pipeline{
		opts:   opts.withDefaults(),
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// FromConfig builds the production pipeline for in: ffmpeg extraction and
// the backends selected in cfg.
func FromConfig(cfg *config.Config, in Input, metrics *Metrics, logger *slog.Logger) (*Pipeline, error) {
	backend, err := transcribe.New(cfg, in.WorkDir)
	if err != nil {
		return nil, err
	}
	translator, err := translate.New(cfg)
	if err != nil {
		return nil, err
	}
	ac := cfg.Audio
	source := audio.NewFFmpegSource(ac.FFmpegBinary, in.Path, ac.SampleRate)
	source.StreamIndex = in.AudioStream
	return New(Options{
		Source:        source,
		SampleRate:    ac.SampleRate,
		FrameDuration: cfg.FrameDuration(),
		Chunker: chunker.Options{
			MaxDuration:   time.Duration(ac.MaxSegmentSeconds * float64(time.Second)),
			MinDuration:   time.Duration(ac.MinSegmentSeconds * float64(time.Second)),
			SilenceRatio:  ac.SilenceRatio,
			SilenceWindow: time.Duration(ac.SilenceWindowMS) * time.Millisecond,
		},
		Transcriber:     backend,
		Translator:      translator,
		Metrics:         metrics,
		SegmentQueue:    cfg.Pipeline.SegmentQueueSize,
		TranscriptQueue: cfg.Pipeline.TranscriptionQueueSize,
		OutputQueue:     cfg.Pipeline.OutputQueueSize,
	}, logger)
}

// TranslatorName reports the active translator.
func (p *Pipeline) TranslatorName() string { return p.opts.Translator.Name() }

// TranscriberName reports the active transcription backend.
func (p *Pipeline) TranscriberName() string { return p.opts.Transcriber.Name() }

// Run starts all stages at playback offset from and returns the event stream.
// The stream ends with one terminal event and is then closed. Cancelling ctx
// stops every stage.
func (p *Pipeline) Run(ctx context.Context, from time.Duration) <-chan Event {
	events := make(chan Event, p.opts.OutputQueue)
	go p.run(ctx, from, events)
	return events
}

func (p *Pipeline) run(parent context.Context, from time.Duration, events chan<- Event) {
	defer close(events)
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	frames := make(chan audio.Frame, frameQueueSize)
	segments := make(chan audio.Segment, p.opts.SegmentQueue)
	transcripts := make(chan transcribe.Segment, p.opts.TranscriptQueue)
	cues := make(chan subtitles.Cue, p.opts.OutputQueue)

	var (
		failOnce sync.Once
		firstErr error
		wg       sync.WaitGroup
	)
	stage := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn()
			if err == nil {
				return
			}
			if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return
			}
			failOnce.Do(func() {
				firstErr = err
				p.logger.Error("stage failed",
					logging.String(logging.FieldStage, name),
					logging.Error(err),
				)
				cancel()
			})
		}()
	}

	extractor := audio.NewExtractor(p.opts.Source, p.opts.SampleRate, p.opts.FrameDuration, p.logger)
	chunks := chunker.New(p.opts.Chunker, p.logger)
	transcriber := transcribe.NewWorker(p.opts.Transcriber, p.logger,
		transcribe.WithObserver(p.opts.Metrics.SegmentTranscribed))
	translator := translate.NewWorker(p.opts.Translator, p.opts.Metrics, p.logger)

	p.logger.Info("pipeline started",
		logging.Duration("from", from),
		logging.String("transcriber", p.opts.Transcriber.Name()),
		logging.String("translator", p.opts.Translator.Name()),
	)
	started := time.Now()

	stage("extract", func() error { return extractor.Run(ctx, from, frames) })
	stage("chunk", func() error { return chunks.Run(ctx, frames, segments) })
	stage("transcribe", func() error { return transcriber.Run(ctx, segments, transcripts) })
	stage("translate", func() error { return translator.Run(ctx, transcripts, cues) })

	emitted := p.forward(ctx, cues, events)
	wg.Wait()

	terminal := Event{Kind: EventCompleted}
	switch {
	case firstErr != nil:
		terminal = Event{Kind: EventError, Err: firstErr}
	case parent.Err() != nil:
		terminal = Event{Kind: EventCancelled, Err: parent.Err()}
	}
	p.logger.Info("pipeline finished",
		logging.String("status", terminal.Kind.String()),
		logging.Int("cues", emitted),
		logging.Duration("elapsed", time.Since(started)),
	)

	if parent.Err() != nil {
		// Consumers that cancelled may have stopped reading.
		select {
		case events <- terminal:
		default:
		}
		return
	}
	events <- terminal
}

// forward normalizes cues into non-overlapping, start-ordered events.
func (p *Pipeline) forward(ctx context.Context, cues <-chan subtitles.Cue, events chan<- Event) int {
	var (
		prev    subtitles.Cue
		hasPrev bool
		emitted int
	)
	for {
		select {
		case <-ctx.Done():
			return emitted
		case cue, ok := <-cues:
			if !ok {
				return emitted
			}
			var last *subtitles.Cue
			if hasPrev {
				last = &prev
			}
			normalized, keep := subtitles.Normalize(last, cue)
			if !keep {
				p.logger.Debug("cue dropped",
					logging.Int(logging.FieldSegmentIndex, cue.Index),
					logging.Duration("start", cue.Start),
					logging.Duration("end", cue.End),
				)
				continue
			}
			select {
			case events <- Event{Kind: EventCue, Cue: normalized}:
			case <-ctx.Done():
				return emitted
			}
			prev, hasPrev = normalized, true
			emitted++
			p.opts.Metrics.CueEmitted(ctx)
		}
	}
}
