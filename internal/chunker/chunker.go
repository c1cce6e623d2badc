// Package chunker groups extractor frames into bounded, silence-aligned
// audio segments.
package chunker

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"livesub/internal/audio"
	"livesub/internal/logging"
)

// Options bounds segment length and tunes the silence detector.
type Options struct {
	SampleRate    int
	FrameDuration time.Duration
	MaxDuration   time.Duration
	MinDuration   time.Duration
	// SilenceRatio marks a window silent when its RMS is below this fraction
	// of the mean window RMS of the candidate segment.
	SilenceRatio  float64
	SilenceWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = audio.DefaultSampleRate
	}
	if o.FrameDuration <= 0 {
		o.FrameDuration = 100 * time.Millisecond
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 30 * time.Second
	}
	if o.MinDuration < 0 || o.MinDuration >= o.MaxDuration {
		o.MinDuration = 0
	}
	if o.SilenceRatio <= 0 {
		o.SilenceRatio = 0.5
	}
	if o.SilenceWindow <= 0 {
		o.SilenceWindow = 100 * time.Millisecond
	}
	return o
}

// Chunker accumulates frames and cuts segments. It is not safe for concurrent
// use; Run owns one instance per pipeline run.
type Chunker struct {
	opts       Options
	maxSamples int
	minSamples int
	window     int

	buf      []float32
	bufStart time.Duration
	expected time.Duration
	hasBuf   bool
	index    int
	logger   *slog.Logger
}

// New builds a chunker.
func New(opts Options, logger *slog.Logger) *Chunker {
	opts = opts.withDefaults()
	window := audio.DurationSamples(opts.SilenceWindow, opts.SampleRate)
	if window <= 0 {
		window = 1
	}
	return &Chunker{
		opts:       opts,
		maxSamples: max(1, audio.DurationSamples(opts.MaxDuration, opts.SampleRate)),
		minSamples: audio.DurationSamples(opts.MinDuration, opts.SampleRate),
		window:     window,
		logger:     logging.NewComponentLogger(logger, "chunker"),
	}
}

// Push adds a frame and returns any segments that became complete.
func (c *Chunker) Push(f audio.Frame) []audio.Segment {
	if len(f.Samples) == 0 {
		return nil
	}
	var out []audio.Segment
	if c.hasBuf {
		gap := f.Start - c.expected
		if gap < 0 {
			gap = -gap
		}
		if gap > c.opts.FrameDuration {
			c.logger.Debug("frame discontinuity; flushing buffer",
				logging.Duration("expected", c.expected),
				logging.Duration("got", f.Start),
			)
			if seg, ok := c.Flush(); ok {
				out = append(out, seg)
			}
		}
	}
	if !c.hasBuf {
		c.bufStart = f.Start
		c.hasBuf = true
	}
	c.buf = append(c.buf, f.Samples...)
	c.expected = f.Start + audio.SamplesDuration(len(f.Samples), c.opts.SampleRate)

	for len(c.buf) >= c.maxSamples {
		cut := c.findCut(c.buf[:c.maxSamples])
		out = append(out, c.emit(cut))
	}
	return out
}

// Flush emits whatever is buffered as a final segment.
func (c *Chunker) Flush() (audio.Segment, bool) {
	if len(c.buf) == 0 {
		c.hasBuf = false
		return audio.Segment{}, false
	}
	seg := c.emit(len(c.buf))
	c.hasBuf = false
	return seg, true
}

func (c *Chunker) emit(n int) audio.Segment {
	samples := slices.Clone(c.buf[:n])
	start := c.bufStart
	seg := audio.Segment{
		Index:      c.index,
		Start:      start,
		End:        start + audio.SamplesDuration(n, c.opts.SampleRate),
		Samples:    samples,
		SampleRate: c.opts.SampleRate,
	}
	c.index++
	remaining := copy(c.buf, c.buf[n:])
	c.buf = c.buf[:remaining]
	c.bufStart = seg.End
	return seg
}

// findCut returns the split point inside candidate: the middle of the last
// silent window starting at or after the minimum duration, or len(candidate)
// when no window qualifies.
func (c *Chunker) findCut(candidate []float32) int {
	windows := len(candidate) / c.window
	if windows == 0 {
		return len(candidate)
	}
	rms := make([]float64, windows)
	var total float64
	for i := range windows {
		rms[i] = windowRMS(candidate[i*c.window : (i+1)*c.window])
		total += rms[i]
	}
	threshold := c.opts.SilenceRatio * (total / float64(windows))
	for i := windows - 1; i >= 0; i-- {
		start := i * c.window
		if start < c.minSamples {
			break
		}
		if rms[i] < threshold {
			if cut := start + c.window/2; cut > 0 {
				return cut
			}
		}
	}
	return len(candidate)
}

func windowRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Run consumes frames until in is closed, then flushes. out is closed when Run
// returns.
func (c *Chunker) Run(ctx context.Context, in <-chan audio.Frame, out chan<- audio.Segment) error {
	defer close(out)
	send := func(seg audio.Segment) error {
		select {
		case out <- seg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-in:
			if !ok {
				if seg, ok := c.Flush(); ok {
					return send(seg)
				}
				return nil
			}
			for _, seg := range c.Push(frame) {
				if err := send(seg); err != nil {
					return err
				}
			}
		}
	}
}
