package testsupport

import (
	"bytes"
	"context"
	"io"
	"math"
	"sync"
	"time"

	"livesub/internal/audio"
	"livesub/internal/transcribe"
)

// Tone returns d of a 440 Hz sine at amplitude amp.
func Tone(d time.Duration, rate int, amp float64) []float32 {
	n := audio.DurationSamples(d, rate)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

// Silence returns d of zero samples.
func Silence(d time.Duration, rate int) []float32 {
	return make([]float32, audio.DurationSamples(d, rate))
}

// PCMSource serves fixed samples as s16le PCM, honouring the seek offset.
type PCMSource struct {
	Samples    []float32
	SampleRate int
	// Block, when set, keeps the stream open after the samples are served
	// until the context is cancelled.
	Block bool

	mu    sync.Mutex
	opens []time.Duration
}

// NewPCMSource wraps samples recorded at rate.
func NewPCMSource(samples []float32, rate int) *PCMSource {
	return &PCMSource{Samples: samples, SampleRate: rate}
}

// Open implements audio.Source.
func (s *PCMSource) Open(ctx context.Context, from time.Duration) (io.ReadCloser, error) {
	s.mu.Lock()
	s.opens = append(s.opens, from)
	s.mu.Unlock()

	skip := audio.DurationSamples(from, s.SampleRate)
	if skip > len(s.Samples) {
		skip = len(s.Samples)
	}
	data := bytes.NewReader(audio.EncodePCM16(s.Samples[skip:]))
	if !s.Block {
		return io.NopCloser(data), nil
	}
	return &blockingReader{ctx: ctx, data: data}, nil
}

// Opens returns the offsets the source was opened at.
func (s *PCMSource) Opens() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.opens...)
}

type blockingReader struct {
	ctx  context.Context
	data *bytes.Reader
}

func (r *blockingReader) Read(p []byte) (int, error) {
	if r.data.Len() > 0 {
		return r.data.Read(p)
	}
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func (r *blockingReader) Close() error { return nil }

// FakeBackend transcribes every segment into one span covering it, labelled
// with the segment index.
type FakeBackend struct {
	// Fail, when non-nil, is returned for the segment with index FailAt.
	Fail   error
	FailAt int
	// Text overrides the generated text when set.
	Text func(seg audio.Segment) string

	mu    sync.Mutex
	calls int
}

// Name implements transcribe.Backend.
func (b *FakeBackend) Name() string { return "fake" }

// Transcribe implements transcribe.Backend.
func (b *FakeBackend) Transcribe(ctx context.Context, seg audio.Segment) ([]transcribe.Span, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Fail != nil && seg.Index == b.FailAt {
		return nil, b.Fail
	}
	text := "segment"
	if b.Text != nil {
		text = b.Text(seg)
	}
	return []transcribe.Span{{Start: 0, End: seg.Duration(), Text: text}}, nil
}

// Calls returns the number of Transcribe invocations.
func (b *FakeBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
