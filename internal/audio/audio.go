package audio

import "time"

// DefaultSampleRate is the rate speech models expect.
const DefaultSampleRate = 16000

// Frame is a short run of mono samples starting at Start on the playback
// timeline.
type Frame struct {
	Start   time.Duration
	Samples []float32
}

// Segment is a bounded run of audio handed to transcription. Segments are
// never mutated after the chunker emits them.
type Segment struct {
	Index      int
	Start      time.Duration
	End        time.Duration
	Samples    []float32
	SampleRate int
}

// Duration returns End - Start.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// SamplesDuration converts a sample count to a duration at rate.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// DurationSamples converts d to a whole number of samples at rate.
func DurationSamples(d time.Duration, rate int) int {
	if d <= 0 || rate <= 0 {
		return 0
	}
	return int(int64(d) * int64(rate) / int64(time.Second))
}
