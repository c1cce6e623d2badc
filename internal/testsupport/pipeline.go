package testsupport

import (
	"testing"
	"time"

	"livesub/internal/audio"
	"livesub/internal/chunker"
	"livesub/internal/logging"
	"livesub/internal/pipeline"
	"livesub/internal/transcribe"
)

// PipelineRate is the sample rate used by NewPipeline.
const PipelineRate = 1000

// NewPipeline builds a small-scale pipeline: 100 ms frames and 0.5–2 s
// segments at PipelineRate, so a 10 s tone yields five cues.
func NewPipeline(t testing.TB, source audio.Source, backend transcribe.Backend) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.Options{
		Source:        source,
		SampleRate:    PipelineRate,
		FrameDuration: 100 * time.Millisecond,
		Chunker: chunker.Options{
			MaxDuration: 2 * time.Second,
			MinDuration: 500 * time.Millisecond,
		},
		Transcriber: backend,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p
}
