package transcribe

import (
	"context"
	"strings"
	"time"

	"livesub/internal/audio"
)

// Segment is recognised text placed on the playback timeline.
type Segment struct {
	Index int
	Chunk int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Span is backend output relative to the start of the submitted segment.
type Span struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Backend recognises speech in one audio segment.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, seg audio.Segment) ([]Span, error)
}

// Align offsets spans by the segment start, clips them to the segment window,
// and drops spans with no text or no remaining duration. Indices start at
// firstIndex.
func Align(seg audio.Segment, spans []Span, firstIndex int) []Segment {
	out := make([]Segment, 0, len(spans))
	for _, span := range spans {
		text := strings.TrimSpace(span.Text)
		if text == "" {
			continue
		}
		start := seg.Start + span.Start
		end := seg.Start + span.End
		if start < seg.Start {
			start = seg.Start
		}
		if end > seg.End {
			end = seg.End
		}
		if start >= end {
			continue
		}
		out = append(out, Segment{
			Index: firstIndex + len(out),
			Chunk: seg.Index,
			Start: start,
			End:   end,
			Text:  text,
		})
	}
	return out
}

func secondsToDuration(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
