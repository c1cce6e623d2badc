package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"livesub/internal/audio"
	"livesub/internal/logging"
	"livesub/internal/playback"
	"livesub/internal/subtitles"
	"livesub/internal/testsupport"
)

// fastClock runs a simulated clock ten times faster than wall time.
func fastClock(duration time.Duration) *playback.SimulatedClock {
	origin := time.Now()
	return playback.NewSimulatedClock(duration, func() time.Time {
		return origin.Add(time.Since(origin) * 10)
	})
}

func TestRunPlaybackSeekRestartsFromNewOffset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rate := testsupport.PipelineRate
	source := testsupport.NewPCMSource(testsupport.Tone(10*time.Second, rate, 0.5), rate)
	backend := &testsupport.FakeBackend{Text: func(seg audio.Segment) string { return "from " + seg.Start.String() }}
	p := testsupport.NewPipeline(t, source, backend)
	transcript := subtitles.NewTranscriptFile(filepath.Join(t.TempDir(), subtitles.TranscriptFileName), 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	var out bytes.Buffer
	plan := playPlan{tick: 5 * time.Millisecond, seek: true, seekAt: 3 * time.Second, seekTo: 7 * time.Second}
	if _, err := runPlayback(ctx, cfg, p, fastClock(10*time.Second), transcript, &out, plan, logging.NewNop()); err != nil {
		t.Fatalf("runPlayback returned error: %v", err)
	}

	opens := source.Opens()
	if len(opens) != 2 || opens[0] != 0 || opens[1] != 7*time.Second {
		t.Fatalf("expected extraction restarted at 7s, got opens %v", opens)
	}
	saved, err := transcript.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(saved) == 0 || saved[0].Start != 7*time.Second {
		t.Fatalf("expected transcript to restart at 7s, got %+v", saved)
	}
	for _, c := range saved {
		if c.Start < 7*time.Second {
			t.Fatalf("transcript kept a cue from before the seek: %+v", c)
		}
	}
	requireContains(t, out.String(), "from 7s")
}

func TestRunPlaybackWithoutSeekPlaysToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rate := testsupport.PipelineRate
	source := testsupport.NewPCMSource(testsupport.Tone(4*time.Second, rate, 0.5), rate)
	backend := &testsupport.FakeBackend{Text: func(seg audio.Segment) string { return "from " + seg.Start.String() }}
	p := testsupport.NewPipeline(t, source, backend)
	transcript := subtitles.NewTranscriptFile(filepath.Join(t.TempDir(), subtitles.TranscriptFileName), 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	var out bytes.Buffer
	if _, err := runPlayback(ctx, cfg, p, fastClock(4*time.Second), transcript, &out, playPlan{tick: 5 * time.Millisecond}, logging.NewNop()); err != nil {
		t.Fatalf("runPlayback returned error: %v", err)
	}
	if opens := source.Opens(); len(opens) != 1 {
		t.Fatalf("expected a single extraction, got %v", opens)
	}
	output := out.String()
	requireContains(t, output, "from 2s")
	if strings.Count(output, "from ") < 2 {
		t.Fatalf("expected both cues displayed, got:\n%s", output)
	}
}
