package playback_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"livesub/internal/playback"
	"livesub/internal/subtitles"
)

type fakeTime struct{ t time.Time }

func (f *fakeTime) now() time.Time          { return f.t }
func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }
func newFakeTime() *fakeTime                { return &fakeTime{t: time.Unix(1_700_000_000, 0)} }
func ms(v int) time.Duration                { return time.Duration(v) * time.Millisecond }
func cue(start, end int, text string) subtitles.Cue {
	return subtitles.Cue{Start: ms(start), End: ms(end), Text: text}
}

type recorder struct{ shown []string }

func (r *recorder) Show(text string) { r.shown = append(r.shown, text) }

func TestSimulatedClock(t *testing.T) {
	ft := newFakeTime()
	clock := playback.NewSimulatedClock(10*time.Second, ft.now)
	if clock.Playing() || clock.Position() != 0 {
		t.Fatal("expected paused clock at zero")
	}
	clock.Play()
	ft.advance(1500 * time.Millisecond)
	if clock.Position() != 1500*time.Millisecond {
		t.Fatalf("unexpected position %v", clock.Position())
	}
	clock.Pause()
	ft.advance(time.Second)
	if clock.Position() != 1500*time.Millisecond {
		t.Fatalf("expected position frozen while paused, got %v", clock.Position())
	}
	clock.Seek(9 * time.Second)
	clock.Play()
	ft.advance(5 * time.Second)
	if clock.Position() != 10*time.Second || clock.Playing() {
		t.Fatalf("expected clamp at end of media, got %v playing=%v", clock.Position(), clock.Playing())
	}
}

func TestSynchronizerShowsCoveringCue(t *testing.T) {
	ft := newFakeTime()
	clock := playback.NewSimulatedClock(0, ft.now)
	track := subtitles.NewTrack()
	track.Add(cue(0, 1000, "one"))
	track.Add(cue(1500, 2500, "two"))
	track.MarkComplete()
	display := &recorder{}
	sync := playback.NewSynchronizer(clock, track, display, playback.Options{}, nil)

	clock.Play()
	sync.Tick(context.Background())
	ft.advance(500 * time.Millisecond)
	sync.Tick(context.Background())
	ft.advance(700 * time.Millisecond)
	sync.Tick(context.Background())
	ft.advance(600 * time.Millisecond)
	res := sync.Tick(context.Background())

	if !res.Found || res.Text != "two" {
		t.Fatalf("expected second cue at %v, got %+v", res.Position, res)
	}
	want := []string{"one", "", "two"}
	if len(display.shown) != len(want) {
		t.Fatalf("expected display updates %v, got %v", want, display.shown)
	}
	for i := range want {
		if display.shown[i] != want[i] {
			t.Fatalf("expected display updates %v, got %v", want, display.shown)
		}
	}
}

func TestSynchronizerHoldsPastLastCueAndResumes(t *testing.T) {
	ft := newFakeTime()
	clock := playback.NewSimulatedClock(0, ft.now)
	track := subtitles.NewTrack()
	track.Add(cue(0, 1000, "one"))
	sync := playback.NewSynchronizer(clock, track, nil, playback.Options{}, nil)

	clock.Play()
	ft.advance(1200 * time.Millisecond)
	res := sync.Tick(context.Background())
	if !res.Paused || clock.Playing() || !sync.Waiting() {
		t.Fatalf("expected hold past last cue, got %+v", res)
	}

	track.Add(cue(1100, 2000, "two"))
	res = sync.Tick(context.Background())
	if !res.Resumed || !clock.Playing() {
		t.Fatalf("expected resume once a cue covers the position, got %+v", res)
	}
}

func TestSynchronizerGraceWithNoCues(t *testing.T) {
	ft := newFakeTime()
	clock := playback.NewSimulatedClock(0, ft.now)
	track := subtitles.NewTrack()
	sync := playback.NewSynchronizer(clock, track, nil, playback.Options{PauseGrace: 200 * time.Millisecond}, nil)

	clock.Play()
	ft.advance(100 * time.Millisecond)
	if res := sync.Tick(context.Background()); res.Paused {
		t.Fatal("expected no hold within the grace period")
	}
	ft.advance(200 * time.Millisecond)
	if res := sync.Tick(context.Background()); !res.Paused {
		t.Fatal("expected hold after the grace period")
	}

	track.MarkComplete()
	if res := sync.Tick(context.Background()); !res.Resumed || !clock.Playing() {
		t.Fatalf("expected resume on completion, got %+v", res)
	}
}

func TestSynchronizerNeverResumesUserPause(t *testing.T) {
	ft := newFakeTime()
	clock := playback.NewSimulatedClock(0, ft.now)
	track := subtitles.NewTrack()
	track.Add(cue(0, 5000, "long"))
	sync := playback.NewSynchronizer(clock, track, nil, playback.Options{}, nil)

	clock.Play()
	ft.advance(time.Second)
	clock.Pause()
	res := sync.Tick(context.Background())
	if res.Resumed || clock.Playing() {
		t.Fatal("user pause must not be undone")
	}
}

func TestSynchronizerRefreshesFromTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), subtitles.TranscriptFileName)
	transcript := subtitles.NewTranscriptFile(path, 20*time.Millisecond)
	if err := transcript.Append(context.Background(), subtitles.Cue{Index: 1, Start: 0, End: time.Second, Text: "from file"}); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	ft := newFakeTime()
	clock := playback.NewSimulatedClock(0, ft.now)
	track := subtitles.NewTrack()
	sync := playback.NewSynchronizer(clock, track, nil, playback.Options{RefreshEvery: 2, Transcript: transcript}, nil)

	if res := sync.Tick(context.Background()); res.Refreshed {
		t.Fatal("expected no refresh on first tick")
	}
	if res := sync.Tick(context.Background()); !res.Refreshed {
		t.Fatal("expected refresh on second tick")
	}
	if res := sync.Tick(context.Background()); res.Text != "from file" {
		t.Fatalf("expected refreshed cue to display, got %+v", res)
	}

	holder := flock.New(transcript.LockPath())
	if err := holder.Lock(); err != nil {
		t.Fatalf("hold lock: %v", err)
	}
	defer func() { _ = holder.Unlock() }()
	if res := sync.Tick(context.Background()); res.Refreshed {
		t.Fatal("expected locked refresh to be skipped")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("transcript missing: %v", err)
	}
}

func TestBufferingDetector(t *testing.T) {
	d := playback.NewBufferingDetector(3)
	pos := time.Second
	results := []bool{
		d.Observe(pos, true),
		d.Observe(pos, true),
		d.Observe(pos, true),
		d.Observe(pos, true),
	}
	if results[2] || !results[3] {
		t.Fatalf("expected buffering after three stalled checks, got %v", results)
	}
	if d.Observe(pos, false) {
		t.Fatal("paused player is never buffering")
	}
	if d.Observe(pos+time.Millisecond, true) {
		t.Fatal("advancing position clears buffering")
	}
}

func TestSynchronizerRunStopsWhenFinished(t *testing.T) {
	clock := playback.NewSimulatedClock(0, nil)
	track := subtitles.NewTrack()
	track.Add(cue(0, 10, "blink"))
	track.MarkComplete()
	clock.Seek(time.Second)
	sync := playback.NewSynchronizer(clock, track, nil, playback.Options{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sync.Run(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestSynchronizerSeekRestartsAtPosition(t *testing.T) {
	ft := newFakeTime()
	clock := playback.NewSimulatedClock(10*time.Second, ft.now)
	track := subtitles.NewTrack()
	track.Add(cue(0, 1000, "early"))
	rec := &recorder{}
	var seeks []time.Duration
	sync := playback.NewSynchronizer(clock, track, rec, playback.Options{
		OnSeek: func(pos time.Duration) {
			seeks = append(seeks, pos)
			track.Reset()
		},
	}, nil)

	clock.Play()
	ft.advance(ms(500))
	if res := sync.Tick(context.Background()); res.Text != "early" {
		t.Fatalf("expected early cue, got %+v", res)
	}

	sync.Seek(6 * time.Second)
	if clock.Position() != 6*time.Second {
		t.Fatalf("clock position = %v, want 6s", clock.Position())
	}
	if len(seeks) != 1 || seeks[0] != 6*time.Second {
		t.Fatalf("unexpected seeks: %v", seeks)
	}
	if track.Len() != 0 {
		t.Fatalf("expected track cleared, got %d cues", track.Len())
	}

	track.Add(cue(6000, 7000, "late"))
	ft.advance(ms(200))
	if res := sync.Tick(context.Background()); res.Text != "late" {
		t.Fatalf("expected late cue after seek, got %+v", res)
	}
	want := []string{"early", "", "late"}
	if len(rec.shown) != len(want) {
		t.Fatalf("shown = %q, want %q", rec.shown, want)
	}
	for i := range want {
		if rec.shown[i] != want[i] {
			t.Fatalf("shown = %q, want %q", rec.shown, want)
		}
	}
}

func TestSynchronizerRunAppliesLatestSeekRequest(t *testing.T) {
	clock := playback.NewSimulatedClock(0, nil)
	track := subtitles.NewTrack()
	track.Add(cue(0, 60_000, "before"))
	var seeks []time.Duration
	sync := playback.NewSynchronizer(clock, track, nil, playback.Options{
		OnSeek: func(pos time.Duration) {
			seeks = append(seeks, pos)
			track.Reset()
			track.Add(subtitles.Cue{Start: pos, End: pos + 10*time.Millisecond, Text: "after"})
			track.MarkComplete()
		},
	}, nil)

	sync.RequestSeek(3 * time.Second)
	sync.RequestSeek(5 * time.Second)
	clock.Play()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sync.Run(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(seeks) != 1 || seeks[0] != 5*time.Second {
		t.Fatalf("unexpected seeks: %v", seeks)
	}
	if clock.Position() < 5*time.Second {
		t.Fatalf("clock did not move to the seek target: %v", clock.Position())
	}
}

func TestSynchronizerFinishedAtEndOfMedia(t *testing.T) {
	ft := newFakeTime()
	track := subtitles.NewTrack()
	track.Add(cue(1000, 2000, "closing line"))
	track.MarkComplete()

	unbounded := playback.NewSimulatedClock(0, ft.now)
	unbounded.Seek(2 * time.Second)
	if playback.NewSynchronizer(unbounded, track, nil, playback.Options{}, nil).Finished() {
		t.Fatal("expected unbounded clock on the last cue end to keep playing")
	}

	bounded := playback.NewSimulatedClock(2*time.Second, ft.now)
	bounded.Seek(2 * time.Second)
	if !playback.NewSynchronizer(bounded, track, nil, playback.Options{}, nil).Finished() {
		t.Fatal("expected playback at the end of the media to finish")
	}
}

func TestSynchronizerSkipsRefreshWhileTranscriptLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), subtitles.TranscriptFileName)
	transcript := subtitles.NewTranscriptFile(path, 20*time.Millisecond)
	if err := transcript.Append(context.Background(), subtitles.Cue{Index: 1, Start: 0, End: time.Second, Text: "on disk"}); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	ft := newFakeTime()
	clock := playback.NewSimulatedClock(0, ft.now)
	track := subtitles.NewTrack()
	track.Add(cue(0, 1000, "in memory"))
	sync := playback.NewSynchronizer(clock, track, nil, playback.Options{RefreshEvery: 1, Transcript: transcript}, nil)

	holder := flock.New(transcript.LockPath())
	if err := holder.Lock(); err != nil {
		t.Fatalf("hold lock: %v", err)
	}
	res := sync.Tick(context.Background())
	if res.Refreshed {
		t.Fatal("expected refresh to be skipped while the transcript is locked")
	}
	if got, ok := track.At(0); track.Len() != 1 || !ok || got.Text != "in memory" {
		t.Fatalf("track changed during a locked refresh: len=%d cue=%+v", track.Len(), got)
	}
	if res.Text != "in memory" {
		t.Fatalf("expected in-memory cue on display, got %q", res.Text)
	}

	if err := holder.Unlock(); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	if res := sync.Tick(context.Background()); !res.Refreshed {
		t.Fatal("expected refresh once the lock is released")
	}
	if got, ok := track.At(0); !ok || got.Text != "on disk" {
		t.Fatalf("expected transcript cue after refresh, got %+v", got)
	}
}
