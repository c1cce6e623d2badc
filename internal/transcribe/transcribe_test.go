package transcribe_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"livesub/internal/audio"
	"livesub/internal/config"
	"livesub/internal/services"
	"livesub/internal/services/whisper"
	"livesub/internal/transcribe"
)

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func segment(index int, start, end time.Duration) audio.Segment {
	return audio.Segment{
		Index:      index,
		Start:      start,
		End:        end,
		Samples:    make([]float32, audio.DurationSamples(end-start, 16000)),
		SampleRate: 16000,
	}
}

func TestAlignOffsetsAndClips(t *testing.T) {
	seg := segment(3, 10*time.Second, 15*time.Second)
	spans := []transcribe.Span{
		{Start: 0, End: ms(1500), Text: " first "},
		{Start: ms(1500), End: ms(1500), Text: "zero length"},
		{Start: ms(2000), End: ms(3000), Text: "   "},
		{Start: ms(4000), End: ms(7000), Text: "overruns"},
		{Start: ms(6000), End: ms(8000), Text: "after end"},
	}
	got := transcribe.Align(seg, spans, 7)
	if len(got) != 2 {
		t.Fatalf("expected 2 aligned segments, got %+v", got)
	}
	if got[0].Start != 10*time.Second || got[0].End != ms(11500) || got[0].Text != "first" || got[0].Index != 7 || got[0].Chunk != 3 {
		t.Fatalf("unexpected first segment: %+v", got[0])
	}
	if got[1].End != 15*time.Second || got[1].Index != 8 {
		t.Fatalf("expected clipped second segment, got %+v", got[1])
	}
}

type fakeBackend struct {
	spans map[int][]transcribe.Span
	err   error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Transcribe(_ context.Context, seg audio.Segment) ([]transcribe.Span, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.spans[seg.Index], nil
}

func TestWorkerRunNumbersAcrossSegments(t *testing.T) {
	backend := &fakeBackend{spans: map[int][]transcribe.Span{
		0: {{Start: 0, End: ms(900), Text: "a"}, {Start: ms(1000), End: ms(1900), Text: "b"}},
		1: {{Start: 0, End: ms(500), Text: "c"}},
	}}
	var observed int
	worker := transcribe.NewWorker(backend, nil, transcribe.WithObserver(func(context.Context, audio.Segment, time.Duration) {
		observed++
	}))

	in := make(chan audio.Segment, 2)
	out := make(chan transcribe.Segment, 8)
	in <- segment(0, 0, 2*time.Second)
	in <- segment(1, 2*time.Second, 4*time.Second)
	close(in)

	if err := worker.Run(context.Background(), in, out); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	var got []transcribe.Segment
	for seg := range out {
		got = append(got, seg)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(got))
	}
	if got[2].Index != 2 || got[2].Start != 2*time.Second || got[2].Chunk != 1 {
		t.Fatalf("unexpected last segment %+v", got[2])
	}
	if observed != 2 {
		t.Fatalf("expected observer per segment, got %d", observed)
	}
}

func TestWorkerWrapsBackendFailure(t *testing.T) {
	worker := transcribe.NewWorker(&fakeBackend{err: errors.New("model crashed")}, nil)
	_, err := worker.Process(context.Background(), segment(0, 0, time.Second))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestWorkerReturnsContextErrorOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	worker := transcribe.NewWorker(&fakeBackend{err: context.Canceled}, nil)
	_, err := worker.Process(ctx, segment(0, 0, time.Second))
	if !errors.Is(err, context.Canceled) || errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected bare cancellation, got %v", err)
	}
}

func TestHTTPBackendUsesSidecar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"segments":[{"text":"hello","start":0.25,"end":1.0}]}`))
	}))
	defer server.Close()

	backend := transcribe.NewHTTPBackend(whisper.NewClient(whisper.ClientConfig{BaseURL: server.URL}))
	spans, err := backend.Transcribe(context.Background(), segment(0, 0, time.Second))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(spans) != 1 || spans[0].Start != ms(250) || spans[0].End != time.Second {
		t.Fatalf("unexpected spans %+v", spans)
	}
}

type fakeCLI struct {
	seenPath string
	existed  bool
}

func (f *fakeCLI) Transcribe(_ context.Context, wavPath string) (whisper.Result, error) {
	f.seenPath = wavPath
	_, err := os.Stat(wavPath)
	f.existed = err == nil
	return whisper.Result{Segments: []whisper.Segment{{Text: "hi", Start: 0, End: 0.5}}}, nil
}

func TestCommandBackendWritesAndRemovesWAV(t *testing.T) {
	cli := &fakeCLI{}
	backend := transcribe.NewCommandBackend(cli, t.TempDir())
	spans, err := backend.Transcribe(context.Background(), segment(12, 0, time.Second))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if !cli.existed {
		t.Fatal("expected WAV file to exist while the CLI runs")
	}
	if _, err := os.Stat(cli.seenPath); !os.IsNotExist(err) {
		t.Fatalf("expected WAV removed afterwards, stat err=%v", err)
	}
	if len(spans) != 1 || spans[0].End != ms(500) {
		t.Fatalf("unexpected spans %+v", spans)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default()
	backend, err := transcribe.New(&cfg, t.TempDir())
	if err != nil || backend.Name() != config.TranscriptionWhisperHTTP {
		t.Fatalf("expected default http backend, got %v %v", backend, err)
	}
	cfg.Transcription.Backend = config.TranscriptionCommand
	backend, err = transcribe.New(&cfg, t.TempDir())
	if err != nil || backend.Name() != config.TranscriptionCommand {
		t.Fatalf("expected command backend, got %v %v", backend, err)
	}
	cfg.Transcription.Backend = "vosk"
	if _, err := transcribe.New(&cfg, ""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
