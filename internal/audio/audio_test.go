package audio_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"livesub/internal/audio"
	"livesub/internal/services"
)

type memorySource struct {
	data       []byte
	sampleRate int
	openedAt   time.Duration
}

func (m *memorySource) Open(_ context.Context, from time.Duration) (io.ReadCloser, error) {
	m.openedAt = from
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

func TestDecodePCM16(t *testing.T) {
	raw := []byte{0x00, 0x40, 0x00, 0xC0, 0xFF, 0x7F, 0x00, 0x80, 0x01}
	got := audio.DecodePCM16(raw)
	want := []float32{0.5, -0.5, 32767.0 / 32768.0, -1}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	var buf bytes.Buffer
	samples := []float32{0, 0.5, -0.5, 2}
	if err := audio.EncodeWAV(&buf, samples, 16000); err != nil {
		t.Fatalf("EncodeWAV returned error: %v", err)
	}
	data := buf.Bytes()
	if len(data) != 44+len(samples)*2 {
		t.Fatalf("unexpected wav length %d", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("unexpected wav header %q", data[:44])
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", rate)
	}
	if last := int16(binary.LittleEndian.Uint16(data[50:52])); last != 32767 {
		t.Fatalf("expected clamped sample, got %d", last)
	}
	if err := audio.EncodeWAV(&buf, samples, 0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestExtractorFramesTimeline(t *testing.T) {
	const rate = 1000
	samples := make([]float32, 250)
	for i := range samples {
		samples[i] = 0.25
	}
	src := &memorySource{data: audio.EncodePCM16(samples), sampleRate: rate}
	extractor := audio.NewExtractor(src, rate, 100*time.Millisecond, nil)

	out := make(chan audio.Frame, 8)
	from := 5 * time.Second
	if err := extractor.Run(context.Background(), from, out); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if src.openedAt != from {
		t.Fatalf("expected source opened at %v, got %v", from, src.openedAt)
	}

	var frames []audio.Frame
	for f := range out {
		frames = append(frames, f)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if frames[1].Start != from+100*time.Millisecond {
		t.Fatalf("unexpected second frame start %v", frames[1].Start)
	}
	if len(frames[2].Samples) != 50 {
		t.Fatalf("expected trailing partial frame of 50 samples, got %d", len(frames[2].Samples))
	}
}

func TestExtractorStopsOnCancel(t *testing.T) {
	src := &memorySource{data: make([]byte, 16000*2)}
	extractor := audio.NewExtractor(src, 16000, 100*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan audio.Frame)
	err := extractor.Run(ctx, 0, out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, ok := <-out; ok {
		t.Fatal("expected output channel closed")
	}
}

func TestFFmpegSourceArgs(t *testing.T) {
	src := audio.NewFFmpegSource("", "/media/film.mkv", 16000)
	src.StreamIndex = 1
	args := strings.Join(src.Args(90*time.Second), " ")
	for _, fragment := range []string{"-ss 90.000", "-i /media/film.mkv", "-map 0:a:1", "-ac 1", "-ar 16000", "-f s16le", "pipe:1"} {
		if !strings.Contains(args, fragment) {
			t.Fatalf("expected %q in %q", fragment, args)
		}
	}
	if strings.Contains(strings.Join(src.Args(0), " "), "-ss") {
		t.Fatal("expected no seek argument at zero offset")
	}
}

func TestFFmpegSourceStreamsStubOutput(t *testing.T) {
	binary := writeStub(t, "#!/bin/sh\nprintf '\\000\\100\\000\\300'\n")
	src := audio.NewFFmpegSource(binary, "input.mkv", 16000)
	extractor := audio.NewExtractor(src, 16000, 100*time.Millisecond, nil)

	out := make(chan audio.Frame, 4)
	if err := extractor.Run(context.Background(), 0, out); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	frame, ok := <-out
	if !ok || len(frame.Samples) != 2 || frame.Samples[0] != 0.5 || frame.Samples[1] != -0.5 {
		t.Fatalf("unexpected frame %+v", frame)
	}
}

func TestFFmpegSourceReportsExitFailure(t *testing.T) {
	binary := writeStub(t, "#!/bin/sh\necho 'input.mkv: No such file' >&2\nexit 3\n")
	src := audio.NewFFmpegSource(binary, "input.mkv", 16000)
	extractor := audio.NewExtractor(src, 16000, 100*time.Millisecond, nil)

	err := extractor.Run(context.Background(), 0, make(chan audio.Frame, 1))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "No such file") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
}

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}
