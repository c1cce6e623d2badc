package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"livesub/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("expected only the required missing binary, got %#v", missing)
	}
}

func TestRequirementsFollowBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.Backend = config.TranscriptionWhisperHTTP
	if got := len(Requirements(&cfg)); got != 2 {
		t.Fatalf("expected ffmpeg and ffprobe only, got %d", got)
	}
	cfg.Transcription.Backend = config.TranscriptionCommand
	reqs := Requirements(&cfg)
	if len(reqs) != 3 || reqs[2].Command != cfg.Transcription.Binary {
		t.Fatalf("expected whisper requirement, got %#v", reqs)
	}
}

func TestResolveFFprobeSibling(t *testing.T) {
	tmp := t.TempDir()
	script := []byte("#!/bin/sh\nexit 0\n")
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	ffprobePath := filepath.Join(tmp, executableName("ffprobe"))
	if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	if err := os.WriteFile(ffprobePath, script, 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}

	if got := ResolveFFprobe("", ffmpegPath); got != ffprobePath {
		t.Fatalf("expected sibling %q, got %q", ffprobePath, got)
	}
	if got := ResolveFFprobe("ffprobe", ffmpegPath); got != ffprobePath {
		t.Fatalf("expected default name to resolve sibling, got %q", got)
	}
}

func TestResolveFFprobeExplicit(t *testing.T) {
	if got := ResolveFFprobe("/opt/ff/ffprobe", "ffmpeg"); got != "/opt/ff/ffprobe" {
		t.Fatalf("expected explicit binary, got %q", got)
	}
}

func TestResolveFFprobeFallback(t *testing.T) {
	t.Setenv("PATH", "")
	if got := ResolveFFprobe("", "ffmpeg"); got != "ffprobe" {
		t.Fatalf("expected PATH fallback, got %q", got)
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
