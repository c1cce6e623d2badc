package ffprobe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tcolgate/mp3"
)

// Info is the subset of probe output livesub acts on.
type Info struct {
	Duration    time.Duration
	Width       int
	Height      int
	BitRate     int64
	AudioTracks int
	Fingerprint string
	Streams     []Stream
}

// Probe inspects path and falls back to MP3 frame counting when ffprobe is
// unavailable or cannot determine the duration of an .mp3 file.
func Probe(ctx context.Context, binary, path string) (Info, error) {
	result, err := Inspect(ctx, binary, path)
	isMP3 := strings.EqualFold(filepath.Ext(path), ".mp3")
	if err != nil && !isMP3 {
		return Info{}, err
	}
	info := Info{
		Duration:    result.Duration(),
		BitRate:     result.BitRate(),
		AudioTracks: len(result.AudioStreams()),
		Streams:     result.Streams,
	}
	info.Width, info.Height = result.VideoSize()
	if info.Duration == 0 && isMP3 {
		duration, mp3Err := MP3Duration(path)
		if mp3Err != nil {
			if err != nil {
				return Info{}, errors.Join(err, mp3Err)
			}
			return Info{}, mp3Err
		}
		info.Duration = duration
		if info.AudioTracks == 0 {
			info.AudioTracks = 1
		}
	}
	info.Fingerprint = Fingerprint(info.Duration.Seconds(), info.Width, info.Height, info.BitRate)
	return info, nil
}

// MP3Duration sums frame durations of an MP3 file.
func MP3Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d := mp3.NewDecoder(f)
	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
		frames  int
	)
	for {
		if err := d.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames > 0 && errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, fmt.Errorf("decode mp3 frame %d: %w", frames, err)
		}
		total += frame.Duration()
		frames++
	}
	if frames == 0 {
		return 0, errors.New("decode mp3: no frames")
	}
	return total, nil
}

// Fingerprint hashes the media shape into 16 hex characters.
func Fingerprint(durationSeconds float64, width, height int, bitRate int64) string {
	raw := fmt.Sprintf("%g-%d-%d-%d", durationSeconds, width, height, bitRate)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}
