package subtitles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// TranscriptFileName is the SRT written into each task work directory.
const TranscriptFileName = "transcription.srt"

// ErrLockTimeout is returned when the transcript lock could not be acquired
// within the configured timeout.
var ErrLockTimeout = errors.New("transcript lock timeout")

const lockRetryDelay = 10 * time.Millisecond

// TranscriptFile is an append-only SRT file shared between a writer (the
// running task) and readers (players refreshing their track). Every access
// holds an advisory lock on "<path>.lock".
type TranscriptFile struct {
	path        string
	lockTimeout time.Duration
}

// NewTranscriptFile returns a handle for path. lockTimeout bounds how long
// Load waits for the lock; zero means 500ms.
func NewTranscriptFile(path string, lockTimeout time.Duration) *TranscriptFile {
	if lockTimeout <= 0 {
		lockTimeout = 500 * time.Millisecond
	}
	return &TranscriptFile{path: path, lockTimeout: lockTimeout}
}

// Path returns the SRT path.
func (f *TranscriptFile) Path() string { return f.path }

// LockPath returns the path of the advisory lock file.
func (f *TranscriptFile) LockPath() string { return f.path + ".lock" }

func (f *TranscriptFile) lock(ctx context.Context) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure transcript dir: %w", err)
	}
	fl := flock.New(f.LockPath())
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, f.LockPath())
		}
		return nil, fmt.Errorf("lock transcript: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, f.LockPath())
	}
	return fl, nil
}

// Append writes cue as the next SRT block. It waits for the lock until ctx is
// done.
func (f *TranscriptFile) Append(ctx context.Context, cue Cue) error {
	fl, err := f.lock(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = fl.Unlock() }()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	if _, err := file.WriteString(FormatCue(cue)); err != nil {
		_ = file.Close()
		return fmt.Errorf("write transcript: %w", err)
	}
	return file.Close()
}

// Load parses the transcript under the lock, giving up with ErrLockTimeout
// after the lock timeout. A missing file yields no cues and no error.
func (f *TranscriptFile) Load(ctx context.Context) ([]Cue, error) {
	if _, err := os.Stat(f.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat transcript: %w", err)
	}
	lockCtx, cancel := context.WithTimeout(ctx, f.lockTimeout)
	defer cancel()
	fl, err := f.lock(lockCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fl.Unlock() }()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	cues, _ := ParseAny(string(data))
	return cues, nil
}

// Truncate empties the transcript, e.g. when a seek restarts transcription.
func (f *TranscriptFile) Truncate(ctx context.Context) error {
	fl, err := f.lock(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = fl.Unlock() }()
	if err := os.WriteFile(f.path, nil, 0o644); err != nil {
		return fmt.Errorf("truncate transcript: %w", err)
	}
	return nil
}
