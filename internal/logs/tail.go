package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	defaultPoll    = 250 * time.Millisecond
	maxLineBytes   = 1024 * 1024
	scanBufferSize = 64 * 1024
)

// Options controls Tail.
type Options struct {
	// Lines is how many existing lines to print first; zero prints none.
	Lines int
	// Follow keeps polling for new lines until ctx is done.
	Follow bool
	// Poll is the follow interval; zero means 250ms.
	Poll time.Duration
}

// Tail calls emit with the last opts.Lines lines of path and, when following,
// with every complete line appended afterwards. A missing file yields no lines
// unless following, in which case Tail waits for it to appear. Returning an
// error from emit stops the tail with that error.
func Tail(ctx context.Context, path string, opts Options, emit func(line string) error) error {
	lines, offset, info, err := readLast(path, opts.Lines)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := emit(line); err != nil {
			return err
		}
	}
	if !opts.Follow {
		return nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		current, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat log file: %w", err)
		}
		if info == nil || !os.SameFile(info, current) || current.Size() < offset {
			offset = 0
		}
		info = current
		if current.Size() == offset {
			continue
		}
		fresh, next, err := readFrom(path, offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range fresh {
			if err := emit(line); err != nil {
				return err
			}
		}
	}
}

// readLast returns up to limit trailing lines, the offset just past the last
// complete line, and the file identity.
func readLast(path string, limit int) ([]string, int64, os.FileInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil, nil
		}
		return nil, 0, nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, nil, fmt.Errorf("log path %q is a directory", path)
	}

	var (
		ring   []string
		next   int
		offset int64
	)
	if limit > 0 {
		ring = make([]string, 0, limit)
	}
	err = scanLines(file, func(line string, end int64) {
		offset = end
		if limit <= 0 {
			return
		}
		if len(ring) < limit {
			ring = append(ring, line)
			return
		}
		ring[next] = line
		next = (next + 1) % limit
	})
	if err != nil {
		return nil, 0, nil, err
	}
	lines := append(ring[next:len(ring):len(ring)], ring[:next]...)
	return lines, offset, info, nil
}

// readFrom returns the complete lines after offset and the offset just past
// the last of them. A trailing partial line is left for the next poll.
func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	end := offset
	err = scanLines(file, func(line string, n int64) {
		lines = append(lines, line)
		end = offset + n
	})
	if err != nil {
		return nil, offset, err
	}
	return lines, end, nil
}

// scanLines calls fn for every newline-terminated line in r with the byte
// count consumed through that line's newline.
func scanLines(r io.Reader, fn func(line string, consumed int64)) error {
	reader := bufio.NewReaderSize(r, scanBufferSize)
	var consumed int64
	for {
		chunk, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(chunk))
			line := chunk[:len(chunk)-1]
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			if len(line) > maxLineBytes {
				line = line[:maxLineBytes]
			}
			fn(line, consumed)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read log file: %w", err)
	}
}
