package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"livesub/internal/services"
	"livesub/internal/subtitles"
)

// ErrStreamTruncated is returned when a stream ends without a status line.
var ErrStreamTruncated = errors.New("stream ended without a status line")

const maxStreamLine = 1 << 20

// StreamLine decodes either a cue line or a terminal status line.
type StreamLine struct {
	Index   *int    `json:"index,omitempty"`
	Start   float64 `json:"start,omitempty"`
	End     float64 `json:"end,omitempty"`
	Text    string  `json:"text,omitempty"`
	Source  string  `json:"source,omitempty"`
	Status  string  `json:"status,omitempty"`
	Message string  `json:"message,omitempty"`
	Kind    string  `json:"kind,omitempty"`
}

// IsTerminal reports whether the line is a status line.
func (l StreamLine) IsTerminal() bool {
	return l.Status != ""
}

// Cue returns the cue carried by a cue line.
func (l StreamLine) Cue() subtitles.Cue {
	cue := subtitles.Cue{
		Start:  Duration(l.Start),
		End:    Duration(l.End),
		Text:   l.Text,
		Source: l.Source,
	}
	if l.Index != nil {
		cue.Index = *l.Index
	}
	return cue
}

// Err converts a terminal line to an error. Completed lines and cue lines
// yield nil.
func (l StreamLine) Err() error {
	switch l.Status {
	case "", StreamCompleted:
		return nil
	case StreamCancelled:
		msg := l.Message
		if msg == "" {
			msg = "task cancelled"
		}
		return fmt.Errorf("%w: %s", services.ErrCancelled, msg)
	default:
		msg := l.Message
		if msg == "" {
			msg = "task failed"
		}
		return fmt.Errorf("%w: %s", MarkerForKind(l.Kind), msg)
	}
}

// DecodeStream reads NDJSON lines from r and hands each to fn until a status
// line is seen. It returns the status line's error, fn's error, or
// ErrStreamTruncated when r ends first.
func DecodeStream(r io.Reader, fn func(StreamLine) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line StreamLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return fmt.Errorf("decode stream line: %w", err)
		}
		if fn != nil {
			if err := fn(line); err != nil {
				return err
			}
		}
		if line.IsTerminal() {
			return line.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return ErrStreamTruncated
}

// MarkerForKind maps an error kind from an API payload back to its
// services sentinel.
func MarkerForKind(kind string) error {
	switch kind {
	case "validation":
		return services.ErrValidation
	case "configuration":
		return services.ErrConfiguration
	case "not_found":
		return services.ErrNotFound
	case "timeout":
		return services.ErrTimeout
	case "cancelled":
		return services.ErrCancelled
	case "external_tool":
		return services.ErrExternalTool
	default:
		return services.ErrTransient
	}
}
