package pipeline

import "livesub/internal/subtitles"

// EventKind classifies pipeline events.
type EventKind int

const (
	// EventCue carries one translated cue.
	EventCue EventKind = iota
	// EventCompleted is the terminal event of a run that drained its input.
	EventCompleted
	// EventError is the terminal event of a run stopped by a stage failure.
	EventError
	// EventCancelled is the terminal event of a run whose context was cancelled.
	EventCancelled
)

// String returns the wire name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventCue:
		return "cue"
	case EventCompleted:
		return "completed"
	case EventError:
		return "error"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event is one item on a run's output stream.
type Event struct {
	Kind EventKind
	Cue  subtitles.Cue
	Err  error
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind != EventCue
}
