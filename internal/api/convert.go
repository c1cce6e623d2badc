package api

import (
	"math"
	"time"

	"livesub/internal/pipeline"
	"livesub/internal/queue"
	"livesub/internal/services"
	"livesub/internal/subtitles"
	"livesub/internal/workflow"
)

// Seconds converts a duration to seconds rounded to the millisecond.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

// Duration converts wire seconds back to a duration.
func Duration(seconds float64) time.Duration {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

// FromCue converts a subtitle cue to its stream line.
func FromCue(cue subtitles.Cue) CuePayload {
	return CuePayload{
		Index:  cue.Index,
		Start:  Seconds(cue.Start),
		End:    Seconds(cue.End),
		Text:   cue.Text,
		Source: cue.Source,
	}
}

// FromEvent converts a pipeline event to the value written on the stream:
// a CuePayload for cues, a StatusPayload for terminal events.
func FromEvent(ev pipeline.Event) any {
	switch ev.Kind {
	case pipeline.EventCue:
		return FromCue(ev.Cue)
	case pipeline.EventCompleted:
		return StatusPayload{Status: StreamCompleted}
	case pipeline.EventCancelled:
		return StatusPayload{Status: StreamCancelled, Message: workflow.CancelledMessage}
	default:
		return ErrorStatus(ev.Err)
	}
}

// ErrorStatus builds the terminal line for a failed run.
func ErrorStatus(err error) StatusPayload {
	payload := StatusPayload{Status: StreamError, Message: "task failed"}
	if err != nil {
		payload.Message = err.Error()
		payload.Kind = services.Kind(err)
	}
	return payload
}

// FromTask converts a queue record to its API representation.
func FromTask(task *queue.Task) TaskView {
	if task == nil {
		return TaskView{}
	}
	view := TaskView{
		ID:           task.ID,
		FileName:     task.FileName,
		Status:       string(task.Status),
		Translate:    task.Translate,
		StartFrom:    Seconds(task.StartFrom),
		CuesEmitted:  task.CuesEmitted,
		Position:     Seconds(task.Position),
		Fingerprint:  task.Fingerprint,
		WorkDir:      task.WorkDir,
		ErrorMessage: task.ErrorMessage,
	}
	if !task.CreatedAt.IsZero() {
		view.CreatedAt = task.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !task.UpdatedAt.IsZero() {
		view.UpdatedAt = task.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if task.FinishedAt != nil {
		view.FinishedAt = task.FinishedAt.UTC().Format(dateTimeFormat)
	}
	return view
}

// FromTasks converts a task list, preserving order.
func FromTasks(tasks []*queue.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		if task == nil {
			continue
		}
		views = append(views, FromTask(task))
	}
	return views
}

// ParseTime parses an API timestamp. Empty or malformed values yield the
// zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
