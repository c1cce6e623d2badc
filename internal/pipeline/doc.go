// Package pipeline wires the audio, chunker, transcription and translation
// stages into one cancellable run.
//
// Each stage runs in its own goroutine and owns the channel it writes to.
// Channels are bounded so a slow consumer applies backpressure all the way to
// ffmpeg. Run reports progress as a stream of Events that always ends with
// exactly one terminal event (completed, error or cancelled) before the
// channel is closed.
//
// Session layers seek semantics on top: every Start or Seek begins a new
// generation, and events from superseded generations are discarded before
// they reach the subtitle track.
package pipeline
