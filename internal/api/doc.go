// Package api defines wire-format types and converters shared by the daemon
// HTTP server and its clients.
//
// # Stream Lines
//
// POST /transcribe answers with newline-delimited JSON. Cue lines carry
// index, start, end (seconds), text and source. The stream ends with exactly
// one status line: completed, error or cancelled. StreamLine decodes either
// shape; DecodeStream walks a response body line by line.
//
// # Task Views
//
// TaskView is the transport form of a queue.Task. Status and durations are
// flattened to strings and seconds; timestamps use RFC3339 with milliseconds.
//
// DaemonStatus aggregates lock, queue and workflow health for `livesub status`.
package api
