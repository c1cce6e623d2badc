// Package whisper talks to speech-to-text engines.
//
// Two engines are supported:
//   - Client: a faster-whisper HTTP sidecar (POST /transcribe with a WAV
//     upload, GET /health), retried on transient failures
//   - CLI: the whisper.cpp command-line tool, invoked once per WAV file with
//     JSON output that LoadSegments parses
//
// Both return segment-relative spans in seconds; callers place them on the
// playback timeline.
package whisper
