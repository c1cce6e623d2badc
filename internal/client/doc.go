// Package client talks to a running livesub daemon over its HTTP API.
//
// Transcribe streams a local file to POST /transcribe without buffering it
// in memory and delivers cues as they arrive. Cancelling the context aborts
// the request, which the daemon treats as a cancel of the task.
package client
