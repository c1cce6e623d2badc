// Package daemon coordinates the long-running livesub process.
//
// It wires configuration, the task store and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances,
// and serves the HTTP API: uploads that stream cues back as NDJSON, task
// cancel/cleanup, task listings and a status summary.
//
// Keep orchestration here. Pipeline stages live in their own packages; the
// daemon only owns startup, shutdown and the transport.
package daemon
