// Package workflow runs transcription tasks on behalf of the daemon.
//
// The Manager persists every submitted task in the queue store, limits how
// many pipelines run at once, and hands each caller a Handle whose bounded
// event channel carries the task's cues followed by exactly one terminal
// event. While a task runs its heartbeat is refreshed so a crashed daemon's
// leftovers can be reclaimed, its cues are appended to the task's SRT
// transcript, and progress counters are written back to the store.
//
// Cancel and Cleanup mirror the daemon's HTTP surface: Cancel stops a running
// task, Cleanup stops it and removes its work directory and record.
// Uploads whose media fingerprint matches a completed full-length task are
// served from that task's transcript instead of running the pipeline again.
package workflow
