// Package playback keeps subtitles in step with a playing video.
//
// Clock is the player's position as seen by livesub; the synchronizer reads it
// on every tick and only ever pauses or resumes it, never waits on it.
// SimulatedClock stands in for a real player in the CLI and in tests.
//
// The Synchronizer shows the cue covering the current position, holds
// playback while transcription has not yet caught up, and optionally
// refreshes its track from a task's transcript file.
package playback
