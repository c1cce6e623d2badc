// Package subtitles holds the subtitle cue model shared by the pipeline and
// the playback synchronizer.
//
// It provides SRT formatting and parsing (including the legacy
// "[start - end] text" line format written by older workers), the Track that
// owns cues until their window has passed, and TranscriptFile, the
// flock-guarded transcription.srt that a running task appends to while a
// player refreshes from it.
package subtitles
