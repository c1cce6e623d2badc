// Package transcribe converts audio segments into timed source-language text.
//
// A Backend recognises one segment and returns spans relative to the segment
// start. The Worker places those spans on the playback timeline, clips them to
// the segment bounds, and drops spans that end up empty. Backends exist for
// the faster-whisper HTTP sidecar and the whisper.cpp CLI; New picks one from
// configuration.
package transcribe
