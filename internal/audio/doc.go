// Package audio pulls decoded PCM from media files and frames it against the
// playback timeline.
//
// Source abstracts where raw s16le mono audio comes from; FFmpegSource is the
// production implementation and decodes any container ffmpeg understands.
// Extractor turns that byte stream into fixed-duration Frames stamped with
// their absolute playback position. Segment is the immutable unit the chunker
// hands to transcription; EncodeWAV serialises one for file-based backends.
package audio
