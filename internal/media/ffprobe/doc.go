// Package ffprobe inspects uploaded media through ffprobe's JSON output.
//
// Inspect returns the parsed streams and container format. Probe layers the
// fallbacks livesub needs on top: MP3 uploads that ffprobe cannot time are
// measured by counting frames, and every probe yields a short fingerprint
// derived from duration, frame size and bitrate so repeated uploads of the
// same media map to the same work directory.
package ffprobe
