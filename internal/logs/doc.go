// Package logs tails the daemon log for `livesub logs`.
//
// Tail prints the last lines of a file and, in follow mode, polls for
// appended lines. The daemon's livesub.log is a symlink that moves to a new
// per-run file on every restart; followers notice the swap and start over at
// the beginning of the new file, and a truncated file is read from the start.
package logs
