// Package preflight provides readiness checks for the sidecars, binaries
// and directories livesub depends on.
//
// The daemon runs RunAll at startup and logs failures without refusing to
// start, since sidecars often come up after it. The CLI "livesub status"
// command renders the same results as a table.
//
// Each check is gated by configuration: a disabled translator is skipped.
package preflight
