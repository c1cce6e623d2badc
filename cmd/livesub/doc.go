// Command livesub runs the live subtitle pipeline locally, simulates
// playback against it, evaluates translation quality, and manages a running
// livesubd daemon over its HTTP API.
package main
