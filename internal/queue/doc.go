// Package queue persists daemon transcription tasks in SQLite.
//
// The Store manages the database connection, schema initialization, status
// transitions, heartbeat tracking and stale-task recovery. A task records the
// uploaded media, its work directory, the playback offset it started from and
// how far it got, so the daemon can list, cancel and clean up tasks across
// restarts.
//
// The database is treated as transient storage for in-flight and recent
// tasks rather than a long-term archive. Schema changes bump the version in
// schema.go; users clear the database to adopt the new schema.
package queue
