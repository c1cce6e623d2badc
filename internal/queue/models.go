package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// DaemonStopReason is the error message set when tasks are failed due to
// daemon shutdown.
const DaemonStopReason = "Daemon stopped"

// StaleReason is the error message set when a running task's heartbeat
// expired.
const StaleReason = "Task heartbeat expired"

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts user input to a Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether no further transitions happen from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Task is one transcription request tracked by the daemon.
type Task struct {
	ID            string
	SourcePath    string
	FileName      string
	Fingerprint   string
	WorkDir       string
	Status        Status
	StartFrom     time.Duration
	Translate     bool
	CuesEmitted   int
	Position      time.Duration
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	FinishedAt    *time.Time
	LastHeartbeat *time.Time
}

// IsProcessing reports whether the task is actively running.
func (t Task) IsProcessing() bool {
	return t.Status == StatusRunning
}

// NewTaskParams describes a task to insert.
type NewTaskParams struct {
	ID          string
	SourcePath  string
	FileName    string
	Fingerprint string
	WorkDir     string
	StartFrom   time.Duration
	Translate   bool
}

// HealthSummary aggregates task counts for diagnostics.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Failed    int
	Cancelled int
	Completed int
}

// DatabaseHealth describes the queue database for status output.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	TotalTasks       int
	IntegrityCheck   bool
	Error            string
}
