package api

import (
	"livesub/internal/workflow"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Terminal stream statuses.
const (
	StreamCompleted = "completed"
	StreamError     = "error"
	StreamCancelled = "cancelled"
)

// CuePayload is the stream line for one subtitle cue.
type CuePayload struct {
	Index  int     `json:"index"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
}

// StatusPayload is the terminal stream line.
type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// MessageResponse wraps a human readable acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// TaskView describes a task in a transport-friendly format.
type TaskView struct {
	ID           string  `json:"id"`
	FileName     string  `json:"fileName"`
	Status       string  `json:"status"`
	Translate    bool    `json:"translate"`
	StartFrom    float64 `json:"startFrom"`
	CuesEmitted  int     `json:"cuesEmitted"`
	Position     float64 `json:"position"`
	Fingerprint  string  `json:"fingerprint,omitempty"`
	WorkDir      string  `json:"workDir,omitempty"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	CreatedAt    string  `json:"createdAt,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
	FinishedAt   string  `json:"finishedAt,omitempty"`
}

// TaskListResponse wraps a collection of tasks.
type TaskListResponse struct {
	Tasks []TaskView `json:"tasks"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task TaskView `json:"task"`
}

// StageHealth mirrors readiness reporting for pipeline stages and sidecars.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes task execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Active      int            `json:"active"`
	Capacity    int            `json:"capacity"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// FromStatusSummary converts workflow diagnostics to the API shape.
func FromStatusSummary(summary workflow.StatusSummary, health []workflow.StageHealth) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		Active:      summary.Active,
		Capacity:    summary.Capacity,
		LastError:   summary.LastError,
		QueueStats:  make(map[string]int, len(summary.QueueStats)),
		StageHealth: make([]StageHealth, 0, len(health)),
	}
	for k, v := range summary.QueueStats {
		status.QueueStats[string(k)] = v
	}
	for _, h := range health {
		status.StageHealth = append(status.StageHealth, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return status
}
