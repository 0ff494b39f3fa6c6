// Package task defines the domain model for asynchronous backend jobs:
// task types, statuses, progress snapshots and log entries.
package task

import (
	"encoding/json"
	"fmt"
	"time"
)

type (
	TaskStatus string
	TaskType   string
	LogLevel   string
)

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

const (
	TypeExtraction   TaskType = "extraction"
	TypeAugmentation TaskType = "augmentation"
)

const (
	LevelDebug   LogLevel = "DEBUG"
	LevelInfo    LogLevel = "INFO"
	LevelWarning LogLevel = "WARNING"
	LevelError   LogLevel = "ERROR"
	LevelSuccess LogLevel = "SUCCESS"
)

// Active reports whether a task in this status is still expected to make
// progress. Terminal statuses (completed, failed) are not active.
func (s TaskStatus) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// Terminal reports whether no further status changes are expected.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (t TaskType) Valid() bool {
	return t == TypeExtraction || t == TypeAugmentation
}

// The extraction and augmentation pipelines expose different URL templates
// on the backend; the type carries its own endpoints so call sites never
// re-derive them by string comparison.

// StatusPath returns the backend status endpoint for a task of this type.
func (t TaskType) StatusPath(taskID string) string {
	if t == TypeExtraction {
		return fmt.Sprintf("/extract/validation/%s/status", taskID)
	}
	return fmt.Sprintf("/generate/images/%s/status", taskID)
}

// LogsPath returns the backend log endpoint for a task of this type.
func (t TaskType) LogsPath(taskID string) string {
	if t == TypeExtraction {
		return fmt.Sprintf("/extract/validation/%s/logs", taskID)
	}
	return fmt.Sprintf("/generate/augmentation/%s/logs", taskID)
}

// StartPath returns the backend endpoint that creates a task of this type.
func (t TaskType) StartPath() string {
	if t == TypeExtraction {
		return "/extract/validation"
	}
	return "/generate/augmentation"
}

// Status is one observed snapshot of a task, as returned by the backend
// status endpoint. Progress is a fraction in [0, 1].
type Status struct {
	TaskID              string     `json:"task_id"`
	Status              TaskStatus `json:"status"`
	Progress            float64    `json:"progress"`
	CurrentStep         string     `json:"current_step"`
	TotalSteps          int        `json:"total_steps"`
	EstimatedCompletion string     `json:"estimated_completion,omitempty"`
	Error               string     `json:"error,omitempty"`
}

// NormalizeProgress coerces percentage-scaled progress values into the
// canonical [0, 1] fraction. Some backend flows report 0-100.
func (s *Status) NormalizeProgress() {
	if s.Progress > 1 {
		s.Progress = s.Progress / 100
	}
	if s.Progress < 0 {
		s.Progress = 0
	}
}

// LogEntry is one log line belonging to a task. Entries are immutable after
// insertion and unique per task by ID.
type LogEntry struct {
	ID         string         `json:"id"`
	TaskID     string         `json:"task_id"`
	Timestamp  string         `json:"timestamp"`
	Level      LogLevel       `json:"level"`
	Message    string         `json:"message"`
	Step       string         `json:"step,omitempty"`
	Progress   float64        `json:"progress,omitempty"`
	DurationMs int            `json:"duration_ms,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Time parses the entry timestamp. A zero time is returned for entries whose
// timestamp does not parse; callers treat those as arbitrarily old.
func (e LogEntry) Time() time.Time {
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// LogsPage is one page of a task's logs under the active filter.
type LogsPage struct {
	TaskID     string     `json:"task_id"`
	Logs       []LogEntry `json:"logs"`
	TotalLogs  int        `json:"total_logs"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// LogQuery carries pagination and filter parameters for a log fetch.
type LogQuery struct {
	Page     int
	PageSize int
	Level    LogLevel
	Search   string
}

func (q LogQuery) WithDefaults() LogQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 100
	}
	return q
}

func (s *Status) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func StatusFromJSON(data string) (*Status, error) {
	var s Status
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}

	return &s, nil
}
