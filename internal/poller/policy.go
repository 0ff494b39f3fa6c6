// Package poller implements the adaptive polling clients that keep task
// status and task logs fresh while a task appears active. The decision of
// whether and when to poll again is separated into pure policy functions so
// the timer loops stay trivial.
package poller

import (
	"time"

	"github.com/nadmax/profiledash/internal/task"
)

const (
	// DefaultInterval is the re-fetch cadence while a task appears active.
	DefaultInterval = 2 * time.Second

	// LogRecencyWindow is how recent the newest log entry must be for the
	// log poller to infer the task is still producing output.
	LogRecencyWindow = 60 * time.Second

	// LogStaleAfter is how long a fetched log page stays fresh; repeated
	// fetches inside this window are served from the last result.
	LogStaleAfter = time.Second
)

// StatusPollDelay decides the next status fetch from the last successful
// result. It returns false once the task reached a terminal status; before
// any successful fetch (last == nil) polling continues, since there is no
// evidence the task finished.
func StatusPollDelay(last *task.Status, interval time.Duration) (time.Duration, bool) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if last == nil {
		return interval, true
	}
	if last.Status.Active() {
		return interval, true
	}
	return 0, false
}

// LogPollDelay decides the next log fetch from the last successful page: it
// keeps polling only while some entry's timestamp falls inside the recency
// window, inferring "task likely still running" from log output rather than
// from task status.
func LogPollDelay(last *task.LogsPage, now time.Time, interval time.Duration) (time.Duration, bool) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if last == nil {
		return interval, true
	}

	cutoff := now.Add(-LogRecencyWindow)
	for _, entry := range last.Logs {
		if entry.Time().After(cutoff) {
			return interval, true
		}
	}
	return 0, false
}

// NotificationKey identifies one (task, status) transition for at-most-once
// notification delivery.
func NotificationKey(taskID string, status task.TaskStatus) string {
	return taskID + "-" + string(status)
}
