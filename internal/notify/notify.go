// Package notify translates task status transitions into user-visible
// notifications. Dispatchers do not deduplicate; at-most-once delivery per
// (task, status) is the status poller's responsibility.
package notify

import (
	"log"
	"time"

	"github.com/nadmax/profiledash/internal/metrics"
	"github.com/nadmax/profiledash/internal/task"
)

// Toast display durations, per notification kind.
const (
	PendingDuration   = 3 * time.Second
	RunningDuration   = 5 * time.Second
	CompletedDuration = 5 * time.Second
	FailedDuration    = 10 * time.Second
)

// Notifier renders exactly one notification per call. NotifyCompleted and
// NotifyFailed carry an action callback; implementations decide whether the
// action fires immediately or on user interaction.
type Notifier interface {
	NotifyPending(taskType task.TaskType)
	NotifyRunning(taskType task.TaskType, message string)
	NotifyCompleted(taskType task.TaskType, onComplete func())
	NotifyFailed(taskType task.TaskType, errMsg string, onError func(string))
}

func typeLabel(t task.TaskType) string {
	switch t {
	case task.TypeExtraction:
		return "Validation extraction"
	case task.TypeAugmentation:
		return "Dataset augmentation"
	default:
		return "Task"
	}
}

// LogNotifier renders notifications on the process log. Action callbacks run
// immediately, there being no interactive surface to defer them to.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) NotifyPending(taskType task.TaskType) {
	log.Printf("[notify] %s queued", typeLabel(taskType))
	metrics.RecordNotification(string(task.StatusPending))
}

func (n *LogNotifier) NotifyRunning(taskType task.TaskType, message string) {
	if message == "" {
		message = "Processing..."
	}
	log.Printf("[notify] %s in progress: %s", typeLabel(taskType), message)
	metrics.RecordNotification(string(task.StatusRunning))
}

func (n *LogNotifier) NotifyCompleted(taskType task.TaskType, onComplete func()) {
	log.Printf("[notify] %s completed", typeLabel(taskType))
	metrics.RecordNotification(string(task.StatusCompleted))
	if onComplete != nil {
		onComplete()
	}
}

func (n *LogNotifier) NotifyFailed(taskType task.TaskType, errMsg string, onError func(string)) {
	if errMsg == "" {
		errMsg = "unknown error"
	}
	log.Printf("[notify] %s failed: %s", typeLabel(taskType), errMsg)
	metrics.RecordNotification(string(task.StatusFailed))
	if onError != nil {
		onError(errMsg)
	}
}

// MultiNotifier fans one notification out to several dispatchers.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (m *MultiNotifier) NotifyPending(taskType task.TaskType) {
	for _, n := range m.notifiers {
		n.NotifyPending(taskType)
	}
}

func (m *MultiNotifier) NotifyRunning(taskType task.TaskType, message string) {
	for _, n := range m.notifiers {
		n.NotifyRunning(taskType, message)
	}
}

func (m *MultiNotifier) NotifyCompleted(taskType task.TaskType, onComplete func()) {
	for _, n := range m.notifiers {
		n.NotifyCompleted(taskType, onComplete)
	}
}

func (m *MultiNotifier) NotifyFailed(taskType task.TaskType, errMsg string, onError func(string)) {
	for _, n := range m.notifiers {
		n.NotifyFailed(taskType, errMsg, onError)
	}
}
