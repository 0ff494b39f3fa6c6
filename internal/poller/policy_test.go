package poller

import (
	"testing"
	"time"

	"github.com/nadmax/profiledash/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestStatusPollDelay(t *testing.T) {
	tests := []struct {
		name      string
		last      *task.Status
		wantAgain bool
	}{
		{"no result yet", nil, true},
		{"pending", &task.Status{Status: task.StatusPending}, true},
		{"running", &task.Status{Status: task.StatusRunning}, true},
		{"completed", &task.Status{Status: task.StatusCompleted}, false},
		{"failed", &task.Status{Status: task.StatusFailed}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, again := StatusPollDelay(tt.last, DefaultInterval)
			assert.Equal(t, tt.wantAgain, again)
			if again {
				assert.Equal(t, 2*time.Second, delay)
			}
		})
	}
}

func TestLogPollDelayRecentLogsKeepPolling(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	page := &task.LogsPage{
		Logs: []task.LogEntry{
			{ID: "old", Timestamp: now.Add(-5 * time.Minute).Format(time.RFC3339)},
			{ID: "fresh", Timestamp: now.Add(-10 * time.Second).Format(time.RFC3339)},
		},
	}

	delay, again := LogPollDelay(page, now, DefaultInterval)
	assert.True(t, again)
	assert.Equal(t, 2*time.Second, delay)
}

func TestLogPollDelayStaleLogsStopPolling(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	page := &task.LogsPage{
		Logs: []task.LogEntry{
			{ID: "old", Timestamp: now.Add(-120 * time.Second).Format(time.RFC3339)},
		},
	}

	_, again := LogPollDelay(page, now, DefaultInterval)
	assert.False(t, again)
}

func TestLogPollDelayBoundary(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	inside := &task.LogsPage{Logs: []task.LogEntry{
		{ID: "a", Timestamp: now.Add(-59 * time.Second).Format(time.RFC3339)},
	}}
	_, again := LogPollDelay(inside, now, DefaultInterval)
	assert.True(t, again)

	outside := &task.LogsPage{Logs: []task.LogEntry{
		{ID: "a", Timestamp: now.Add(-61 * time.Second).Format(time.RFC3339)},
	}}
	_, again = LogPollDelay(outside, now, DefaultInterval)
	assert.False(t, again)
}

func TestLogPollDelayNoResultKeepsPolling(t *testing.T) {
	now := time.Now()

	_, again := LogPollDelay(nil, now, DefaultInterval)
	assert.True(t, again)
}

func TestLogPollDelayEmptyPageStopsPolling(t *testing.T) {
	now := time.Now()

	_, again := LogPollDelay(&task.LogsPage{}, now, DefaultInterval)
	assert.False(t, again)
}

func TestLogPollDelayUnparseableTimestampTreatedAsOld(t *testing.T) {
	now := time.Now()
	page := &task.LogsPage{Logs: []task.LogEntry{
		{ID: "a", Timestamp: "not-a-time"},
	}}

	_, again := LogPollDelay(page, now, DefaultInterval)
	assert.False(t, again)
}

func TestNotificationKey(t *testing.T) {
	key := NotificationKey("task-1", task.StatusRunning)
	assert.Equal(t, "task-1-running", key)

	assert.NotEqual(t,
		NotificationKey("task-1", task.StatusCompleted),
		NotificationKey("task-1", task.StatusRunning),
	)
}
