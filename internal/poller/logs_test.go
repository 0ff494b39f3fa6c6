package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nadmax/profiledash/internal/store"
	"github.com/nadmax/profiledash/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLogFetcher struct {
	script  []scriptedLogs
	calls   int
	types   []task.TaskType
	queries []task.LogQuery
}

type scriptedLogs struct {
	page *task.LogsPage
	err  error
}

func (f *scriptedLogFetcher) TaskLogs(_ context.Context, taskType task.TaskType, _ string, q task.LogQuery) (*task.LogsPage, error) {
	f.types = append(f.types, taskType)
	f.queries = append(f.queries, q)
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	step := f.script[i]
	return step.page, step.err
}

func logsAt(ts time.Time, ids ...string) *task.LogsPage {
	page := &task.LogsPage{TotalLogs: len(ids), Page: 1, PageSize: 100}
	for _, id := range ids {
		page.Logs = append(page.Logs, task.LogEntry{
			ID:        id,
			TaskID:    "task-1",
			Timestamp: ts.Format(time.RFC3339),
			Level:     task.LevelInfo,
		})
	}
	return page
}

func TestFetchMergesIntoStore(t *testing.T) {
	st := store.New()
	st.AddTask("task-1", task.Status{TaskID: "task-1"}, task.TypeExtraction)

	fetcher := &scriptedLogFetcher{script: []scriptedLogs{
		{page: logsAt(time.Now(), "log-1", "log-2")},
	}}
	p := NewLogPoller(fetcher, st)

	page, err := p.Fetch(context.Background(), "task-1", task.LogQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Logs, 2)
	assert.Equal(t, []task.TaskType{task.TypeExtraction}, fetcher.types)
	assert.Len(t, st.GetTaskLogs("task-1"), 2)
}

func TestFetchAppliesQueryDefaults(t *testing.T) {
	fetcher := &scriptedLogFetcher{script: []scriptedLogs{
		{page: logsAt(time.Now(), "log-1")},
	}}
	p := NewLogPoller(fetcher, store.New())

	_, err := p.Fetch(context.Background(), "task-1", task.LogQuery{})
	require.NoError(t, err)

	require.Len(t, fetcher.queries, 1)
	assert.Equal(t, 1, fetcher.queries[0].Page)
	assert.Equal(t, 100, fetcher.queries[0].PageSize)
}

func TestFetchServesCachedPageWithinStalenessWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	fetcher := &scriptedLogFetcher{script: []scriptedLogs{
		{page: logsAt(now, "log-1")},
	}}
	p := NewLogPoller(fetcher, store.New())
	p.SetClock(func() time.Time { return clock })

	_, err := p.Fetch(context.Background(), "task-1", task.LogQuery{})
	require.NoError(t, err)

	clock = now.Add(500 * time.Millisecond)
	_, err = p.Fetch(context.Background(), "task-1", task.LogQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)

	clock = now.Add(1500 * time.Millisecond)
	_, err = p.Fetch(context.Background(), "task-1", task.LogQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestFetchQueryChangeBypassesCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &scriptedLogFetcher{script: []scriptedLogs{
		{page: logsAt(now, "log-1")},
	}}
	p := NewLogPoller(fetcher, store.New())
	p.SetClock(func() time.Time { return now })

	_, err := p.Fetch(context.Background(), "task-1", task.LogQuery{})
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), "task-1", task.LogQuery{Level: task.LevelError})
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestRefetchBypassesStalenessWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &scriptedLogFetcher{script: []scriptedLogs{
		{page: logsAt(now, "log-1")},
	}}
	p := NewLogPoller(fetcher, store.New())
	p.SetClock(func() time.Time { return now })

	_, err := p.Fetch(context.Background(), "task-1", task.LogQuery{})
	require.NoError(t, err)
	_, err = p.Refetch(context.Background(), "task-1", task.LogQuery{}.WithDefaults())
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestRefetchErrorRetainsMergedEntries(t *testing.T) {
	st := store.New()
	fetcher := &scriptedLogFetcher{script: []scriptedLogs{
		{page: logsAt(time.Now(), "log-1")},
		{err: errors.New("backend unreachable")},
	}}
	p := NewLogPoller(fetcher, st)

	_, err := p.Refetch(context.Background(), "task-1", task.LogQuery{})
	require.NoError(t, err)

	_, err = p.Refetch(context.Background(), "task-1", task.LogQuery{})
	require.Error(t, err)
	assert.Error(t, p.LastError())
	assert.Len(t, st.GetTaskLogs("task-1"), 1)
}

func TestWatchStopsWhenLogsGoQuiet(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st := store.New()
	fetcher := &scriptedLogFetcher{script: []scriptedLogs{
		{page: logsAt(now.Add(-10*time.Second), "log-1")},
		{page: logsAt(now.Add(-90*time.Second), "log-2")},
	}}
	p := NewLogPoller(fetcher, st)
	p.SetClock(func() time.Time { return now })
	p.SetInterval(time.Millisecond)

	err := p.Watch(context.Background(), "task-1", task.LogQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
	assert.Len(t, st.GetTaskLogs("task-1"), 2)
}

func TestWatchStopsImmediatelyOnStaleLogs(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &scriptedLogFetcher{script: []scriptedLogs{
		{page: logsAt(now.Add(-2*time.Minute), "log-1")},
	}}
	p := NewLogPoller(fetcher, store.New())
	p.SetClock(func() time.Time { return now })

	err := p.Watch(context.Background(), "task-1", task.LogQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestLogWatchEmptyTaskIDIsDisabled(t *testing.T) {
	fetcher := &scriptedLogFetcher{script: []scriptedLogs{
		{page: logsAt(time.Now(), "log-1")},
	}}
	p := NewLogPoller(fetcher, store.New())

	err := p.Watch(context.Background(), "", task.LogQuery{})
	assert.NoError(t, err)
	assert.Zero(t, fetcher.calls)
}
