package poller

import (
	"context"
	"time"

	"github.com/nadmax/profiledash/internal/metrics"
	"github.com/nadmax/profiledash/internal/store"
	"github.com/nadmax/profiledash/internal/task"
)

// LogFetcher is the slice of the backend client the log poller needs.
type LogFetcher interface {
	TaskLogs(ctx context.Context, taskType task.TaskType, taskID string, q task.LogQuery) (*task.LogsPage, error)
}

// LogPoller fetches one filtered page of a task's logs and keeps it fresh
// while the task appears active. Every successful page is merged into the
// store's per-task log cache, so entries accumulate across polls and pages
// even though each fetch only covers one page.
type LogPoller struct {
	client   LogFetcher
	store    *store.Store
	interval time.Duration
	now      func() time.Time

	last      *task.LogsPage
	lastQuery task.LogQuery
	fetchedAt time.Time
	lastErr   error
}

func NewLogPoller(client LogFetcher, st *store.Store) *LogPoller {
	return &LogPoller{
		client:   client,
		store:    st,
		interval: DefaultInterval,
		now:      time.Now,
	}
}

func (p *LogPoller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// SetClock replaces the wall clock used for staleness and recency decisions.
func (p *LogPoller) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

func (p *LogPoller) LastError() error {
	return p.lastErr
}

// Fetch returns the current page for the query. A page fetched under the
// same query within the staleness window is served as-is, which absorbs
// bursts of identical requests without hitting the backend.
func (p *LogPoller) Fetch(ctx context.Context, taskID string, q task.LogQuery) (*task.LogsPage, error) {
	q = q.WithDefaults()
	if p.last != nil && p.lastQuery == q && p.now().Sub(p.fetchedAt) < LogStaleAfter {
		return p.last, nil
	}
	return p.Refetch(ctx, taskID, q)
}

// Refetch always hits the backend, bypassing the staleness window. This is
// the "Retry" action after a failed fetch. On failure the previously merged
// cache entries are retained.
func (p *LogPoller) Refetch(ctx context.Context, taskID string, q task.LogQuery) (*task.LogsPage, error) {
	q = q.WithDefaults()

	taskType, ok := p.store.GetTaskType(taskID)
	if !ok {
		taskType = task.TypeAugmentation
	}

	page, err := p.client.TaskLogs(ctx, taskType, taskID, q)
	if err != nil {
		p.lastErr = err
		metrics.RecordPoll("logs", "error")
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.lastErr = nil
	metrics.RecordPoll("logs", "success")
	p.last = page
	p.lastQuery = q
	p.fetchedAt = p.now()
	p.store.AddTaskLogs(taskID, page.Logs)

	return page, nil
}

// Watch polls the query until the returned page carries no entry newer than
// the recency window, or until ctx is cancelled. An empty taskID disables
// the poller.
func (p *LogPoller) Watch(ctx context.Context, taskID string, q task.LogQuery) error {
	if taskID == "" {
		return nil
	}

	for {
		page, err := p.Refetch(ctx, taskID, q)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			p.last = page
		}

		delay, again := LogPollDelay(p.last, p.now(), p.interval)
		if !again {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
