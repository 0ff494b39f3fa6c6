package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/nadmax/profiledash/internal/metrics"
	"github.com/nadmax/profiledash/internal/notify"
	"github.com/nadmax/profiledash/internal/store"
	"github.com/nadmax/profiledash/internal/task"
)

// StatusFetcher is the slice of the backend client the status poller needs.
type StatusFetcher interface {
	TaskStatus(ctx context.Context, taskType task.TaskType, taskID string) (*task.Status, error)
}

// StatusPoller fetches one task's status on an adaptive interval, writes
// every successful result into the store and dispatches at most one
// notification per distinct status value for the lifetime of the poller.
type StatusPoller struct {
	client   StatusFetcher
	store    *store.Store
	notifier notify.Notifier
	interval time.Duration

	notified map[string]struct{}
	lastErr  error

	// OnComplete runs when a completed notification fires, e.g. to refresh
	// dataset stats. OnFailed receives the backend-declared error string.
	OnComplete func()
	OnFailed   func(string)
}

func NewStatusPoller(client StatusFetcher, st *store.Store, notifier notify.Notifier) *StatusPoller {
	return &StatusPoller{
		client:   client,
		store:    st,
		notifier: notifier,
		interval: DefaultInterval,
		notified: make(map[string]struct{}),
	}
}

// SetInterval overrides the polling cadence.
func (p *StatusPoller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// LastError returns the error of the most recent fetch, nil after a success.
func (p *StatusPoller) LastError() error {
	return p.lastErr
}

// Poll performs a single status fetch and applies it. The result is not
// committed if ctx was cancelled while the request was in flight, so a
// viewer that stopped watching never writes a stale status.
func (p *StatusPoller) Poll(ctx context.Context, taskID string) (*task.Status, error) {
	taskType, ok := p.store.GetTaskType(taskID)
	if !ok {
		taskType = task.TypeAugmentation
	}

	st, err := p.client.TaskStatus(ctx, taskType, taskID)
	if err != nil {
		p.lastErr = err
		metrics.RecordPoll("status", "error")
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.lastErr = nil
	metrics.RecordPoll("status", "success")
	p.store.UpdateTask(taskID, *st)
	p.dispatch(taskID, taskType, st)

	return st, nil
}

// Watch polls until the task reaches a terminal status or ctx is cancelled.
// An empty taskID disables the poller. Fetch errors keep the last good state
// and leave the schedule untouched; they never terminate the loop on their
// own.
func (p *StatusPoller) Watch(ctx context.Context, taskID string) (*task.Status, error) {
	if taskID == "" {
		return nil, nil
	}

	var last *task.Status
	for {
		st, err := p.Poll(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
		} else {
			last = st
		}

		delay, again := StatusPollDelay(last, p.interval)
		if !again {
			return last, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// dispatch fires the notification matching the observed status, at most once
// per (task, status) pair per poller instance. Polling re-observes the same
// status many times; the notified set is what keeps toasts singular.
func (p *StatusPoller) dispatch(taskID string, taskType task.TaskType, st *task.Status) {
	key := NotificationKey(taskID, st.Status)
	if _, done := p.notified[key]; done {
		return
	}
	p.notified[key] = struct{}{}

	switch st.Status {
	case task.StatusPending:
		p.notifier.NotifyPending(taskType)
	case task.StatusRunning:
		p.notifier.NotifyRunning(taskType, st.CurrentStep)
	case task.StatusCompleted:
		p.notifier.NotifyCompleted(taskType, p.OnComplete)
	case task.StatusFailed:
		errMsg := st.Error
		if errMsg == "" {
			errMsg = fmt.Sprintf("task %s failed", taskID)
		}
		p.notifier.NotifyFailed(taskType, errMsg, p.OnFailed)
	}
}
