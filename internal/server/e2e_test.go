package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nadmax/profiledash/internal/backend"
	"github.com/nadmax/profiledash/internal/poller"
	"github.com/nadmax/profiledash/internal/store"
	"github.com/nadmax/profiledash/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleNotifier struct {
	events []string
}

func (n *lifecycleNotifier) NotifyPending(task.TaskType) { n.events = append(n.events, "pending") }
func (n *lifecycleNotifier) NotifyRunning(task.TaskType, string) {
	n.events = append(n.events, "running")
}
func (n *lifecycleNotifier) NotifyCompleted(_ task.TaskType, onComplete func()) {
	n.events = append(n.events, "completed")
	if onComplete != nil {
		onComplete()
	}
}
func (n *lifecycleNotifier) NotifyFailed(_ task.TaskType, errMsg string, onError func(string)) {
	n.events = append(n.events, "failed")
	if onError != nil {
		onError(errMsg)
	}
}

// Full augmentation lifecycle through the proxy and the status poller: the
// created task is tracked as pending, moves through the active view while
// running, lands in the completed view with exactly one notification per
// status, and polling stops on its own.
func TestAugmentationLifecycle(t *testing.T) {
	statusCalls := 0
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate/augmentation":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(backend.StartAugmentationResponse{
				TaskID:      "augment-e2e",
				Message:     "started",
				TargetCount: 1000,
			})
		case "/generate/images/augment-e2e/status":
			statusCalls++
			st := task.Status{
				TaskID:      "augment-e2e",
				Status:      task.StatusRunning,
				Progress:    45, // percent-scaled, normalized by the client
				CurrentStep: "Generating images",
				TotalSteps:  1000,
			}
			if statusCalls >= 3 {
				st.Status = task.StatusCompleted
				st.Progress = 100
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(st)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backendSrv.Close)

	client := backend.NewClient(backendSrv.URL)
	st := store.New()
	srv := New(client, st)

	rec := doJSON(t, srv, http.MethodPost, "/api/generate/augmentation", map[string]int{"target_count": 1000})
	require.Equal(t, http.StatusOK, rec.Code)

	tracked, ok := st.GetTask("augment-e2e")
	require.True(t, ok)
	assert.Equal(t, task.StatusPending, tracked.Status)
	assert.Equal(t, 1000, tracked.TotalSteps)
	require.Len(t, st.ActiveTasks(), 1)

	notifier := &lifecycleNotifier{}
	p := poller.NewStatusPoller(client, st, notifier)
	p.SetInterval(time.Millisecond)

	completions := 0
	p.OnComplete = func() { completions++ }

	// First poll observes the task running at normalized progress.
	running, err := p.Poll(context.Background(), "augment-e2e")
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, running.Status)
	assert.InDelta(t, 0.45, running.Progress, 1e-9)
	require.Len(t, st.ActiveTasks(), 1)
	assert.Empty(t, st.CompletedTasks())

	last, err := p.Watch(context.Background(), "augment-e2e")
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, last.Status)
	assert.InDelta(t, 1.0, last.Progress, 1e-9)

	// Terminal status moved the task between views.
	assert.Empty(t, st.ActiveTasks())
	require.Len(t, st.CompletedTasks(), 1)
	assert.False(t, st.HasActiveTasks())

	// One notification per status despite repeated running observations.
	assert.Equal(t, []string{"running", "completed"}, notifier.events)
	assert.Equal(t, 1, completions)

	// Polling stopped by itself once the task completed.
	final := statusCalls
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, final, statusCalls)
}
