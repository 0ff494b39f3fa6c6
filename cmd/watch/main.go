// Command watch submits or attaches to a backend task and follows it from
// the terminal: status polling with notifications, plus a live log tail.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nadmax/profiledash/internal/backend"
	"github.com/nadmax/profiledash/internal/config"
	"github.com/nadmax/profiledash/internal/logview"
	"github.com/nadmax/profiledash/internal/notify"
	"github.com/nadmax/profiledash/internal/poller"
	"github.com/nadmax/profiledash/internal/store"
	"github.com/nadmax/profiledash/internal/task"
)

func main() {
	var (
		extract   = flag.Bool("extract", false, "start a validation extraction task")
		augment   = flag.Int("augment", 0, "start an augmentation task with this target count")
		batchSize = flag.Int("batch-size", 0, "augmentation batch size")
		taskID    = flag.String("task", "", "attach to an existing task id")
		taskType  = flag.String("type", "augmentation", "task type when attaching (extraction|augmentation)")
		level     = flag.String("level", "", "log level filter (DEBUG|INFO|WARNING|ERROR|SUCCESS)")
		search    = flag.String("search", "", "log free-text search filter")
		follow    = flag.Bool("follow", true, "tail new log entries as they arrive")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	client := backend.NewClient(cfg.BackendURL)
	st := store.New()

	var notifier notify.Notifier = notify.NewLogNotifier()
	if cfg.EmailAPIKey != "" {
		notifier = notify.NewMultiNotifier(
			notify.NewLogNotifier(),
			notify.NewEmailNotifier(cfg.EmailAPIKey, cfg.FromName, cfg.FromAddress, cfg.ToAddress),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	id, err := resolveTask(ctx, client, st, *extract, *augment, *batchSize, *taskID, *taskType)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Watching task %s", id)

	viewer := logview.New()
	viewer.SetLevel(task.LogLevel(*level))
	viewer.SetSearch(*search)
	viewer.SetAutoScroll(*follow)

	statusPoller := poller.NewStatusPoller(client, st, notifier)
	statusPoller.OnComplete = func() {
		log.Printf("Task %s finished; dataset stats may have changed", id)
	}
	statusPoller.OnFailed = func(errMsg string) {
		log.Printf("Task %s failed: %s", id, errMsg)
	}

	logPoller := poller.NewLogPoller(client, st)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if _, err := statusPoller.Watch(ctx, id); err != nil && ctx.Err() == nil {
			log.Printf("status polling stopped: %v", err)
		}
	}()

	go func() {
		defer wg.Done()
		if err := logPoller.Watch(ctx, id, viewer.Query()); err != nil && ctx.Err() == nil {
			log.Printf("log polling stopped: %v", err)
		}
	}()

	tailCtx, stopTail := context.WithCancel(ctx)
	tailDone := tailLogs(tailCtx, st, viewer, id)

	wg.Wait()
	stopTail()
	<-tailDone

	if final, ok := st.GetTask(id); ok {
		fmt.Printf("final status: %s (progress %.0f%%)\n", final.Status, final.Progress*100)
		if final.Error != "" {
			fmt.Printf("error: %s\n", final.Error)
			os.Exit(1)
		}
	}
}

func resolveTask(ctx context.Context, client *backend.Client, st *store.Store, extract bool, augment, batchSize int, taskID, taskType string) (string, error) {
	switch {
	case extract:
		resp, err := client.StartExtraction(ctx)
		if err != nil {
			return "", err
		}
		st.AddTask(resp.TaskID, task.Status{
			TaskID:      resp.TaskID,
			Status:      task.StatusPending,
			CurrentStep: "Starting extraction",
			TotalSteps:  1,
		}, task.TypeExtraction)
		return resp.TaskID, nil

	case augment > 0:
		resp, err := client.StartAugmentation(ctx, backend.StartAugmentationRequest{
			TargetCount: augment,
			BatchSize:   batchSize,
		})
		if err != nil {
			return "", err
		}
		st.AddTask(resp.TaskID, task.Status{
			TaskID:      resp.TaskID,
			Status:      task.StatusPending,
			CurrentStep: "Starting augmentation",
			TotalSteps:  resp.TargetCount,
		}, task.TypeAugmentation)
		return resp.TaskID, nil

	case taskID != "":
		t := task.TaskType(taskType)
		if !t.Valid() {
			return "", fmt.Errorf("invalid task type %q", taskType)
		}
		st.AddTask(taskID, task.Status{
			TaskID: taskID,
			Status: task.StatusPending,
		}, t)
		return taskID, nil

	default:
		return "", fmt.Errorf("one of -extract, -augment or -task is required")
	}
}

// tailLogs prints entries merged into the log cache since the last tick.
// With auto-scroll off it only reports how many new entries arrived.
func tailLogs(ctx context.Context, st *store.Store, viewer *logview.Viewer, taskID string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		printed := 0
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logs := st.GetTaskLogs(taskID)
				if len(logs) == printed {
					continue
				}
				viewer.NotifyLogsChanged()
				if !viewer.ConsumeScrollRequest() {
					log.Printf("%d new log entries (tail paused)", len(logs)-printed)
					printed = len(logs)
					continue
				}
				for _, entry := range logs[printed:] {
					fmt.Printf("%s %-7s %s\n", entry.Timestamp, entry.Level, entry.Message)
					if viewer.IsExpanded(entry.ID) && entry.Details != nil {
						fmt.Printf("        details: %v\n", entry.Details)
					}
				}
				printed = len(logs)
			}
		}
	}()
	return done
}
