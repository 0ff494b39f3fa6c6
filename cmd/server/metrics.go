package main

import (
	"time"

	"github.com/nadmax/profiledash/internal/metrics"
	"github.com/nadmax/profiledash/internal/store"
)

func startMetricsCollector(st *store.Store) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		metrics.UpdateTaskGauges(
			len(st.ActiveTasks()),
			len(st.CompletedTasks()),
			len(st.FailedTasks()),
		)
	}
}
