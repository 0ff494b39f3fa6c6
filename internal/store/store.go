// Package store holds the in-session task state shared by pollers, the
// watcher and the dashboard endpoints: known tasks and their latest status,
// derived status views, the per-task log cache, export history and log
// viewer preferences.
package store

import (
	"sync"

	"github.com/nadmax/profiledash/internal/task"
)

const exportHistoryLimit = 50

// ExportHistoryEntry records one export attempt, successful or not.
type ExportHistoryEntry struct {
	Timestamp   string         `json:"timestamp"`
	DatasetType string         `json:"dataset_type"`
	Filters     map[string]any `json:"filters,omitempty"`
	Filename    string         `json:"filename"`
	Status      string         `json:"status"` // success or error
	Error       string         `json:"error,omitempty"`
}

// Preferences is the log viewer preference slice.
type Preferences struct {
	AutoScroll     bool            `json:"auto_scroll"`
	PageSize       int             `json:"page_size"`
	SelectedLevels []task.LogLevel `json:"selected_levels"`
}

// Store is an explicit state container; every mutation is a single
// run-to-completion transition under one lock, and the derived status views
// are recomputed inside that same critical section so a reader can never
// observe views from a different snapshot than the task map.
type Store struct {
	mu sync.RWMutex

	tasks     map[string]task.Status
	taskTypes map[string]task.TaskType
	order     []string // task ids in insertion order

	active    []task.Status
	completed []task.Status
	failed    []task.Status

	exportHistory []ExportHistoryEntry
	taskLogs      map[string][]task.LogEntry
	logIDs        map[string]map[string]struct{}

	prefs Preferences
}

func New() *Store {
	return &Store{
		tasks:     make(map[string]task.Status),
		taskTypes: make(map[string]task.TaskType),
		taskLogs:  make(map[string][]task.LogEntry),
		logIDs:    make(map[string]map[string]struct{}),
		prefs: Preferences{
			AutoScroll: true,
			PageSize:   50,
		},
	}
}

// AddTask inserts a task and its type; an existing entry with the same id is
// overwritten in place.
func (s *Store) AddTask(taskID string, status task.Status, taskType task.TaskType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.tasks[taskID]; !known {
		s.order = append(s.order, taskID)
	}
	s.tasks[taskID] = status
	if taskType != "" {
		s.taskTypes[taskID] = taskType
	}
	s.recomputeViews()
}

// UpdateTask replaces the stored status only if the task is already known.
// Updates for unknown ids are silently dropped so a late poll response can
// never resurrect a removed task.
func (s *Store) UpdateTask(taskID string, status task.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.tasks[taskID]; !known {
		return
	}
	s.tasks[taskID] = status
	s.recomputeViews()
}

// RemoveTask deletes both the status and the type entry.
func (s *Store) RemoveTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.tasks[taskID]; !known {
		return
	}
	delete(s.tasks, taskID)
	delete(s.taskTypes, taskID)
	s.dropFromOrder(taskID)
	s.recomputeViews()
}

func (s *Store) GetTask(taskID string) (task.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.tasks[taskID]
	return st, ok
}

func (s *Store) GetTaskType(taskID string) (task.TaskType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.taskTypes[taskID]
	return t, ok
}

// ActiveTasks returns tasks whose last written status is pending or running,
// in insertion order.
func (s *Store) ActiveTasks() []task.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyStatuses(s.active)
}

func (s *Store) CompletedTasks() []task.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyStatuses(s.completed)
}

func (s *Store) FailedTasks() []task.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyStatuses(s.failed)
}

func (s *Store) HasActiveTasks() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.active) > 0
}

// ClearCompletedTasks drops every task whose status is completed.
func (s *Store) ClearCompletedTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range s.tasks {
		if st.Status == task.StatusCompleted {
			delete(s.tasks, id)
			delete(s.taskTypes, id)
			s.dropFromOrder(id)
		}
	}
	s.recomputeViews()
}

// ClearAllTasks resets task tracking. Log caches and export history are kept;
// they have their own clear operations.
func (s *Store) ClearAllTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]task.Status)
	s.taskTypes = make(map[string]task.TaskType)
	s.order = nil
	s.recomputeViews()
}

// AddExportHistory prepends an entry, keeping only the most recent entries.
func (s *Store) AddExportHistory(entry ExportHistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exportHistory = append([]ExportHistoryEntry{entry}, s.exportHistory...)
	if len(s.exportHistory) > exportHistoryLimit {
		s.exportHistory = s.exportHistory[:exportHistoryLimit]
	}
}

func (s *Store) ExportHistory() []ExportHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ExportHistoryEntry, len(s.exportHistory))
	copy(out, s.exportHistory)
	return out
}

// AddTaskLogs merges new entries into the task's log cache. Entries whose id
// is already cached are discarded; unique ones are appended after the
// existing entries. Existing entries are never removed or reordered.
func (s *Store) AddTaskLogs(taskID string, entries []task.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := s.logIDs[taskID]
	if seen == nil {
		seen = make(map[string]struct{})
		s.logIDs[taskID] = seen
	}

	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		s.taskLogs[taskID] = append(s.taskLogs[taskID], e)
	}
}

// GetTaskLogs returns the merged log cache for a task, empty if unknown.
func (s *Store) GetTaskLogs(taskID string) []task.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := s.taskLogs[taskID]
	out := make([]task.LogEntry, len(logs))
	copy(out, logs)
	return out
}

// ClearTaskLogs clears one task's cache, or every cache when taskID is empty.
func (s *Store) ClearTaskLogs(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if taskID == "" {
		s.taskLogs = make(map[string][]task.LogEntry)
		s.logIDs = make(map[string]map[string]struct{})
		return
	}
	delete(s.taskLogs, taskID)
	delete(s.logIDs, taskID)
}

func (s *Store) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.prefs
	p.SelectedLevels = append([]task.LogLevel(nil), s.prefs.SelectedLevels...)
	return p
}

func (s *Store) ToggleAutoScroll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs.AutoScroll = !s.prefs.AutoScroll
}

func (s *Store) SetPageSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if size > 0 {
		s.prefs.PageSize = size
	}
}

// SetSelectedLevels replaces the level filter; an empty slice means all
// levels.
func (s *Store) SetSelectedLevels(levels []task.LogLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs.SelectedLevels = append([]task.LogLevel(nil), levels...)
}

// recomputeViews rebuilds the derived status slices. Callers must hold the
// write lock.
func (s *Store) recomputeViews() {
	s.active = s.active[:0]
	s.completed = s.completed[:0]
	s.failed = s.failed[:0]

	for _, id := range s.order {
		st, ok := s.tasks[id]
		if !ok {
			continue
		}
		switch {
		case st.Status.Active():
			s.active = append(s.active, st)
		case st.Status == task.StatusCompleted:
			s.completed = append(s.completed, st)
		case st.Status == task.StatusFailed:
			s.failed = append(s.failed, st)
		}
	}
}

func (s *Store) dropFromOrder(taskID string) {
	for i, id := range s.order {
		if id == taskID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func copyStatuses(in []task.Status) []task.Status {
	out := make([]task.Status, len(in))
	copy(out, in)
	return out
}
