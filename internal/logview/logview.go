// Package logview holds the client-side view state layered over fetched log
// pages: current page, free-text search, level filter and the set of entries
// expanded to show their detail payloads. The state is independent of fetch
// timing; it only shapes queries and presentation.
package logview

import (
	"github.com/nadmax/profiledash/internal/task"
)

// Viewer is the per-session log viewer state. It is not safe for concurrent
// use; it belongs to a single viewing session.
type Viewer struct {
	page       int
	search     string
	level      task.LogLevel
	pageSize   int
	expanded   map[string]struct{}
	autoScroll bool

	scrollRequested bool
}

func New() *Viewer {
	return &Viewer{
		page:       1,
		pageSize:   50,
		expanded:   make(map[string]struct{}),
		autoScroll: true,
	}
}

func (v *Viewer) Page() int            { return v.page }
func (v *Viewer) Search() string       { return v.search }
func (v *Viewer) Level() task.LogLevel { return v.level }
func (v *Viewer) PageSize() int        { return v.pageSize }
func (v *Viewer) AutoScroll() bool     { return v.autoScroll }

// Query renders the viewer state as log fetch parameters.
func (v *Viewer) Query() task.LogQuery {
	return task.LogQuery{
		Page:     v.page,
		PageSize: v.pageSize,
		Level:    v.level,
		Search:   v.search,
	}
}

// SetPage moves to a page; pages below 1 clamp to 1.
func (v *Viewer) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	v.page = page
}

func (v *Viewer) SetPageSize(size int) {
	if size > 0 {
		v.pageSize = size
	}
}

// SetSearch replaces the search term and resets pagination to the first
// page, since the old offset is meaningless under a new filter.
func (v *Viewer) SetSearch(term string) {
	if term == v.search {
		return
	}
	v.search = term
	v.page = 1
}

// SetLevel replaces the level filter and resets pagination to the first
// page. An empty level means all levels.
func (v *Viewer) SetLevel(level task.LogLevel) {
	if level == v.level {
		return
	}
	v.level = level
	v.page = 1
}

// ClearFilters resets search, level and page to their defaults in one step.
func (v *Viewer) ClearFilters() {
	v.search = ""
	v.level = ""
	v.page = 1
}

// ToggleExpanded flips whether an entry shows its raw detail payload.
func (v *Viewer) ToggleExpanded(entryID string) {
	if _, ok := v.expanded[entryID]; ok {
		delete(v.expanded, entryID)
		return
	}
	v.expanded[entryID] = struct{}{}
}

func (v *Viewer) IsExpanded(entryID string) bool {
	_, ok := v.expanded[entryID]
	return ok
}

func (v *Viewer) SetAutoScroll(on bool) {
	v.autoScroll = on
}

// NotifyLogsChanged records that the merged log list changed; when
// auto-scroll is on this raises a scroll-to-bottom request for the next
// ConsumeScrollRequest call.
func (v *Viewer) NotifyLogsChanged() {
	if v.autoScroll {
		v.scrollRequested = true
	}
}

// ConsumeScrollRequest reports whether a scroll-to-bottom is due and clears
// the request.
func (v *Viewer) ConsumeScrollRequest() bool {
	due := v.scrollRequested
	v.scrollRequested = false
	return due
}
