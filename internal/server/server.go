// Package server implements the dashboard's HTTP API: a thin proxy over the
// ML backend with canned fallback payloads when the backend is unreachable,
// plus dashboard views computed from the task store.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/profiledash/internal/backend"
	"github.com/nadmax/profiledash/internal/cache"
	"github.com/nadmax/profiledash/internal/dataset"
	"github.com/nadmax/profiledash/internal/export"
	"github.com/nadmax/profiledash/internal/httputil"
	"github.com/nadmax/profiledash/internal/metrics"
	"github.com/nadmax/profiledash/internal/store"
	"github.com/nadmax/profiledash/internal/task"
)

// Server proxies dashboard requests to the backend. Tasks created through
// the proxy are tracked in the store, which feeds the dashboard stats and
// lets status polls resolve the task's type.
type Server struct {
	client   *backend.Client
	store    *store.Store
	exporter *export.Exporter
	cache    *cache.Cache // optional
	mux      *http.ServeMux
}

func New(client *backend.Client, st *store.Store) *Server {
	s := &Server{
		client:   client,
		store:    st,
		exporter: export.NewExporter(client, st),
		mux:      http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

// SetCache enables response caching for dataset reads.
func (s *Server) SetCache(c *cache.Cache) {
	s.cache = c
}

// SetHistoryRecorder adds durable export history persistence.
func (s *Server) SetHistoryRecorder(h export.HistoryRecorder) {
	s.exporter.SetHistoryRecorder(h)
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/extract/validation", s.handleExtractValidation)
	s.mux.HandleFunc("/api/generate/augmentation", s.handleGenerateAugmentation)
	s.mux.HandleFunc("/api/tasks/", s.handleTask)
	s.mux.HandleFunc("/api/datasets", s.handleDatasets)
	s.mux.HandleFunc("/api/datasets/", s.handleDatasetSubtree)
	s.mux.HandleFunc("/api/export/custom", s.handleExportCustom)
	s.mux.HandleFunc("/api/export/", s.handleExport)
	s.mux.HandleFunc("/api/dashboard/stats", s.handleDashboardStats)
	s.mux.HandleFunc("/api/dashboard/history", s.handleExportHistory)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleExtractValidation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	resp, err := s.client.StartExtraction(r.Context())
	if err != nil {
		log.Printf("backend unavailable for extraction start: %v", err)
		metrics.RecordFallback("/api/extract/validation")
		resp = fallbackExtraction()
	}

	s.trackNewTask(resp.TaskID, task.TypeExtraction, "Starting extraction", 1)
	s.invalidateCache(r.Context())
	httputil.WriteJSON(w, resp, http.StatusOK)
}

func (s *Server) handleGenerateAugmentation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("failed to close request body: %v", err)
		}
	}()

	var req backend.StartAugmentationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.TargetCount <= 0 {
		httputil.WriteJSONError(w, "target_count must be positive", http.StatusBadRequest)
		return
	}

	resp, err := s.client.StartAugmentation(r.Context(), req)
	if err != nil {
		log.Printf("backend unavailable for augmentation start: %v", err)
		metrics.RecordFallback("/api/generate/augmentation")
		resp = fallbackAugmentation(req)
	}

	s.trackNewTask(resp.TaskID, task.TypeAugmentation, "Starting augmentation", resp.TargetCount)
	s.invalidateCache(r.Context())
	httputil.WriteJSON(w, resp, http.StatusOK)
}

// handleTask serves /api/tasks/{id}/status and /api/tasks/{id}/logs. The
// task type comes from the tracked store entry when known, then from the
// task_type query parameter, defaulting to augmentation.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		httputil.WriteJSONError(w, "Task ID is required", http.StatusBadRequest)
		return
	}
	taskID := parts[0]

	switch parts[1] {
	case "status":
		s.proxyTaskStatus(w, r, taskID)
	case "logs":
		s.proxyTaskLogs(w, r, taskID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) taskTypeFor(r *http.Request, taskID string) task.TaskType {
	if t, ok := s.store.GetTaskType(taskID); ok {
		return t
	}
	if t := task.TaskType(r.URL.Query().Get("task_type")); t.Valid() {
		return t
	}
	return task.TypeAugmentation
}

func (s *Server) proxyTaskStatus(w http.ResponseWriter, r *http.Request, taskID string) {
	taskType := s.taskTypeFor(r, taskID)

	st, err := s.client.TaskStatus(r.Context(), taskType, taskID)
	if err != nil {
		log.Printf("backend unavailable for task status %s: %v", taskID, err)
		metrics.RecordFallback("/api/tasks/:id/status")
		st = fallbackStatus(taskID)
	}

	s.store.UpdateTask(taskID, *st)
	httputil.WriteJSON(w, st, http.StatusOK)
}

func (s *Server) proxyTaskLogs(w http.ResponseWriter, r *http.Request, taskID string) {
	taskType := s.taskTypeFor(r, taskID)
	q := logQueryFrom(r)

	page, err := s.client.TaskLogs(r.Context(), taskType, taskID, q)
	if err != nil {
		log.Printf("backend unavailable for task logs %s: %v", taskID, err)
		metrics.RecordFallback("/api/tasks/:id/logs")
		page = fallbackLogs(taskID, q)
	}

	httputil.WriteJSON(w, page, http.StatusOK)
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	if body, ok := s.cachedResponse(r); ok {
		writeRawJSON(w, body)
		return
	}

	datasets, err := s.client.Datasets(r.Context())
	if err != nil {
		log.Printf("backend unavailable for datasets: %v", err)
		metrics.RecordFallback("/api/datasets")
		httputil.WriteJSON(w, fallbackDatasets(), http.StatusOK)
		return
	}

	s.respondCacheable(w, r, datasets)
}

// handleDatasetSubtree serves /api/datasets/{type}/profiles and
// /api/datasets/{type}/profiles/{id}.
func (s *Server) handleDatasetSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/datasets/")
	parts := strings.Split(rest, "/")

	datasetType := dataset.DatasetType(parts[0])
	if !datasetType.Valid() {
		httputil.WriteJSONError(w, fmt.Sprintf("unknown dataset type %q", parts[0]), http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "profiles":
		s.proxyProfileList(w, r, datasetType)
	case len(parts) == 3 && parts[1] == "profiles" && parts[2] != "":
		s.proxyProfile(w, r, datasetType, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) proxyProfileList(w http.ResponseWriter, r *http.Request, datasetType dataset.DatasetType) {
	filters, err := dataset.FiltersFromQuery(r.URL.Query())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	page := intQuery(r, "page", 1)
	pageSize := intQuery(r, "page_size", 50)

	if body, ok := s.cachedResponse(r); ok {
		writeRawJSON(w, body)
		return
	}

	list, err := s.client.Profiles(r.Context(), datasetType, filters, page, pageSize)
	if err != nil {
		log.Printf("backend unavailable for profiles: %v", err)
		metrics.RecordFallback("/api/datasets/:type/profiles")
		httputil.WriteJSON(w, fallbackProfiles(datasetType, page, pageSize), http.StatusOK)
		return
	}

	s.respondCacheable(w, r, list)
}

func (s *Server) proxyProfile(w http.ResponseWriter, r *http.Request, datasetType dataset.DatasetType, profileID string) {
	if body, ok := s.cachedResponse(r); ok {
		writeRawJSON(w, body)
		return
	}

	profile, err := s.client.Profile(r.Context(), datasetType, profileID)
	if err != nil {
		log.Printf("backend unavailable for profile %s: %v", profileID, err)
		metrics.RecordFallback("/api/datasets/:type/profiles/:id")
		httputil.WriteJSON(w, fallbackProfile(datasetType, profileID), http.StatusOK)
		return
	}

	s.respondCacheable(w, r, profile)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	datasetType := dataset.DatasetType(strings.TrimPrefix(r.URL.Path, "/api/export/"))
	if !datasetType.Valid() {
		httputil.WriteJSONError(w, fmt.Sprintf("unknown dataset type %q", datasetType), http.StatusBadRequest)
		return
	}

	filters, err := dataset.FiltersFromQuery(r.URL.Query())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.serveExport(w, r, datasetType, filters, false)
}

func (s *Server) handleExportCustom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req struct {
		DatasetType dataset.DatasetType    `json:"dataset_type"`
		Filters     dataset.ProfileFilters `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !req.DatasetType.Valid() {
		httputil.WriteJSONError(w, fmt.Sprintf("unknown dataset type %q", req.DatasetType), http.StatusBadRequest)
		return
	}

	s.serveExport(w, r, req.DatasetType, req.Filters, true)
}

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, datasetType dataset.DatasetType, filters dataset.ProfileFilters, custom bool) {
	result, err := s.exporter.Export(r.Context(), datasetType, filters, custom)
	if err != nil {
		log.Printf("backend unavailable for export %s: %v", datasetType, err)
		metrics.RecordFallback("/api/export/:type")

		data, buildErr := fallbackCSV(datasetType)
		if buildErr != nil {
			httputil.WriteJSONError(w, "Export failed", http.StatusBadGateway)
			return
		}
		result = &export.Result{
			Data:     data,
			Filename: export.Filename(datasetType, time.Now()),
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		log.Printf("failed to write export response: %v", err)
	}
}

// handleDashboardStats summarizes tracked tasks from the store's derived
// views.
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	active := s.store.ActiveTasks()
	completed := s.store.CompletedTasks()
	failed := s.store.FailedTasks()

	stats := struct {
		TotalTasks     int           `json:"total_tasks"`
		ActiveTasks    int           `json:"active_tasks"`
		CompletedTasks int           `json:"completed_tasks"`
		FailedTasks    int           `json:"failed_tasks"`
		Active         []task.Status `json:"active"`
		LastUpdated    time.Time     `json:"last_updated"`
	}{
		TotalTasks:     len(active) + len(completed) + len(failed),
		ActiveTasks:    len(active),
		CompletedTasks: len(completed),
		FailedTasks:    len(failed),
		Active:         active,
		LastUpdated:    time.Now(),
	}

	httputil.WriteJSON(w, stats, http.StatusOK)
}

func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	httputil.WriteJSON(w, s.store.ExportHistory(), http.StatusOK)
}

func (s *Server) trackNewTask(taskID string, taskType task.TaskType, step string, totalSteps int) {
	s.store.AddTask(taskID, task.Status{
		TaskID:      taskID,
		Status:      task.StatusPending,
		Progress:    0,
		CurrentStep: step,
		TotalSteps:  totalSteps,
	}, taskType)
}

func (s *Server) cachedResponse(r *http.Request) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(r.Context(), cacheKey(r))
}

func (s *Server) respondCacheable(w http.ResponseWriter, r *http.Request, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), cacheKey(r), body); err != nil {
			log.Printf("failed to cache response for %s: %v", r.URL.Path, err)
		}
	}

	writeRawJSON(w, body)
}

func (s *Server) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Printf("failed to invalidate cache: %v", err)
	}
}

func cacheKey(r *http.Request) string {
	return r.URL.Path + "?" + r.URL.RawQuery
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func logQueryFrom(r *http.Request) task.LogQuery {
	return task.LogQuery{
		Page:     intQuery(r, "page", 1),
		PageSize: intQuery(r, "page_size", 100),
		Level:    task.LogLevel(r.URL.Query().Get("level")),
		Search:   r.URL.Query().Get("search"),
	}
}

func intQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
}
