// Package backend implements the HTTP client for the external ML backend
// that owns dataset storage, extraction/augmentation execution and CSV
// generation.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nadmax/profiledash/internal/dataset"
	"github.com/nadmax/profiledash/internal/metrics"
	"github.com/nadmax/profiledash/internal/task"
)

// Client talks to the ML backend over its HTTP contract. Extraction and
// augmentation use different URL templates; the task type resolves them.
type Client struct {
	baseURL string
	http    *resty.Client
}

type StartExtractionResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type StartAugmentationRequest struct {
	TargetCount int `json:"target_count"`
	BatchSize   int `json:"batch_size,omitempty"`
}

type StartAugmentationResponse struct {
	TaskID      string `json:"task_id"`
	Message     string `json:"message"`
	TargetCount int    `json:"target_count"`
}

// CSVExport is a generated CSV document plus the attachment header the
// backend sent with it.
type CSVExport struct {
	Data               []byte
	ContentDisposition string
}

func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}

	c.http = resty.New().
		SetHeader("User-Agent", "profiledash").
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry on 429 and transient server errors.
			return r.StatusCode() == 429 || (r.StatusCode() >= 500 && r.StatusCode() <= 504)
		}).
		OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			metrics.RecordBackendRequest(r.Request.Method, r.Time())
			return nil
		})

	return c
}

// SetTimeout overrides the default request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.http.SetTimeout(timeout)
}

// StartExtraction triggers validation dataset extraction.
func (c *Client) StartExtraction(ctx context.Context) (*StartExtractionResponse, error) {
	var out StartExtractionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetResult(&out).
		Post(c.url(task.TypeExtraction.StartPath()))
	if err != nil {
		return nil, fmt.Errorf("start extraction: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, statusError("start extraction", resp)
	}

	return &out, nil
}

// StartAugmentation triggers learning dataset generation.
func (c *Client) StartAugmentation(ctx context.Context, req StartAugmentationRequest) (*StartAugmentationResponse, error) {
	if req.TargetCount <= 0 {
		return nil, fmt.Errorf("target_count must be positive, got %d", req.TargetCount)
	}

	var out StartAugmentationResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post(c.url(task.TypeAugmentation.StartPath()))
	if err != nil {
		return nil, fmt.Errorf("start augmentation: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, statusError("start augmentation", resp)
	}

	return &out, nil
}

// TaskStatus fetches one task's status via the type-specific endpoint.
// Progress is normalized to the canonical [0, 1] fraction.
func (c *Client) TaskStatus(ctx context.Context, taskType task.TaskType, taskID string) (*task.Status, error) {
	var out task.Status
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.url(taskType.StatusPath(taskID)))
	if err != nil {
		return nil, fmt.Errorf("task status %s: %w", taskID, err)
	}
	if !resp.IsSuccess() {
		return nil, statusError("task status", resp)
	}

	out.NormalizeProgress()
	return &out, nil
}

// TaskLogs fetches one page of a task's logs via the type-specific endpoint.
func (c *Client) TaskLogs(ctx context.Context, taskType task.TaskType, taskID string, q task.LogQuery) (*task.LogsPage, error) {
	q = q.WithDefaults()

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(q.Page)).
		SetQueryParam("page_size", strconv.Itoa(q.PageSize))
	if q.Level != "" {
		req.SetQueryParam("level", string(q.Level))
	}
	if q.Search != "" {
		req.SetQueryParam("search", q.Search)
	}

	var out task.LogsPage
	resp, err := req.SetResult(&out).Get(c.url(taskType.LogsPath(taskID)))
	if err != nil {
		return nil, fmt.Errorf("task logs %s: %w", taskID, err)
	}
	if !resp.IsSuccess() {
		return nil, statusError("task logs", resp)
	}

	return &out, nil
}

// Datasets lists every dataset with its statistics.
func (c *Client) Datasets(ctx context.Context) ([]dataset.DatasetInfo, error) {
	var out []dataset.DatasetInfo
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.url("/datasets"))
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, statusError("list datasets", resp)
	}

	return out, nil
}

// Profiles lists profiles of one dataset with pagination and filters.
func (c *Client) Profiles(ctx context.Context, datasetType dataset.DatasetType, filters dataset.ProfileFilters, page, pageSize int) (*dataset.ProfileListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("page_size", strconv.Itoa(pageSize))
	for name, values := range filters.QueryValues() {
		req.SetQueryParam(name, values[0])
	}

	var out dataset.ProfileListResponse
	resp, err := req.SetResult(&out).Get(c.url(fmt.Sprintf("/datasets/%s/profiles", datasetType)))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, statusError("list profiles", resp)
	}

	return &out, nil
}

// Profile fetches a single profile by id.
func (c *Client) Profile(ctx context.Context, datasetType dataset.DatasetType, profileID string) (*dataset.ProfileData, error) {
	var out dataset.ProfileData
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.url(fmt.Sprintf("/datasets/%s/profiles/%s", datasetType, profileID)))
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", profileID, err)
	}
	if !resp.IsSuccess() {
		return nil, statusError("get profile", resp)
	}

	return &out, nil
}

// ExportCSV downloads the backend-generated CSV for one dataset.
func (c *Client) ExportCSV(ctx context.Context, datasetType dataset.DatasetType, filters dataset.ProfileFilters) (*CSVExport, error) {
	req := c.http.R().SetContext(ctx)
	for name, values := range filters.QueryValues() {
		req.SetQueryParam(name, values[0])
	}

	resp, err := req.Get(c.url(fmt.Sprintf("/export/%s", datasetType)))
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", datasetType, err)
	}
	if !resp.IsSuccess() {
		return nil, statusError("export", resp)
	}

	return &CSVExport{
		Data:               resp.Body(),
		ContentDisposition: resp.Header().Get("Content-Disposition"),
	}, nil
}

// ExportCustom downloads a CSV for an explicitly filtered export.
func (c *Client) ExportCustom(ctx context.Context, datasetType dataset.DatasetType, filters dataset.ProfileFilters) (*CSVExport, error) {
	body := map[string]any{
		"dataset_type": datasetType,
		"filters":      filters,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.url("/export/custom"))
	if err != nil {
		return nil, fmt.Errorf("export custom: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, statusError("export custom", resp)
	}

	return &CSVExport{
		Data:               resp.Body(),
		ContentDisposition: resp.Header().Get("Content-Disposition"),
	}, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func statusError(op string, resp *resty.Response) error {
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("%s: backend responded %d: %s", op, resp.StatusCode(), apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("%s: backend responded %d: %s", op, resp.StatusCode(), apiErr.Error)
		}
	}

	return fmt.Errorf("%s: backend responded %d", op, resp.StatusCode())
}
