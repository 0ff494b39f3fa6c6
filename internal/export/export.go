// Package export implements the CSV export contract: fixed column order,
// attachment filenames, and history recording for every attempt.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/profiledash/internal/backend"
	"github.com/nadmax/profiledash/internal/dataset"
	"github.com/nadmax/profiledash/internal/metrics"
	"github.com/nadmax/profiledash/internal/store"
)

// Columns is the fixed CSV column order. Consumers depend on this exact
// sequence; never reorder.
var Columns = []string{
	"id",
	"dataset_type",
	"age",
	"gender",
	"name",
	"mbti",
	"introduction",
	"university",
	"department",
	"image_paths",
	"preferences_self",
	"preferences_partner",
	"match_score",
	"partner_id",
}

// Filename builds the attachment filename for an export performed at t:
// {type}_export_{YYYYMMDD}.csv.
func Filename(datasetType dataset.DatasetType, t time.Time) string {
	return fmt.Sprintf("%s_export_%s.csv", datasetType, t.Format("20060102"))
}

// BuildCSV renders profiles into the export contract. Image paths are
// semicolon-joined; preference blocks are serialized JSON strings.
func BuildCSV(profiles []dataset.ProfileData) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range profiles {
		record, err := profileRecord(p)
		if err != nil {
			return nil, err
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return buf.Bytes(), nil
}

func profileRecord(p dataset.ProfileData) ([]string, error) {
	paths := make([]string, 0, len(p.ProfileImages))
	for _, img := range p.ProfileImages {
		paths = append(paths, img.S3URL)
	}

	selfPrefs, err := json.Marshal(p.Preferences.SelfPreferences)
	if err != nil {
		return nil, fmt.Errorf("marshal self preferences for %s: %w", p.ID, err)
	}
	partnerPrefs, err := json.Marshal(p.Preferences.PartnerPreferences)
	if err != nil {
		return nil, fmt.Errorf("marshal partner preferences for %s: %w", p.ID, err)
	}

	var university, department string
	if p.UniversityInfo != nil {
		university = p.UniversityInfo.UniversityName
		department = p.UniversityInfo.DepartmentName
	}

	var matchScore, partnerID string
	if p.MatchData != nil {
		matchScore = strconv.FormatFloat(p.MatchData.Score, 'f', -1, 64)
		partnerID = p.MatchData.PartnerProfileID
	}

	return []string{
		p.ID,
		string(p.DatasetType),
		strconv.Itoa(p.Age),
		string(p.Gender),
		p.Name,
		p.MBTI,
		p.Introduction,
		university,
		department,
		strings.Join(paths, ";"),
		string(selfPrefs),
		string(partnerPrefs),
		matchScore,
		partnerID,
	}, nil
}

// CSVClient is the slice of the backend client the exporter needs.
type CSVClient interface {
	ExportCSV(ctx context.Context, datasetType dataset.DatasetType, filters dataset.ProfileFilters) (*backend.CSVExport, error)
	ExportCustom(ctx context.Context, datasetType dataset.DatasetType, filters dataset.ProfileFilters) (*backend.CSVExport, error)
}

// HistoryRecorder persists export history beyond the in-session store.
type HistoryRecorder interface {
	RecordExport(ctx context.Context, entry store.ExportHistoryEntry) error
}

// Exporter downloads backend-generated CSVs and records an export history
// entry for every attempt, successful or not.
type Exporter struct {
	client  CSVClient
	store   *store.Store
	history HistoryRecorder // optional
	now     func() time.Time
}

type Result struct {
	Data     []byte
	Filename string
}

func NewExporter(client CSVClient, st *store.Store) *Exporter {
	return &Exporter{
		client: client,
		store:  st,
		now:    time.Now,
	}
}

// SetHistoryRecorder adds durable history persistence.
func (e *Exporter) SetHistoryRecorder(h HistoryRecorder) {
	e.history = h
}

// SetClock replaces the wall clock used for filenames and history stamps.
func (e *Exporter) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Export performs one export. When custom is set the filtered POST endpoint
// is used, otherwise the plain per-dataset GET.
func (e *Exporter) Export(ctx context.Context, datasetType dataset.DatasetType, filters dataset.ProfileFilters, custom bool) (*Result, error) {
	now := e.now()
	filename := Filename(datasetType, now)

	var (
		csvExport *backend.CSVExport
		err       error
	)
	if custom {
		csvExport, err = e.client.ExportCustom(ctx, datasetType, filters)
	} else {
		csvExport, err = e.client.ExportCSV(ctx, datasetType, filters)
	}

	entry := store.ExportHistoryEntry{
		Timestamp:   now.Format(time.RFC3339),
		DatasetType: string(datasetType),
		Filters:     filterMap(filters),
		Filename:    filename,
		Status:      "success",
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	e.store.AddExportHistory(entry)
	metrics.RecordExport(string(datasetType), entry.Status)
	if e.history != nil {
		// History persistence must not fail the export itself.
		if recErr := e.history.RecordExport(ctx, entry); recErr != nil {
			log.Printf("failed to record export history: %v", recErr)
		}
	}

	if err != nil {
		return nil, err
	}

	return &Result{Data: csvExport.Data, Filename: filename}, nil
}

func filterMap(f dataset.ProfileFilters) map[string]any {
	m := make(map[string]any)
	for name, values := range f.QueryValues() {
		m[name] = values[0]
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
