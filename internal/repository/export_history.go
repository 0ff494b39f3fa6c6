// Package repository provides PostgreSQL persistence for export history,
// keeping a durable audit of export attempts beyond the in-session cap.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/nadmax/profiledash/internal/store"
)

type ExportHistoryRepository struct {
	db *sql.DB
}

func NewExportHistoryRepository(connectionString string) (*ExportHistoryRepository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &ExportHistoryRepository{db: db}, nil
}

// RecordExport appends one export attempt to the history table.
func (r *ExportHistoryRepository) RecordExport(ctx context.Context, entry store.ExportHistoryEntry) error {
	var filters any
	if entry.Filters != nil {
		data, err := json.Marshal(entry.Filters)
		if err != nil {
			return fmt.Errorf("failed to marshal filters: %w", err)
		}
		filters = data
	}

	query := `
		INSERT INTO export_history (
			exported_at, dataset_type, filters, filename, status, error
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.Timestamp,
		entry.DatasetType,
		filters,
		entry.Filename,
		entry.Status,
		nullableString(entry.Error),
	)

	return err
}

// RecentExports returns the most recent export attempts, newest first.
func (r *ExportHistoryRepository) RecentExports(ctx context.Context, limit int) ([]store.ExportHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT exported_at, dataset_type, filters, filename, status, COALESCE(error, '')
		FROM export_history
		ORDER BY exported_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []store.ExportHistoryEntry
	for rows.Next() {
		var (
			entry   store.ExportHistoryEntry
			filters []byte
		)
		if err := rows.Scan(&entry.Timestamp, &entry.DatasetType, &filters, &entry.Filename, &entry.Status, &entry.Error); err != nil {
			return nil, err
		}
		if len(filters) > 0 {
			if err := json.Unmarshal(filters, &entry.Filters); err != nil {
				return nil, fmt.Errorf("failed to unmarshal filters: %w", err)
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ExportStats returns per-dataset success/error counts for the last n hours.
func (r *ExportHistoryRepository) ExportStats(ctx context.Context, hours int) (map[string]map[string]int, error) {
	if hours <= 0 {
		hours = 24
	}

	query := `
		SELECT dataset_type, status, COUNT(*)
		FROM export_history
		WHERE exported_at::timestamptz > NOW() - ($1 || ' hours')::interval
		GROUP BY dataset_type, status
	`

	rows, err := r.db.QueryContext(ctx, query, hours)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[string]map[string]int)
	for rows.Next() {
		var (
			datasetType, status string
			count               int
		)
		if err := rows.Scan(&datasetType, &status, &count); err != nil {
			return nil, err
		}
		if stats[datasetType] == nil {
			stats[datasetType] = make(map[string]int)
		}
		stats[datasetType][status] = count
	}

	return stats, rows.Err()
}

func (r *ExportHistoryRepository) Close() error {
	return r.db.Close()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
