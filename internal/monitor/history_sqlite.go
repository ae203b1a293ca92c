package monitor

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultRecentLimit = 60
	maxRecentLimit     = 1000
)

// SampleHistory stores and retrieves telemetry samples. Implementations
// must be safe for concurrent use and keep timestamps in UTC.
type SampleHistory interface {
	// Record persists one sample.
	Record(ctx context.Context, s Sample) error

	// Recent returns up to limit samples, newest first.
	Recent(ctx context.Context, limit int) ([]Sample, error)
}

// SQLiteSampleHistory implements SampleHistory on the telemetry_samples table.
type SQLiteSampleHistory struct {
	db *sql.DB
}

// NewSQLiteSampleHistory creates a new SQLite sample history repository.
func NewSQLiteSampleHistory(db *sql.DB) *SQLiteSampleHistory {
	return &SQLiteSampleHistory{db: db}
}

// Record inserts one telemetry sample.
func (r *SQLiteSampleHistory) Record(ctx context.Context, s Sample) error {
	if s.Time.IsZero() {
		s.Time = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO telemetry_samples
		 (sampled_at, cpu_temp, cpu_fan_speed, cpu_fan_rpm, gpu_temp, gpu_fan_speed, gpu_fan_rpm)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Time.UTC().Format(time.RFC3339),
		s.CPUTemp, s.CPUFanSpeed, s.CPUFanRPM,
		s.GPUTemp, s.GPUFanSpeed, s.GPUFanRPM,
	)
	if err != nil {
		return fmt.Errorf("inserting telemetry sample: %w", err)
	}

	return nil
}

// Recent returns up to limit samples ordered newest first
// (default 60, max 1000).
func (r *SQLiteSampleHistory) Recent(ctx context.Context, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT sampled_at, cpu_temp, cpu_fan_speed, cpu_fan_rpm, gpu_temp, gpu_fan_speed, gpu_fan_rpm
		 FROM telemetry_samples
		 ORDER BY sampled_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry samples: %w", err)
	}
	defer rows.Close()

	samples := make([]Sample, 0, limit)
	for rows.Next() {
		var s Sample
		var sampledAt string

		if err := rows.Scan(&sampledAt,
			&s.CPUTemp, &s.CPUFanSpeed, &s.CPUFanRPM,
			&s.GPUTemp, &s.GPUFanSpeed, &s.GPUFanRPM); err != nil {
			return nil, fmt.Errorf("scanning telemetry sample: %w", err)
		}

		t, err := time.Parse(time.RFC3339, sampledAt)
		if err != nil {
			return nil, fmt.Errorf("parsing sampled_at %q: %w", sampledAt, err)
		}
		s.Time = t

		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry samples: %w", err)
	}

	return samples, nil
}

// Prune deletes samples older than the given duration and reports how
// many rows went.
func (r *SQLiteSampleHistory) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM telemetry_samples WHERE sampled_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting telemetry samples: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}
