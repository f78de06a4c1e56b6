package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
)

// AttendanceJobs watches for records left open too long. It only reports
// them; a record is closed by an explicit clock-out and nothing else.
type AttendanceJobs struct {
	records   attendance.RecordRepository
	metrics   *metrics.Manager
	threshold time.Duration
	now       func() time.Time
}

func NewAttendanceJobs(records attendance.RecordRepository, threshold time.Duration, m *metrics.Manager) *AttendanceJobs {
	return &AttendanceJobs{
		records:   records,
		metrics:   m,
		threshold: threshold,
		now:       time.Now,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	scheduler.AddJob("report_stale_open_records", interval, j.ReportStaleOpenRecords)
}

// StaleOpenRecords returns open records older than the threshold, oldest
// first, and publishes their count.
func (j *AttendanceJobs) StaleOpenRecords(ctx context.Context) ([]attendance.Record, error) {
	cutoff := j.now().UTC().Add(-j.threshold)

	stale, err := j.records.ListOpenBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale open records: %w", err)
	}

	j.metrics.SetStaleOpenRecords(len(stale))
	return stale, nil
}

// ReportStaleOpenRecords logs every open record older than the threshold.
func (j *AttendanceJobs) ReportStaleOpenRecords(ctx context.Context) error {
	stale, err := j.StaleOpenRecords(ctx)
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		slog.Debug("Cron: No stale open records found", "threshold", j.threshold)
		return nil
	}

	now := j.now().UTC()
	for _, rec := range stale {
		slog.Warn("Cron: Open record exceeds threshold",
			"employee_id", rec.EmployeeID,
			"record_id", rec.ID,
			"clock_in", rec.ClockIn.Format(time.RFC3339),
			"open_for", now.Sub(rec.ClockIn).Round(time.Minute),
		)
	}
	slog.Info("Cron: Stale open records reported", "count", len(stale), "threshold", j.threshold)
	return nil
}
