// Package summary rolls attendance records into per-employee summaries and
// calendar-bucketed series.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/retry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// Cache is a read-through store for Summarize results. Get returns the
// employee's current generation even on a miss; Set must drop the value when
// that generation has moved on, so a compute that raced a write is never
// served.
type Cache interface {
	Get(ctx context.Context, employeeID, key string) (stats report.SummaryStats, gen int64, hit bool, err error)
	Set(ctx context.Context, employeeID, key string, gen int64, stats report.SummaryStats) error
	Invalidate(ctx context.Context, employeeID string) error
}

type Config struct {
	// DefaultLocation is used for employees without a directory timezone.
	DefaultLocation *time.Location

	// ValidateEmployees makes unknown employees fail with
	// employee.ErrEmployeeNotFound instead of summarizing to zero.
	ValidateEmployees bool

	// Retry bounds record reads the same way the state machine bounds its
	// store calls.
	Retry retry.Policy
}

type AggregatorImpl struct {
	records   attendance.RecordRepository
	directory employee.Directory
	cache     Cache
	metrics   *metrics.Manager
	cfg       Config
}

// NewAggregator builds the aggregator. directory, cache and m may be nil.
func NewAggregator(
	records attendance.RecordRepository,
	directory employee.Directory,
	cache Cache,
	cfg Config,
	m *metrics.Manager,
) *AggregatorImpl {
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	return &AggregatorImpl{
		records:   records,
		directory: directory,
		cache:     cache,
		metrics:   m,
		cfg:       cfg,
	}
}

// Summarize implements report.Aggregator.
func (a *AggregatorImpl) Summarize(ctx context.Context, employeeID string, start, end time.Time) (report.SummaryStats, error) {
	started := time.Now()
	defer func() { a.metrics.ObserveAggregation("summarize", time.Since(started)) }()

	start, end = civil(start), civil(end)
	if err := checkQuery(employeeID, start, end); err != nil {
		return report.SummaryStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return report.SummaryStats{}, attendance.Cancelled(err)
	}

	key := cacheKey(start, end)
	var gen int64
	if a.cache != nil {
		cached, g, hit, err := a.cache.Get(ctx, employeeID, key)
		switch {
		case err != nil:
			slog.Warn("summary cache get failed", "employee_id", employeeID, "error", err)
		case hit:
			a.metrics.CacheLookup(true)
			return cached, nil
		default:
			a.metrics.CacheLookup(false)
			gen = g
		}
	}

	loc, err := a.location(ctx, employeeID)
	if err != nil {
		return report.SummaryStats{}, err
	}

	t, err := a.load(ctx, employeeID, start, end, loc)
	if err != nil {
		return report.SummaryStats{}, err
	}
	stats := t.stats(employeeID, start, end)

	if a.cache != nil {
		if err := a.cache.Set(ctx, employeeID, key, gen, stats); err != nil {
			slog.Warn("summary cache set failed", "employee_id", employeeID, "error", err)
		}
	}
	return stats, nil
}

// SummarizeBuckets implements report.Aggregator. Records are fetched once for
// the whole range and every bucket is emitted, including empty ones.
func (a *AggregatorImpl) SummarizeBuckets(
	ctx context.Context,
	employeeID string,
	start, end time.Time,
	granularity report.Granularity,
) ([]report.BucketStats, error) {
	started := time.Now()
	defer func() { a.metrics.ObserveAggregation("summarize_buckets", time.Since(started)) }()

	start, end = civil(start), civil(end)
	if err := checkQuery(employeeID, start, end); err != nil {
		return nil, err
	}
	if !granularity.Valid() {
		return nil, fmt.Errorf("%w: %q", report.ErrInvalidGranularity, granularity)
	}
	if err := ctx.Err(); err != nil {
		return nil, attendance.Cancelled(err)
	}

	loc, err := a.location(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	t, err := a.load(ctx, employeeID, start, end, loc)
	if err != nil {
		return nil, err
	}

	bs := buckets(start, end, granularity)
	out := make([]report.BucketStats, 0, len(bs))
	for _, b := range bs {
		out = append(out, report.BucketStats{
			Granularity:  granularity,
			BucketStart:  dayKey(b.start),
			BucketEnd:    dayKey(b.end),
			SummaryStats: t.stats(employeeID, b.start, b.end),
		})
	}
	return out, nil
}

// RecordChanged implements attendance.Observer by dropping cached summaries
// for the record's employee.
func (a *AggregatorImpl) RecordChanged(ctx context.Context, rec attendance.Record) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Invalidate(ctx, rec.EmployeeID); err != nil {
		slog.Error("summary cache invalidation failed", "employee_id", rec.EmployeeID, "error", err)
	}
}

func (a *AggregatorImpl) load(ctx context.Context, employeeID string, start, end time.Time, loc *time.Location) (tallies, error) {
	from, to := instantRange(start, end, loc)
	records, err := retry.Do(ctx, a.cfg.Retry, "list", func(ctx context.Context) ([]attendance.Record, error) {
		return a.records.List(ctx, attendance.RecordFilter{
			EmployeeID: employeeID,
			From:       &from,
			To:         &to,
		})
	})
	if err != nil {
		return tallies{}, fmt.Errorf("failed to list records for %s: %w", employeeID, err)
	}
	// A cancelled context must not yield a summary built from a partial read.
	if err := ctx.Err(); err != nil {
		return tallies{}, attendance.Cancelled(err)
	}
	return newTallies(records, loc), nil
}

// location resolves the calendar used to date an employee's records.
func (a *AggregatorImpl) location(ctx context.Context, employeeID string) (*time.Location, error) {
	if a.directory == nil {
		return a.cfg.DefaultLocation, nil
	}

	emp, err := a.directory.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			if a.cfg.ValidateEmployees {
				return nil, fmt.Errorf("%w: %s", employee.ErrEmployeeNotFound, employeeID)
			}
			return a.cfg.DefaultLocation, nil
		}
		return nil, fmt.Errorf("failed to look up employee %s: %w", employeeID, err)
	}

	if emp.Timezone == "" {
		return a.cfg.DefaultLocation, nil
	}
	loc, err := time.LoadLocation(emp.Timezone)
	if err != nil {
		slog.Warn("invalid employee timezone, using default", "employee_id", employeeID, "timezone", emp.Timezone)
		return a.cfg.DefaultLocation, nil
	}
	return loc, nil
}

func checkQuery(employeeID string, start, end time.Time) error {
	if !validator.IsValidIdentifier(employeeID) {
		return attendance.InvalidInput(validator.ValidationErrors{{
			Field:   "employee_id",
			Message: "employee_id is required and must be a valid identifier",
		}})
	}
	if start.After(end) {
		return fmt.Errorf("%w: %s > %s", attendance.ErrInvalidRange, dayKey(start), dayKey(end))
	}
	return nil
}

func cacheKey(start, end time.Time) string {
	return "summary:" + dayKey(start) + ":" + dayKey(end)
}
