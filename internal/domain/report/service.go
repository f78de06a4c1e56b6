package report

import (
	"context"
	"time"
)

// Aggregator rolls raw records into summaries. Dates are calendar days; only
// their year, month and day are used.
type Aggregator interface {
	// Summarize returns stats for one employee over [start, end] inclusive.
	Summarize(ctx context.Context, employeeID string, start, end time.Time) (SummaryStats, error)

	// SummarizeBuckets returns one zero-filled row per bucket in [start, end].
	SummarizeBuckets(ctx context.Context, employeeID string, start, end time.Time, granularity Granularity) ([]BucketStats, error)
}

// ReportService composes aggregated data into exportable reports.
type ReportService interface {
	BuildReport(ctx context.Context, req ReportRequest) (Report, error)
}
