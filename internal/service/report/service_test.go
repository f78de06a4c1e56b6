package report

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/retry"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/cmlabs-hris/attendance-engine/internal/service/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store *memory.RecordStore
	dir   *memory.Directory
	svc   *ReportServiceImpl
	seq   int
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	store := memory.NewRecordStore()
	dir := memory.NewDirectory(
		employee.Employee{ID: "emp-1", Name: "Ani", Department: "Engineering"},
		employee.Employee{ID: "emp-2", Name: "Budi", Department: "Operations"},
	)
	agg := summary.NewAggregator(store, dir, nil, summary.Config{ValidateEmployees: cfg.ValidateEmployees}, nil)
	svc := NewReportService(agg, store, dir, cfg, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return &testEnv{store: store, dir: dir, svc: svc}
}

func (e *testEnv) shift(t *testing.T, employeeID string, in time.Time, hours float64) {
	t.Helper()
	e.seq++
	id := fmt.Sprintf("rec-%03d", e.seq)
	_, err := e.store.Create(context.Background(), attendance.Record{ID: id, EmployeeID: employeeID, ClockIn: in})
	require.NoError(t, err)
	if hours > 0 {
		_, err = e.store.Close(context.Background(), id, in.Add(time.Duration(hours*float64(time.Hour))), "", "")
		require.NoError(t, err)
	}
}

func ptr(s string) *string { return &s }

func TestBuildReport_Summary(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8.5)
	env.shift(t, "emp-1", time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC), 0)
	env.shift(t, "emp-2", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 6)

	got, err := env.svc.BuildReport(context.Background(), report.ReportRequest{
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-07",
		ReportType: report.ReportTypeSummary,
	})

	require.NoError(t, err)
	assert.Equal(t, report.ReportTypeSummary, got.Type)
	assert.Equal(t, "2024-03-01T00:00:00Z", got.GeneratedAt)
	require.Len(t, got.Summaries, 2)

	ani := got.Summaries[0]
	assert.Equal(t, "Ani", ani.EmployeeName)
	assert.Equal(t, "Engineering", ani.Department)
	assert.Equal(t, 1, ani.DaysWorked)
	assert.Equal(t, 8.5, ani.TotalHours)
	assert.Equal(t, 1, ani.IncompleteDays)

	assert.Equal(t, "Budi", got.Summaries[1].EmployeeName)
	assert.Equal(t, 6.0, got.Summaries[1].TotalHours)
	assert.Nil(t, got.Records)
	assert.Nil(t, got.Statistics)
}

func TestBuildReport_SummaryWithFilter(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)
	env.shift(t, "emp-2", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 6)

	got, err := env.svc.BuildReport(context.Background(), report.ReportRequest{
		EmployeeID: ptr("emp-2"),
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-01",
		ReportType: report.ReportTypeSummary,
	})

	require.NoError(t, err)
	require.Len(t, got.Summaries, 1)
	assert.Equal(t, "emp-2", got.Summaries[0].EmployeeID)
}

func TestBuildReport_UnknownEmployee(t *testing.T) {
	req := report.ReportRequest{
		EmployeeID: ptr("ghost"),
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-07",
		ReportType: report.ReportTypeSummary,
	}

	lenient := newTestEnv(t, Config{})
	got, err := lenient.svc.BuildReport(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, got.Summaries, 1)
	assert.Equal(t, 0, got.Summaries[0].DaysWorked)

	strict := newTestEnv(t, Config{ValidateEmployees: true})
	_, err = strict.svc.BuildReport(context.Background(), req)
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
}

func TestBuildReport_Detailed(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)
	env.shift(t, "emp-2", time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC), 7)
	env.shift(t, "emp-1", time.Date(2024, 2, 3, 8, 0, 0, 0, time.UTC), 0)
	env.shift(t, "emp-2", time.Date(2024, 2, 9, 8, 0, 0, 0, time.UTC), 8)

	got, err := env.svc.BuildReport(context.Background(), report.ReportRequest{
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-07",
		ReportType: report.ReportTypeDetailed,
	})

	require.NoError(t, err)
	require.Len(t, got.Records, 3)
	assert.Equal(t, "2024-02-03T08:00:00Z", got.Records[0].ClockIn)
	assert.Equal(t, "open", got.Records[0].Status)
	assert.Nil(t, got.Records[0].HoursWorked)
	assert.Equal(t, "Budi", got.Records[1].EmployeeName)
	assert.Equal(t, "Operations", got.Records[1].Department)
	require.NotNil(t, got.Records[1].HoursWorked)
	assert.Equal(t, 7.0, *got.Records[1].HoursWorked)
	assert.Equal(t, "Ani", got.Records[2].EmployeeName)
}

func TestBuildReport_StatisticsZeroFillsDailyBuckets(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)
	env.shift(t, "emp-1", time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC), 6)
	env.shift(t, "emp-1", time.Date(2024, 2, 6, 9, 0, 0, 0, time.UTC), 9)

	got, err := env.svc.BuildReport(context.Background(), report.ReportRequest{
		EmployeeID:         ptr("emp-1"),
		StartDate:          "2024-02-01",
		EndDate:            "2024-02-07",
		ReportType:         report.ReportTypeStatistics,
		WorkingDaysInRange: 5,
	})

	require.NoError(t, err)
	stats := got.Statistics
	require.NotNil(t, stats)
	require.Len(t, stats.Daily, 7)
	assert.Equal(t, 0, stats.Daily[1].DaysWorked)
	assert.Equal(t, 8.0, stats.Daily[0].TotalHours)
	require.Len(t, stats.Weekly, 2)
	assert.Equal(t, "2024-02-04", stats.Weekly[0].BucketEnd)
	assert.Equal(t, "2024-02-05", stats.Weekly[1].BucketStart)
	require.Len(t, stats.Monthly, 1)

	assert.Equal(t, 1, stats.EmployeeCount)
	assert.Equal(t, 3, stats.Overall.DaysWorked)
	assert.Equal(t, 23.0, stats.Overall.TotalHours)
	assert.Equal(t, 60.0, stats.Insights.AttendanceRate)
	assert.Equal(t, 7.67, stats.Insights.AverageHoursPerDay)
	require.NotNil(t, stats.Insights.BusiestDay)
	assert.Equal(t, "2024-02-06", *stats.Insights.BusiestDay)
	assert.Equal(t, 9.0, stats.Insights.BusiestDayHours)
}

func TestBuildReport_StatisticsAcrossEmployees(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)
	env.shift(t, "emp-2", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 4)
	env.shift(t, "emp-2", time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC), 8)

	got, err := env.svc.BuildReport(context.Background(), report.ReportRequest{
		StartDate:          "2024-02-01",
		EndDate:            "2024-02-02",
		ReportType:         report.ReportTypeStatistics,
		WorkingDaysInRange: 2,
	})

	require.NoError(t, err)
	stats := got.Statistics
	assert.Equal(t, 2, stats.EmployeeCount)
	assert.Equal(t, 3, stats.Overall.DaysWorked)
	assert.Equal(t, 75.0, stats.Insights.AttendanceRate)
	require.Len(t, stats.Daily, 2)
	assert.Equal(t, 2, stats.Daily[0].DaysWorked)
	assert.Equal(t, 12.0, stats.Daily[0].TotalHours)
	assert.Equal(t, "2024-02-01", *stats.Insights.BusiestDay)
}

func TestBuildReport_StatisticsWithoutWorkingDays(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)

	got, err := env.svc.BuildReport(context.Background(), report.ReportRequest{
		EmployeeID: ptr("emp-1"),
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-01",
		ReportType: report.ReportTypeStatistics,
	})

	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Statistics.Insights.AttendanceRate)
}

func TestBuildReport_WithoutDirectoryUsesRecordedEmployees(t *testing.T) {
	store := memory.NewRecordStore()
	agg := summary.NewAggregator(store, nil, nil, summary.Config{}, nil)
	svc := NewReportService(agg, store, nil, Config{}, nil)
	env := &testEnv{store: store}
	env.shift(t, "emp-b", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)
	env.shift(t, "emp-a", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)
	env.shift(t, "emp-c", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), 8)

	got, err := svc.BuildReport(context.Background(), report.ReportRequest{
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-29",
		ReportType: report.ReportTypeSummary,
	})

	require.NoError(t, err)
	require.Len(t, got.Summaries, 2)
	assert.Equal(t, "emp-a", got.Summaries[0].EmployeeID)
	assert.Equal(t, "emp-b", got.Summaries[1].EmployeeID)
}

func TestBuildReport_CoversEmployeesMissingFromDirectory(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.shift(t, "emp-x", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)
	env.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 6)
	env.shift(t, "emp-y", time.Date(2024, 2, 9, 9, 0, 0, 0, time.UTC), 8)
	ctx := context.Background()

	summaries, err := env.svc.BuildReport(ctx, report.ReportRequest{
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-07",
		ReportType: report.ReportTypeSummary,
	})
	require.NoError(t, err)
	require.Len(t, summaries.Summaries, 3, "directory employees plus emp-x; emp-y is out of range")
	assert.Equal(t, "emp-1", summaries.Summaries[0].EmployeeID)
	assert.Equal(t, "emp-2", summaries.Summaries[1].EmployeeID)

	unlisted := summaries.Summaries[2]
	assert.Equal(t, "emp-x", unlisted.EmployeeID)
	assert.Empty(t, unlisted.EmployeeName)
	assert.Empty(t, unlisted.Department)
	assert.Equal(t, 1, unlisted.DaysWorked)
	assert.Equal(t, 8.0, unlisted.TotalHours)

	detailed, err := env.svc.BuildReport(ctx, report.ReportRequest{
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-07",
		ReportType: report.ReportTypeDetailed,
	})
	require.NoError(t, err)
	require.Len(t, detailed.Records, 2)
	var ids []string
	for _, row := range detailed.Records {
		ids = append(ids, row.EmployeeID)
	}
	assert.ElementsMatch(t, []string{"emp-1", "emp-x"}, ids)
}

// flakyLister fails the first n List calls with ErrStoreUnavailable.
type flakyLister struct {
	*memory.RecordStore
	failures atomic.Int32
}

func (f *flakyLister) List(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, attendance.ErrStoreUnavailable
	}
	return f.RecordStore.List(ctx, filter)
}

func TestBuildReport_RetriesStoreOutage(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)

	policy := retry.Policy{Attempts: 3, BaseDelay: time.Millisecond}
	store := &flakyLister{RecordStore: env.store}
	agg := summary.NewAggregator(store, env.dir, nil, summary.Config{Retry: policy}, nil)
	svc := NewReportService(agg, store, env.dir, Config{Retry: policy}, nil)

	store.failures.Store(2)
	got, err := svc.BuildReport(context.Background(), report.ReportRequest{
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-07",
		ReportType: report.ReportTypeDetailed,
	})
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "emp-1", got.Records[0].EmployeeID)

	store.failures.Store(10)
	_, err = NewReportService(agg, store, env.dir, Config{}, nil).BuildReport(context.Background(), report.ReportRequest{
		StartDate:  "2024-02-01",
		EndDate:    "2024-02-07",
		ReportType: report.ReportTypeDetailed,
	})
	assert.ErrorIs(t, err, attendance.ErrStoreUnavailable)
}

func TestBuildReport_Errors(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	_, err := env.svc.BuildReport(ctx, report.ReportRequest{
		StartDate: "2024-02-07", EndDate: "2024-02-01", ReportType: report.ReportTypeSummary,
	})
	assert.ErrorIs(t, err, attendance.ErrInvalidRange)

	_, err = env.svc.BuildReport(ctx, report.ReportRequest{
		StartDate: "2024-02-01", EndDate: "2024-02-07", ReportType: "pdf",
	})
	assert.ErrorIs(t, err, attendance.ErrInvalidInput)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	got, err := env.svc.BuildReport(cancelled, report.ReportRequest{
		StartDate: "2024-02-01", EndDate: "2024-02-07", ReportType: report.ReportTypeStatistics,
	})
	assert.ErrorIs(t, err, attendance.ErrCancelled)
	assert.Equal(t, report.Report{}, got)
}
