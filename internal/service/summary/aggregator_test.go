package summary

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/retry"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := time.Parse(report.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	store *memory.RecordStore
	seq   int
}

func newFixture() *fixture {
	return &fixture{store: memory.NewRecordStore()}
}

func (f *fixture) shift(t *testing.T, employeeID string, in time.Time, hours float64) {
	t.Helper()
	f.seq++
	id := fmt.Sprintf("rec-%03d", f.seq)
	_, err := f.store.Create(context.Background(), attendance.Record{ID: id, EmployeeID: employeeID, ClockIn: in})
	require.NoError(t, err)
	if hours > 0 {
		out := in.Add(time.Duration(hours * float64(time.Hour)))
		_, err = f.store.Close(context.Background(), id, out, "", "")
		require.NoError(t, err)
	}
}

func TestSummarize_FullShift(t *testing.T) {
	f := newFixture()
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8.5)
	agg := NewAggregator(f.store, nil, nil, Config{}, nil)

	got, err := agg.Summarize(context.Background(), "emp-1", day("2024-02-01"), day("2024-02-01"))

	require.NoError(t, err)
	assert.Equal(t, 1, got.DaysWorked)
	assert.Equal(t, 8.5, got.TotalHours)
	assert.Equal(t, 8.5, got.AverageHoursPerDay)
	assert.Equal(t, 0, got.IncompleteDays)
	require.NotNil(t, got.FirstWorkDay)
	assert.Equal(t, "2024-02-01", *got.FirstWorkDay)
	assert.Equal(t, "2024-02-01", *got.LastWorkDay)
}

func TestSummarize_OpenRecordIsIncomplete(t *testing.T) {
	f := newFixture()
	f.shift(t, "emp-1", time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC), 0)
	agg := NewAggregator(f.store, nil, nil, Config{}, nil)

	got, err := agg.Summarize(context.Background(), "emp-1", day("2024-02-02"), day("2024-02-02"))

	require.NoError(t, err)
	assert.Equal(t, 0, got.DaysWorked)
	assert.Equal(t, 1, got.IncompleteDays)
	assert.Equal(t, 0.0, got.TotalHours)
	assert.Equal(t, 0.0, got.AverageHoursPerDay)
}

func TestSummarize_DayWithClosedAndOpenRecordIsWorked(t *testing.T) {
	f := newFixture()
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC), 4)
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 13, 0, 0, 0, time.UTC), 0)
	agg := NewAggregator(f.store, nil, nil, Config{}, nil)

	got, err := agg.Summarize(context.Background(), "emp-1", day("2024-02-01"), day("2024-02-01"))

	require.NoError(t, err)
	assert.Equal(t, 1, got.DaysWorked)
	assert.Equal(t, 0, got.IncompleteDays)
	assert.Equal(t, 4.0, got.TotalHours)
}

func TestSummarize_MultipleShiftsCountOneDay(t *testing.T) {
	f := newFixture()
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC), 4)
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 13, 0, 0, 0, time.UTC), 3.5)
	f.shift(t, "emp-1", time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC), 8)
	agg := NewAggregator(f.store, nil, nil, Config{}, nil)

	got, err := agg.Summarize(context.Background(), "emp-1", day("2024-02-01"), day("2024-02-05"))

	require.NoError(t, err)
	assert.Equal(t, 2, got.DaysWorked)
	assert.Equal(t, 15.5, got.TotalHours)
	assert.Equal(t, 7.75, got.AverageHoursPerDay)
	assert.Equal(t, "2024-02-01", *got.FirstWorkDay)
	assert.Equal(t, "2024-02-03", *got.LastWorkDay)
}

func TestSummarize_RangeAdditivity(t *testing.T) {
	f := newFixture()
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 7.3)
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC), 1.1)
	f.shift(t, "emp-1", time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC), 8.7)
	agg := NewAggregator(f.store, nil, nil, Config{}, nil)
	ctx := context.Background()

	a, err := agg.Summarize(ctx, "emp-1", day("2024-02-01"), day("2024-02-01"))
	require.NoError(t, err)
	b, err := agg.Summarize(ctx, "emp-1", day("2024-02-02"), day("2024-02-02"))
	require.NoError(t, err)
	both, err := agg.Summarize(ctx, "emp-1", day("2024-02-01"), day("2024-02-02"))
	require.NoError(t, err)

	assert.Equal(t, both.DaysWorked, a.DaysWorked+b.DaysWorked)
	assert.InDelta(t, both.TotalHours, a.TotalHours+b.TotalHours, 1e-9)
}

func TestSummarize_Deterministic(t *testing.T) {
	f := newFixture()
	for i := 0; i < 20; i++ {
		f.shift(t, "emp-1", time.Date(2024, 2, 1+i, 9, 0, 0, 0, time.UTC), 7.1+float64(i)*0.37)
	}
	agg := NewAggregator(f.store, nil, nil, Config{}, nil)
	ctx := context.Background()

	first, err := agg.Summarize(ctx, "emp-1", day("2024-02-01"), day("2024-02-29"))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := agg.Summarize(ctx, "emp-1", day("2024-02-01"), day("2024-02-29"))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSummarize_BucketsByLocalClockInDate(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	f := newFixture()
	// 2024-02-01 20:00 UTC is 2024-02-02 03:00 in Jakarta.
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 20, 0, 0, 0, time.UTC), 6)
	dir := memory.NewDirectory(employee.Employee{ID: "emp-1", Name: "Ani", Timezone: "Asia/Jakarta"})
	ctx := context.Background()

	utc := NewAggregator(f.store, nil, nil, Config{}, nil)
	got, err := utc.Summarize(ctx, "emp-1", day("2024-02-01"), day("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, got.DaysWorked)

	local := NewAggregator(f.store, dir, nil, Config{}, nil)
	got, err = local.Summarize(ctx, "emp-1", day("2024-02-01"), day("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, 0, got.DaysWorked)

	got, err = local.Summarize(ctx, "emp-1", day("2024-02-02"), day("2024-02-02"))
	require.NoError(t, err)
	assert.Equal(t, 1, got.DaysWorked)

	byDefault := NewAggregator(f.store, nil, nil, Config{DefaultLocation: jakarta}, nil)
	got, err = byDefault.Summarize(ctx, "emp-1", day("2024-02-02"), day("2024-02-02"))
	require.NoError(t, err)
	assert.Equal(t, 1, got.DaysWorked)
}

func TestSummarize_InvalidInput(t *testing.T) {
	agg := NewAggregator(memory.NewRecordStore(), nil, nil, Config{}, nil)
	ctx := context.Background()

	_, err := agg.Summarize(ctx, "emp-1", day("2024-02-02"), day("2024-02-01"))
	assert.ErrorIs(t, err, attendance.ErrInvalidRange)

	_, err = agg.Summarize(ctx, "", day("2024-02-01"), day("2024-02-01"))
	assert.ErrorIs(t, err, attendance.ErrInvalidInput)
}

func TestSummarize_Cancelled(t *testing.T) {
	agg := NewAggregator(memory.NewRecordStore(), nil, nil, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := agg.Summarize(ctx, "emp-1", day("2024-02-01"), day("2024-02-01"))

	assert.ErrorIs(t, err, attendance.ErrCancelled)
	assert.Equal(t, report.SummaryStats{}, got)
}

func TestSummarize_UnknownEmployee(t *testing.T) {
	f := newFixture()
	dir := memory.NewDirectory()
	ctx := context.Background()

	lenient := NewAggregator(f.store, dir, nil, Config{}, nil)
	got, err := lenient.Summarize(ctx, "ghost", day("2024-02-01"), day("2024-02-07"))
	require.NoError(t, err)
	assert.Equal(t, 0, got.DaysWorked)
	assert.Nil(t, got.FirstWorkDay)

	strict := NewAggregator(f.store, dir, nil, Config{ValidateEmployees: true}, nil)
	_, err = strict.Summarize(ctx, "ghost", day("2024-02-01"), day("2024-02-07"))
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
}

func TestSummarize_CacheInvalidatedOnRecordChange(t *testing.T) {
	f := newFixture()
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)
	agg := NewAggregator(f.store, nil, cache.NewMemory(time.Hour), Config{}, nil)
	ctx := context.Background()

	before, err := agg.Summarize(ctx, "emp-1", day("2024-02-01"), day("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, 8.0, before.TotalHours)

	f.shift(t, "emp-1", time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC), 2)

	// Without notification the cached value is still served.
	stale, err := agg.Summarize(ctx, "emp-1", day("2024-02-01"), day("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, 8.0, stale.TotalHours)

	agg.RecordChanged(ctx, attendance.Record{EmployeeID: "emp-1"})

	after, err := agg.Summarize(ctx, "emp-1", day("2024-02-01"), day("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, 10.0, after.TotalHours)
}

func TestSummarizeBuckets_DailyZeroFilled(t *testing.T) {
	f := newFixture()
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)
	f.shift(t, "emp-1", time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC), 6)
	f.shift(t, "emp-1", time.Date(2024, 2, 6, 9, 0, 0, 0, time.UTC), 7)
	agg := NewAggregator(f.store, nil, nil, Config{}, nil)

	got, err := agg.SummarizeBuckets(context.Background(), "emp-1", day("2024-02-01"), day("2024-02-07"), report.GranularityDay)

	require.NoError(t, err)
	require.Len(t, got, 7)
	worked := 0
	for i, b := range got {
		want := day("2024-02-01").AddDate(0, 0, i).Format(report.DateLayout)
		assert.Equal(t, want, b.BucketStart)
		assert.Equal(t, want, b.BucketEnd)
		assert.Equal(t, report.GranularityDay, b.Granularity)
		worked += b.DaysWorked
	}
	assert.Equal(t, 3, worked)
	assert.Equal(t, 0, got[1].DaysWorked)
	assert.Equal(t, 0.0, got[1].TotalHours)
	assert.Equal(t, 6.0, got[2].TotalHours)
}

func TestSummarizeBuckets_WeeksStartMonday(t *testing.T) {
	f := newFixture()
	// 2024-02-04 is a Sunday, 2024-02-05 a Monday.
	f.shift(t, "emp-1", time.Date(2024, 2, 4, 9, 0, 0, 0, time.UTC), 5)
	f.shift(t, "emp-1", time.Date(2024, 2, 5, 9, 0, 0, 0, time.UTC), 8)
	agg := NewAggregator(f.store, nil, nil, Config{}, nil)

	got, err := agg.SummarizeBuckets(context.Background(), "emp-1", day("2024-02-01"), day("2024-02-14"), report.GranularityWeek)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-02-01", got[0].BucketStart)
	assert.Equal(t, "2024-02-04", got[0].BucketEnd)
	assert.Equal(t, 5.0, got[0].TotalHours)
	assert.Equal(t, "2024-02-05", got[1].BucketStart)
	assert.Equal(t, "2024-02-11", got[1].BucketEnd)
	assert.Equal(t, 8.0, got[1].TotalHours)
	assert.Equal(t, "2024-02-12", got[2].BucketStart)
	assert.Equal(t, "2024-02-14", got[2].BucketEnd)
}

func TestSummarizeBuckets_MonthAndYear(t *testing.T) {
	f := newFixture()
	f.shift(t, "emp-1", time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC), 8)
	f.shift(t, "emp-1", time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), 8)
	f.shift(t, "emp-1", time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC), 8)
	agg := NewAggregator(f.store, nil, nil, Config{}, nil)
	ctx := context.Background()

	months, err := agg.SummarizeBuckets(ctx, "emp-1", day("2024-01-15"), day("2024-03-10"), report.GranularityMonth)
	require.NoError(t, err)
	require.Len(t, months, 3)
	assert.Equal(t, "2024-01-15", months[0].BucketStart)
	assert.Equal(t, "2024-01-31", months[0].BucketEnd)
	assert.Equal(t, "2024-02-01", months[1].BucketStart)
	assert.Equal(t, "2024-02-29", months[1].BucketEnd)
	assert.Equal(t, 1, months[1].DaysWorked)
	assert.Equal(t, "2024-03-10", months[2].BucketEnd)
	assert.Equal(t, 0, months[2].DaysWorked)

	years, err := agg.SummarizeBuckets(ctx, "emp-1", day("2024-01-01"), day("2025-06-30"), report.GranularityYear)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, 2, years[0].DaysWorked)
	assert.Equal(t, "2024-12-31", years[0].BucketEnd)
	assert.Equal(t, 1, years[1].DaysWorked)
	assert.Equal(t, "2025-06-30", years[1].BucketEnd)
}

func TestSummarizeBuckets_InvalidGranularity(t *testing.T) {
	agg := NewAggregator(memory.NewRecordStore(), nil, nil, Config{}, nil)

	_, err := agg.SummarizeBuckets(context.Background(), "emp-1", day("2024-02-01"), day("2024-02-07"), "fortnight")

	assert.ErrorIs(t, err, report.ErrInvalidGranularity)
}

// flakyLister fails the first n List calls with ErrStoreUnavailable.
type flakyLister struct {
	*memory.RecordStore
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakyLister) List(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return nil, attendance.ErrStoreUnavailable
	}
	return f.RecordStore.List(ctx, filter)
}

func TestSummarize_RetriesStoreOutage(t *testing.T) {
	f := newFixture()
	f.shift(t, "emp-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 8)
	store := &flakyLister{RecordStore: f.store}

	t.Run("recovers within the attempt budget", func(t *testing.T) {
		store.failures.Store(2)
		store.calls.Store(0)
		agg := NewAggregator(store, nil, nil, Config{
			Retry: retry.Policy{Attempts: 3, BaseDelay: time.Millisecond},
		}, nil)

		got, err := agg.Summarize(context.Background(), "emp-1", day("2024-02-01"), day("2024-02-01"))
		require.NoError(t, err)
		assert.Equal(t, 8.0, got.TotalHours)
		assert.Equal(t, int32(3), store.calls.Load())
	})

	t.Run("surfaces the outage once the budget is spent", func(t *testing.T) {
		store.failures.Store(5)
		store.calls.Store(0)
		agg := NewAggregator(store, nil, nil, Config{
			Retry: retry.Policy{Attempts: 2, BaseDelay: time.Millisecond},
		}, nil)

		_, err := agg.SummarizeBuckets(context.Background(), "emp-1", day("2024-02-01"), day("2024-02-07"), report.GranularityDay)
		assert.ErrorIs(t, err, attendance.ErrStoreUnavailable)
		assert.Equal(t, int32(2), store.calls.Load())
	})
}
