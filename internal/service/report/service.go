package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/retry"
	"github.com/cmlabs-hris/attendance-engine/internal/service/summary"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

type Config struct {
	// Concurrency caps parallel per-employee aggregations.
	Concurrency int

	// ValidateEmployees makes an unknown employee filter fail with
	// employee.ErrEmployeeNotFound instead of yielding an empty report.
	ValidateEmployees bool

	DefaultLocation *time.Location

	Retry retry.Policy
}

type ReportServiceImpl struct {
	aggregator report.Aggregator
	records    attendance.RecordRepository
	directory  employee.Directory
	metrics    *metrics.Manager
	cfg        Config
	now        func() time.Time
}

// NewReportService builds the report builder. directory and m may be nil;
// without a directory, employees are enumerated from the records in range.
func NewReportService(
	aggregator report.Aggregator,
	records attendance.RecordRepository,
	directory employee.Directory,
	cfg Config,
	m *metrics.Manager,
) *ReportServiceImpl {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	return &ReportServiceImpl{
		aggregator: aggregator,
		records:    records,
		directory:  directory,
		metrics:    m,
		cfg:        cfg,
		now:        time.Now,
	}
}

// BuildReport implements report.ReportService.
func (s *ReportServiceImpl) BuildReport(ctx context.Context, req report.ReportRequest) (report.Report, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveAggregation("build_report", time.Since(started)) }()

	if err := req.Validate(); err != nil {
		return report.Report{}, err
	}
	start, end := req.Range()

	employees, err := s.matchEmployees(ctx, req.EmployeeID, start, end)
	if err != nil {
		return report.Report{}, err
	}

	out := report.Report{
		Type:        req.ReportType,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		EmployeeID:  req.EmployeeID,
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}

	switch req.ReportType {
	case report.ReportTypeSummary:
		out.Summaries, err = s.summaries(ctx, employees, start, end)
	case report.ReportTypeDetailed:
		out.Records, err = s.detailed(ctx, employees, start, end)
	case report.ReportTypeStatistics:
		out.Statistics, err = s.statistics(ctx, employees, start, end, req.WorkingDaysInRange)
	default:
		err = fmt.Errorf("%w: %q", report.ErrInvalidReportType, req.ReportType)
	}
	if err != nil {
		return report.Report{}, err
	}
	// Never hand out a report assembled from a partially cancelled fan-out.
	if err := ctx.Err(); err != nil {
		return report.Report{}, attendance.Cancelled(err)
	}

	s.metrics.ReportBuilt(string(req.ReportType))
	return out, nil
}

func (s *ReportServiceImpl) summaries(ctx context.Context, employees []employee.Employee, start, end time.Time) ([]report.SummaryRow, error) {
	rows := make([]report.SummaryRow, len(employees))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, emp := range employees {
		i, emp := i, emp
		g.Go(func() error {
			stats, err := s.aggregator.Summarize(gCtx, emp.ID, start, end)
			if err != nil {
				return fmt.Errorf("failed to summarize %s: %w", emp.ID, err)
			}
			rows[i] = report.SummaryRow{
				EmployeeName: emp.Name,
				Department:   emp.Department,
				SummaryStats: stats.Rounded(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ReportServiceImpl) detailed(ctx context.Context, employees []employee.Employee, start, end time.Time) ([]report.DetailedRow, error) {
	perEmployee := make([][]attendance.Record, len(employees))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, emp := range employees {
		i, emp := i, emp
		g.Go(func() error {
			from, to := dayBounds(start, end, s.location(emp))
			recs, err := s.list(gCtx, attendance.RecordFilter{
				EmployeeID: emp.ID,
				From:       &from,
				To:         &to,
			})
			if err != nil {
				return fmt.Errorf("failed to list records for %s: %w", emp.ID, err)
			}
			perEmployee[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type row struct {
		rec attendance.Record
		emp employee.Employee
	}
	var all []row
	for i, recs := range perEmployee {
		for _, rec := range recs {
			all = append(all, row{rec: rec, emp: employees[i]})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].rec, all[j].rec
		if a.ClockIn.Equal(b.ClockIn) {
			return a.ID > b.ID
		}
		return a.ClockIn.After(b.ClockIn)
	})

	rows := make([]report.DetailedRow, 0, len(all))
	for _, r := range all {
		rows = append(rows, report.DetailedRow{
			EmployeeName:   r.emp.Name,
			Department:     r.emp.Department,
			RecordResponse: attendance.ToResponse(r.rec),
		})
	}
	return rows, nil
}

// employeeSeries is one employee's share of a statistics report.
type employeeSeries struct {
	overall report.SummaryStats
	daily   []report.BucketStats
	weekly  []report.BucketStats
	monthly []report.BucketStats
}

func (s *ReportServiceImpl) statistics(
	ctx context.Context,
	employees []employee.Employee,
	start, end time.Time,
	workingDays int,
) (*report.Statistics, error) {
	parts := make([]employeeSeries, len(employees))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, emp := range employees {
		i, emp := i, emp
		g.Go(func() error {
			var err error
			p := &parts[i]
			if p.overall, err = s.aggregator.Summarize(gCtx, emp.ID, start, end); err != nil {
				return fmt.Errorf("failed to summarize %s: %w", emp.ID, err)
			}
			if p.daily, err = s.aggregator.SummarizeBuckets(gCtx, emp.ID, start, end, report.GranularityDay); err != nil {
				return fmt.Errorf("failed to build daily series for %s: %w", emp.ID, err)
			}
			if p.weekly, err = s.aggregator.SummarizeBuckets(gCtx, emp.ID, start, end, report.GranularityWeek); err != nil {
				return fmt.Errorf("failed to build weekly series for %s: %w", emp.ID, err)
			}
			if p.monthly, err = s.aggregator.SummarizeBuckets(gCtx, emp.ID, start, end, report.GranularityMonth); err != nil {
				return fmt.Errorf("failed to build monthly series for %s: %w", emp.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &report.Statistics{
		EmployeeCount: len(employees),
		Overall: report.SummaryStats{
			StartDate: start.Format(report.DateLayout),
			EndDate:   end.Format(report.DateLayout),
		},
		Daily:   summary.EmptySeries(start, end, report.GranularityDay),
		Weekly:  summary.EmptySeries(start, end, report.GranularityWeek),
		Monthly: summary.EmptySeries(start, end, report.GranularityMonth),
	}
	for _, p := range parts {
		stats.Overall = stats.Overall.Merge(p.overall)
		mergeSeries(stats.Daily, p.daily)
		mergeSeries(stats.Weekly, p.weekly)
		mergeSeries(stats.Monthly, p.monthly)
	}
	if len(employees) == 1 {
		stats.Overall.EmployeeID = employees[0].ID
	}

	stats.Insights = insights(stats.Overall, stats.Daily, workingDays, len(employees))

	stats.Overall = stats.Overall.Rounded()
	roundSeries(stats.Daily)
	roundSeries(stats.Weekly)
	roundSeries(stats.Monthly)
	return stats, nil
}

// mergeSeries adds src into dst element-wise. Both come from the same range
// and granularity, so their buckets line up.
func mergeSeries(dst, src []report.BucketStats) {
	for i := range dst {
		if i >= len(src) {
			return
		}
		dst[i].SummaryStats = dst[i].SummaryStats.Merge(src[i].SummaryStats)
	}
}

func roundSeries(series []report.BucketStats) {
	for i := range series {
		series[i] = series[i].Rounded()
	}
}

// insights derives the headline numbers. With several employees every count
// is in employee-days, so the expected days scale with the headcount.
func insights(overall report.SummaryStats, daily []report.BucketStats, workingDays, employeeCount int) report.Insights {
	in := report.Insights{
		WorkingDaysInRange: workingDays,
		AverageHoursPerDay: attendance.RoundHours(overall.AverageHoursPerDay),
	}

	expected := workingDays * employeeCount
	if expected > 0 {
		rate := decimal.NewFromInt(int64(overall.DaysWorked)).
			Div(decimal.NewFromInt(int64(expected))).
			Mul(decimal.NewFromInt(100)).
			Round(attendance.HoursPrecision)
		in.AttendanceRate = rate.InexactFloat64()
	}

	for _, b := range daily {
		if b.TotalHours > in.BusiestDayHours {
			d := b.BucketStart
			in.BusiestDay = &d
			in.BusiestDayHours = b.TotalHours
		}
	}
	in.BusiestDayHours = attendance.RoundHours(in.BusiestDayHours)
	return in
}

// matchEmployees resolves the employees a report covers.
func (s *ReportServiceImpl) matchEmployees(ctx context.Context, filter *string, start, end time.Time) ([]employee.Employee, error) {
	if filter != nil {
		if s.directory == nil {
			return []employee.Employee{{ID: *filter}}, nil
		}
		emp, err := s.directory.GetByID(ctx, *filter)
		if err != nil {
			if errors.Is(err, employee.ErrEmployeeNotFound) {
				if s.cfg.ValidateEmployees {
					return nil, fmt.Errorf("%w: %s", employee.ErrEmployeeNotFound, *filter)
				}
				return []employee.Employee{{ID: *filter}}, nil
			}
			return nil, fmt.Errorf("failed to look up employee %s: %w", *filter, err)
		}
		return []employee.Employee{emp}, nil
	}

	var employees []employee.Employee
	if s.directory != nil {
		listed, err := s.directory.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list employees: %w", err)
		}
		employees = listed
	}

	// Employees with records in range are covered even when the directory
	// does not list them. They have no timezone, so the default location
	// dates their records.
	from, to := dayBounds(start, end, s.cfg.DefaultLocation)
	recs, err := s.list(ctx, attendance.RecordFilter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	seen := make(map[string]struct{}, len(employees))
	for _, emp := range employees {
		seen[emp.ID] = struct{}{}
	}
	var unlisted []employee.Employee
	for _, rec := range recs {
		if _, ok := seen[rec.EmployeeID]; ok {
			continue
		}
		seen[rec.EmployeeID] = struct{}{}
		unlisted = append(unlisted, employee.Employee{ID: rec.EmployeeID})
	}
	sort.Slice(unlisted, func(i, j int) bool { return unlisted[i].ID < unlisted[j].ID })
	return append(employees, unlisted...), nil
}

func (s *ReportServiceImpl) list(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	return retry.Do(ctx, s.cfg.Retry, "list", func(ctx context.Context) ([]attendance.Record, error) {
		return s.records.List(ctx, filter)
	})
}

func (s *ReportServiceImpl) location(emp employee.Employee) *time.Location {
	if emp.Timezone == "" {
		return s.cfg.DefaultLocation
	}
	loc, err := time.LoadLocation(emp.Timezone)
	if err != nil {
		return s.cfg.DefaultLocation
	}
	return loc
}

func dayBounds(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(end.Year(), end.Month(), end.Day()+1, 0, 0, 0, 0, loc)
	return from, to
}
