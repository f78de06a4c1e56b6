package report

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

const DateLayout = "2006-01-02"

type ReportType string

const (
	ReportTypeSummary    ReportType = "summary"
	ReportTypeDetailed   ReportType = "detailed"
	ReportTypeStatistics ReportType = "statistics"
)

// Granularity is the calendar bucket size used for trend aggregation.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityYear:
		return true
	}
	return false
}

// ========================================
// SUMMARY STATS
// ========================================

// SummaryStats is derived per (employee, start, end). TotalHours and
// AverageHoursPerDay are kept at full precision; use Rounded for display.
type SummaryStats struct {
	EmployeeID         string  `json:"employee_id,omitempty"`
	StartDate          string  `json:"start_date"`
	EndDate            string  `json:"end_date"`
	DaysWorked         int     `json:"days_worked"`
	TotalHours         float64 `json:"total_hours"`
	AverageHoursPerDay float64 `json:"average_hours_per_day"`
	IncompleteDays     int     `json:"incomplete_days"`
	FirstWorkDay       *string `json:"first_work_day"`
	LastWorkDay        *string `json:"last_work_day"`
}

// Rounded returns a copy with hour values rounded for display.
func (s SummaryStats) Rounded() SummaryStats {
	s.TotalHours = attendance.RoundHours(s.TotalHours)
	s.AverageHoursPerDay = attendance.RoundHours(s.AverageHoursPerDay)
	return s
}

// Merge adds o into s. Day counts are summed, so merged stats over several
// employees count employee-days.
func (s SummaryStats) Merge(o SummaryStats) SummaryStats {
	s.DaysWorked += o.DaysWorked
	s.IncompleteDays += o.IncompleteDays
	s.TotalHours += o.TotalHours
	s.AverageHoursPerDay = AverageHours(s.TotalHours, s.DaysWorked)
	s.FirstWorkDay = minDay(s.FirstWorkDay, o.FirstWorkDay)
	s.LastWorkDay = maxDay(s.LastWorkDay, o.LastWorkDay)
	return s
}

// AverageHours is total/days, or 0 when no day was worked.
func AverageHours(total float64, days int) float64 {
	if days == 0 {
		return 0
	}
	return total / float64(days)
}

// YYYY-MM-DD strings order lexically.
func minDay(a, b *string) *string {
	if a == nil {
		return b
	}
	if b == nil || *a <= *b {
		return a
	}
	return b
}

func maxDay(a, b *string) *string {
	if a == nil {
		return b
	}
	if b == nil || *a >= *b {
		return a
	}
	return b
}

// BucketStats is one row of a bucketed series. Bucket bounds are clipped to
// the requested range and are inclusive.
type BucketStats struct {
	Granularity Granularity `json:"granularity"`
	BucketStart string      `json:"bucket_start"`
	BucketEnd   string      `json:"bucket_end"`
	SummaryStats
}

func (b BucketStats) Rounded() BucketStats {
	b.SummaryStats = b.SummaryStats.Rounded()
	return b
}

// ========================================
// REPORT REQUEST
// ========================================

// ReportRequest is a read-only query descriptor.
type ReportRequest struct {
	EmployeeID *string    `json:"employee_id,omitempty"`
	StartDate  string     `json:"start_date"` // YYYY-MM-DD
	EndDate    string     `json:"end_date"`   // YYYY-MM-DD
	ReportType ReportType `json:"report_type"`

	// WorkingDaysInRange is supplied by the caller's calendar policy and is
	// only used by the statistics report.
	WorkingDaysInRange int `json:"working_days_in_range"`
}

func (r *ReportRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.EmployeeID != nil && !validator.IsValidIdentifier(*r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id must be a valid identifier",
		})
	}

	start, startOK := validator.IsValidDate(r.StartDate)
	if !startOK {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date must be in YYYY-MM-DD format",
		})
	}

	end, endOK := validator.IsValidDate(r.EndDate)
	if !endOK {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must be in YYYY-MM-DD format",
		})
	}

	validTypes := []string{string(ReportTypeSummary), string(ReportTypeDetailed), string(ReportTypeStatistics)}
	if !validator.IsInSlice(string(r.ReportType), validTypes) {
		errs = append(errs, validator.ValidationError{
			Field:   "report_type",
			Message: "report_type must be one of: summary, detailed, statistics",
		})
	}

	if r.WorkingDaysInRange < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "working_days_in_range",
			Message: "working_days_in_range must not be negative",
		})
	}

	if len(errs) > 0 {
		return attendance.InvalidInput(errs)
	}

	if start.After(end) {
		return fmt.Errorf("%w: %s > %s", attendance.ErrInvalidRange, r.StartDate, r.EndDate)
	}

	return nil
}

// Range returns the parsed start and end days. Call after Validate.
func (r *ReportRequest) Range() (time.Time, time.Time) {
	start, _ := time.Parse(DateLayout, r.StartDate)
	end, _ := time.Parse(DateLayout, r.EndDate)
	return start, end
}

// ========================================
// REPORT
// ========================================

// Report is the plain structured value handed to exporters. Exactly one of
// Summaries, Records or Statistics is populated, matching Type.
type Report struct {
	Type        ReportType `json:"report_type"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	EmployeeID  *string    `json:"employee_id,omitempty"`
	GeneratedAt string     `json:"generated_at"`

	Summaries  []SummaryRow  `json:"summaries,omitempty"`
	Records    []DetailedRow `json:"records,omitempty"`
	Statistics *Statistics   `json:"statistics,omitempty"`
}

type SummaryRow struct {
	EmployeeName string `json:"employee_name"`
	Department   string `json:"department"`
	SummaryStats
}

type DetailedRow struct {
	EmployeeName string `json:"employee_name"`
	Department   string `json:"department"`
	attendance.RecordResponse
}

type Statistics struct {
	EmployeeCount int           `json:"employee_count"`
	Overall       SummaryStats  `json:"overall"`
	Daily         []BucketStats `json:"daily"`
	Weekly        []BucketStats `json:"weekly"`
	Monthly       []BucketStats `json:"monthly"`
	Insights      Insights      `json:"insights"`
}

type Insights struct {
	WorkingDaysInRange int     `json:"working_days_in_range"`
	AttendanceRate     float64 `json:"attendance_rate"` // percentage
	AverageHoursPerDay float64 `json:"average_hours_per_day"`
	BusiestDay         *string `json:"busiest_day"`
	BusiestDayHours    float64 `json:"busiest_day_hours"`
}
