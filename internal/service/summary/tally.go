package summary

import (
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
)

type dayTally struct {
	hours  float64
	closed int
	open   int
}

// tallies groups records by the local day of their clock-in.
type tallies struct {
	byDay map[string]*dayTally
	keys  []string // sorted, so sums are taken in a fixed order
}

func newTallies(records []attendance.Record, loc *time.Location) tallies {
	// Sum each day in clock-in order regardless of how the store sorted them.
	sorted := make([]attendance.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ClockIn.Equal(sorted[j].ClockIn) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].ClockIn.Before(sorted[j].ClockIn)
	})

	t := tallies{byDay: make(map[string]*dayTally)}
	for _, rec := range sorted {
		key := dayKey(localDay(rec.ClockIn, loc))
		d, ok := t.byDay[key]
		if !ok {
			d = &dayTally{}
			t.byDay[key] = d
			t.keys = append(t.keys, key)
		}
		if hours, ok := rec.HoursWorked(); ok {
			d.hours += hours
			d.closed++
		} else if rec.IsOpen() {
			d.open++
		}
	}
	sort.Strings(t.keys)
	return t
}

// stats computes SummaryStats over the inclusive day range.
func (t tallies) stats(employeeID string, start, end time.Time) report.SummaryStats {
	from, to := dayKey(civil(start)), dayKey(civil(end))
	s := report.SummaryStats{
		EmployeeID: employeeID,
		StartDate:  from,
		EndDate:    to,
	}

	for _, key := range t.keys {
		if key < from || key > to {
			continue
		}
		d := t.byDay[key]
		switch {
		case d.closed > 0:
			s.DaysWorked++
			s.TotalHours += d.hours
		case d.open > 0:
			s.IncompleteDays++
		}
		k := key
		if s.FirstWorkDay == nil {
			s.FirstWorkDay = &k
		}
		s.LastWorkDay = &k
	}

	s.AverageHoursPerDay = report.AverageHours(s.TotalHours, s.DaysWorked)
	return s
}
