package attendance

import (
	"time"
)

// Record is a single clock-in/clock-out interval for one employee.
// A record with a nil ClockOut is open: the employee is currently clocked in.
type Record struct {
	ID         string
	EmployeeID string
	ClockIn    time.Time
	ClockOut   *time.Time
	Location   string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsOpen reports whether the record has not been clocked out yet.
func (r Record) IsOpen() bool {
	return r.ClockOut == nil
}

// HoursWorked returns the full-precision worked hours of a closed record.
// Open records, and records whose stored interval is not valid, report false.
func (r Record) HoursWorked() (float64, bool) {
	if r.ClockOut == nil {
		return 0, false
	}
	hours, err := ComputeHours(r.ClockIn, *r.ClockOut)
	if err != nil {
		return 0, false
	}
	return hours, true
}

// Status of an employee derived from their open record.
type Status string

const (
	StatusAbsent  Status = "absent"
	StatusPresent Status = "present"
)
