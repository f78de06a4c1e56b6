package attendance

import (
	"context"
)

// AttendanceService is the clock-in/clock-out state machine.
type AttendanceService interface {
	// ClockIn opens a new record for the employee.
	ClockIn(ctx context.Context, req ClockInRequest) (Record, error)

	// ClockOut closes the employee's open record.
	ClockOut(ctx context.Context, req ClockOutRequest) (Record, error)

	// CurrentStatus returns the open record, or nil when the employee is absent.
	CurrentStatus(ctx context.Context, employeeID string) (*Record, error)

	// GetRecords lists an employee's records, newest first.
	GetRecords(ctx context.Context, filter RecordsFilter) ([]Record, error)
}

// Observer is notified after every successful write to a record.
type Observer interface {
	RecordChanged(ctx context.Context, record Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, record Record)

func (f ObserverFunc) RecordChanged(ctx context.Context, record Record) {
	f(ctx, record)
}
