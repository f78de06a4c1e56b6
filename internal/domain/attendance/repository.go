package attendance

import (
	"context"
	"time"
)

// RecordFilter selects records by employee and by clock-in instant.
// From is inclusive and To is exclusive; nil bounds are open.
type RecordFilter struct {
	EmployeeID string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// RecordRepository is the durable record store the engine depends on.
type RecordRepository interface {
	// Create persists a new open record. It must fail with ErrAlreadyClockedIn
	// when the employee already has an open record, atomically with the insert.
	Create(ctx context.Context, record Record) (Record, error)

	// GetOpen returns the employee's open record, or nil when there is none.
	GetOpen(ctx context.Context, employeeID string) (*Record, error)

	// Close sets clock_out on the open record with the given id. It must fail
	// with ErrNotClockedIn if the record is already closed.
	Close(ctx context.Context, id string, clockOut time.Time, location, notes string) (Record, error)

	// List returns records matching filter ordered by clock_in descending.
	// A zero Limit means no limit.
	List(ctx context.Context, filter RecordFilter) ([]Record, error)

	// ListOpenBefore returns open records whose clock_in is before the cutoff.
	ListOpenBefore(ctx context.Context, cutoff time.Time) ([]Record, error)
}
