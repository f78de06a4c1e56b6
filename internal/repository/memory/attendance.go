// Package memory provides in-process implementations of the engine's stores,
// used in development mode and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

// RecordStore keeps records in maps guarded by a single RWMutex. The open
// index enforces at most one open record per employee inside Create.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]attendance.Record
	open    map[string]string // employee id -> open record id
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]attendance.Record),
		open:    make(map[string]string),
	}
}

// Create implements attendance.RecordRepository.
func (s *RecordStore) Create(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Record{}, attendance.Cancelled(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return attendance.Record{}, fmt.Errorf("record %s already exists", rec.ID)
	}
	if rec.IsOpen() {
		if _, busy := s.open[rec.EmployeeID]; busy {
			return attendance.Record{}, attendance.ErrAlreadyClockedIn
		}
		s.open[rec.EmployeeID] = rec.ID
	}
	s.records[rec.ID] = clone(rec)
	return clone(rec), nil
}

// GetOpen implements attendance.RecordRepository.
func (s *RecordStore) GetOpen(ctx context.Context, employeeID string) (*attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, attendance.Cancelled(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.open[employeeID]
	if !ok {
		return nil, nil
	}
	rec := clone(s.records[id])
	return &rec, nil
}

// Close implements attendance.RecordRepository.
func (s *RecordStore) Close(ctx context.Context, id string, clockOut time.Time, location, notes string) (attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Record{}, attendance.Cancelled(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	if !rec.IsOpen() {
		return attendance.Record{}, attendance.ErrNotClockedIn
	}

	out := clockOut
	rec.ClockOut = &out
	rec.Location = location
	rec.Notes = notes
	rec.UpdatedAt = clockOut
	s.records[id] = rec
	delete(s.open, rec.EmployeeID)
	return clone(rec), nil
}

// List implements attendance.RecordRepository.
func (s *RecordStore) List(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, attendance.Cancelled(err)
	}

	s.mu.RLock()
	var out []attendance.Record
	for _, rec := range s.records {
		if filter.EmployeeID != "" && rec.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.From != nil && rec.ClockIn.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !rec.ClockIn.Before(*filter.To) {
			continue
		}
		out = append(out, clone(rec))
	}
	s.mu.RUnlock()

	// clock_in DESC, id DESC for a stable page order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClockIn.Equal(out[j].ClockIn) {
			return out[i].ID > out[j].ID
		}
		return out[i].ClockIn.After(out[j].ClockIn)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []attendance.Record{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	if out == nil {
		out = []attendance.Record{}
	}
	return out, nil
}

// ListOpenBefore implements attendance.RecordRepository.
func (s *RecordStore) ListOpenBefore(ctx context.Context, cutoff time.Time) ([]attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, attendance.Cancelled(err)
	}

	s.mu.RLock()
	out := make([]attendance.Record, 0, len(s.open))
	for _, id := range s.open {
		rec := s.records[id]
		if rec.ClockIn.Before(cutoff) {
			out = append(out, clone(rec))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClockIn.Before(out[j].ClockIn) })
	return out, nil
}

// clone copies the ClockOut pointer so callers never share state with the store.
func clone(rec attendance.Record) attendance.Record {
	if rec.ClockOut != nil {
		out := *rec.ClockOut
		rec.ClockOut = &out
	}
	return rec
}
