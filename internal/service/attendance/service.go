package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/retry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/google/uuid"
)

type Config struct {
	// RetryAttempts bounds every store call, including the first try.
	RetryAttempts  int
	RetryBaseDelay time.Duration
	// StoreTimeout bounds a single store call. Zero relies on the caller's
	// context only.
	StoreTimeout time.Duration

	// ValidateEmployees rejects ids unknown to the directory with
	// employee.ErrEmployeeNotFound.
	ValidateEmployees bool

	// DefaultLocation dates GetRecords filters for employees without a
	// directory timezone.
	DefaultLocation *time.Location
}

type AttendanceServiceImpl struct {
	records   attendance.RecordRepository
	directory employee.Directory
	metrics   *metrics.Manager
	cfg       Config

	locks  *keyedLocker
	policy retry.Policy
	now    func() time.Time

	mu        sync.RWMutex
	observers []attendance.Observer
}

// NewAttendanceService builds the clock-in/clock-out state machine. directory
// and m may be nil.
func NewAttendanceService(
	records attendance.RecordRepository,
	directory employee.Directory,
	cfg Config,
	m *metrics.Manager,
) *AttendanceServiceImpl {
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	return &AttendanceServiceImpl{
		records:   records,
		directory: directory,
		metrics:   m,
		cfg:       cfg,
		locks:     newKeyedLocker(),
		policy: retry.Policy{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay,
			Timeout:   cfg.StoreTimeout,
			OnRetry:   m.StoreRetry,
		},
		now: time.Now,
	}
}

// SetClock replaces the wall clock used to stamp clock-in and clock-out.
func (s *AttendanceServiceImpl) SetClock(now func() time.Time) {
	s.now = now
}

// Subscribe registers o to be told about every successful write.
func (s *AttendanceServiceImpl) Subscribe(o attendance.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// ClockIn implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ClockIn(ctx context.Context, req attendance.ClockInRequest) (rec attendance.Record, err error) {
	defer func() { s.metrics.ClockEvent("clock_in", resultLabel(err)) }()

	if err := req.Validate(); err != nil {
		return attendance.Record{}, err
	}
	if _, err := s.lookupEmployee(ctx, req.EmployeeID); err != nil {
		return attendance.Record{}, err
	}

	unlock, err := s.locks.Lock(ctx, req.EmployeeID)
	if err != nil {
		return attendance.Record{}, attendance.Cancelled(err)
	}
	defer unlock()

	open, err := retry.Do(ctx, s.policy, "get_open", func(ctx context.Context) (*attendance.Record, error) {
		return s.records.GetOpen(ctx, req.EmployeeID)
	})
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to get open record: %w", err)
	}
	if open != nil {
		return attendance.Record{}, attendance.ErrAlreadyClockedIn
	}

	id, err := uuid.NewV7()
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to generate record id: %w", err)
	}
	now := s.now().UTC()
	newRecord := attendance.Record{
		ID:         id.String(),
		EmployeeID: req.EmployeeID,
		ClockIn:    now,
		Location:   strings.TrimSpace(req.Location),
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := retry.Do(ctx, s.policy, "create", func(ctx context.Context) (attendance.Record, error) {
		return s.records.Create(ctx, newRecord)
	})
	if errors.Is(err, attendance.ErrAlreadyClockedIn) {
		// A retried insert may have landed on an earlier attempt.
		if open, gerr := s.records.GetOpen(ctx, req.EmployeeID); gerr == nil && open != nil && open.ID == newRecord.ID {
			created, err = *open, nil
		}
	}
	if err != nil {
		if errors.Is(err, attendance.ErrAlreadyClockedIn) {
			return attendance.Record{}, err
		}
		return attendance.Record{}, fmt.Errorf("failed to create attendance record: %w", err)
	}

	slog.Info("employee clocked in", "employee_id", created.EmployeeID, "record_id", created.ID)
	s.notify(ctx, created)
	return created, nil
}

// ClockOut implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ClockOut(ctx context.Context, req attendance.ClockOutRequest) (rec attendance.Record, err error) {
	defer func() { s.metrics.ClockEvent("clock_out", resultLabel(err)) }()

	if err := req.Validate(); err != nil {
		return attendance.Record{}, err
	}
	if _, err := s.lookupEmployee(ctx, req.EmployeeID); err != nil {
		return attendance.Record{}, err
	}

	unlock, err := s.locks.Lock(ctx, req.EmployeeID)
	if err != nil {
		return attendance.Record{}, attendance.Cancelled(err)
	}
	defer unlock()

	open, err := retry.Do(ctx, s.policy, "get_open", func(ctx context.Context) (*attendance.Record, error) {
		return s.records.GetOpen(ctx, req.EmployeeID)
	})
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to get open record: %w", err)
	}
	if open == nil {
		return attendance.Record{}, attendance.ErrNotClockedIn
	}

	now := s.now().UTC()
	if _, err := attendance.ComputeHours(open.ClockIn, now); err != nil {
		return attendance.Record{}, err
	}

	location := open.Location
	if l := strings.TrimSpace(req.Location); l != "" {
		location = l
	}
	notes := joinNotes(open.Notes, req.Notes)

	closed, err := retry.Do(ctx, s.policy, "close", func(ctx context.Context) (attendance.Record, error) {
		return s.records.Close(ctx, open.ID, now, location, notes)
	})
	if err != nil {
		if errors.Is(err, attendance.ErrNotClockedIn) {
			return attendance.Record{}, err
		}
		return attendance.Record{}, fmt.Errorf("failed to close attendance record: %w", err)
	}

	hours, _ := closed.HoursWorked()
	slog.Info("employee clocked out",
		"employee_id", closed.EmployeeID,
		"record_id", closed.ID,
		"hours_worked", attendance.RoundHours(hours),
	)
	s.notify(ctx, closed)
	return closed, nil
}

// CurrentStatus implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CurrentStatus(ctx context.Context, employeeID string) (*attendance.Record, error) {
	if !validator.IsValidIdentifier(employeeID) {
		return nil, invalidEmployeeID()
	}
	if _, err := s.lookupEmployee(ctx, employeeID); err != nil {
		return nil, err
	}

	open, err := retry.Do(ctx, s.policy, "get_open", func(ctx context.Context) (*attendance.Record, error) {
		return s.records.GetOpen(ctx, employeeID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get open record: %w", err)
	}
	return open, nil
}

// GetRecords implements attendance.AttendanceService. Date bounds are local
// calendar days of the employee.
func (s *AttendanceServiceImpl) GetRecords(ctx context.Context, filter attendance.RecordsFilter) ([]attendance.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	emp, err := s.lookupEmployee(ctx, filter.EmployeeID)
	if err != nil {
		return nil, err
	}
	loc := s.location(emp)

	query := attendance.RecordFilter{
		EmployeeID: filter.EmployeeID,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	start, end := filter.Dates()
	if start != nil {
		from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		query.From = &from
	}
	if end != nil {
		to := time.Date(end.Year(), end.Month(), end.Day()+1, 0, 0, 0, 0, loc)
		query.To = &to
	}

	records, err := retry.Do(ctx, s.policy, "list", func(ctx context.Context) ([]attendance.Record, error) {
		return s.records.List(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	return records, nil
}

// lookupEmployee returns the directory entry when one is available. Unknown
// ids only fail when ValidateEmployees is set.
func (s *AttendanceServiceImpl) lookupEmployee(ctx context.Context, employeeID string) (*employee.Employee, error) {
	if s.directory == nil {
		return nil, nil
	}
	emp, err := s.directory.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			if s.cfg.ValidateEmployees {
				return nil, fmt.Errorf("%w: %s", employee.ErrEmployeeNotFound, employeeID)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up employee %s: %w", employeeID, err)
	}
	return &emp, nil
}

func (s *AttendanceServiceImpl) location(emp *employee.Employee) *time.Location {
	if emp == nil || emp.Timezone == "" {
		return s.cfg.DefaultLocation
	}
	loc, err := time.LoadLocation(emp.Timezone)
	if err != nil {
		return s.cfg.DefaultLocation
	}
	return loc
}

// notify runs observers after the write committed. They get a context that
// outlives the caller's cancellation so invalidation is not skipped.
func (s *AttendanceServiceImpl) notify(ctx context.Context, rec attendance.Record) {
	s.mu.RLock()
	observers := make([]attendance.Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, o := range observers {
		o.RecordChanged(ctx, rec)
	}
}

func joinNotes(existing, added string) string {
	added = strings.TrimSpace(added)
	switch {
	case added == "":
		return existing
	case existing == "":
		return added
	default:
		return existing + "; " + added
	}
}

func invalidEmployeeID() error {
	return attendance.InvalidInput(validator.ValidationErrors{{
		Field:   "employee_id",
		Message: "employee_id is required and must be a valid identifier",
	}})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		return "already_clocked_in"
	case errors.Is(err, attendance.ErrNotClockedIn):
		return "not_clocked_in"
	case errors.Is(err, attendance.ErrInvalidInput), errors.Is(err, attendance.ErrInvalidInterval):
		return "invalid"
	case errors.Is(err, employee.ErrEmployeeNotFound):
		return "employee_not_found"
	case errors.Is(err, attendance.ErrCancelled):
		return "cancelled"
	case errors.Is(err, attendance.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
