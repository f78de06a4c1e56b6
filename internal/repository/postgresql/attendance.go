package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, employee_id, clock_in, clock_out, location, notes, created_at, updated_at`

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.RecordRepository {
	return &attendanceRepository{db: db}
}

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var rec attendance.Record
	err := row.Scan(
		&rec.ID, &rec.EmployeeID, &rec.ClockIn, &rec.ClockOut,
		&rec.Location, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return attendance.Record{}, err
	}
	rec.ClockIn = rec.ClockIn.UTC()
	if rec.ClockOut != nil {
		out := rec.ClockOut.UTC()
		rec.ClockOut = &out
	}
	return rec, nil
}

// Create implements attendance.RecordRepository. The partial unique index on
// open records makes the insert itself the conditional write.
func (a *attendanceRepository) Create(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendance_records (
			id, employee_id, clock_in, clock_out, location, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		) RETURNING ` + recordColumns

	created, err := scanRecord(q.QueryRow(ctx, query,
		rec.ID,
		rec.EmployeeID,
		rec.ClockIn,
		rec.ClockOut,
		rec.Location,
		rec.Notes,
		rec.CreatedAt,
		rec.UpdatedAt,
	))
	if err != nil {
		err = classify(err)
		if errors.Is(err, attendance.ErrAlreadyClockedIn) {
			return attendance.Record{}, err
		}
		return attendance.Record{}, fmt.Errorf("failed to create attendance record: %w", err)
	}

	return created, nil
}

// GetOpen implements attendance.RecordRepository.
func (a *attendanceRepository) GetOpen(ctx context.Context, employeeID string) (*attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE employee_id = $1
		  AND clock_out IS NULL
		LIMIT 1
	`

	rec, err := scanRecord(q.QueryRow(ctx, query, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open record: %w", classify(err))
	}

	return &rec, nil
}

// Close implements attendance.RecordRepository.
func (a *attendanceRepository) Close(ctx context.Context, id string, clockOut time.Time, location, notes string) (attendance.Record, error) {
	// Record ids are UUIDv7; anything else cannot exist and would fail the cast.
	if !validator.IsValidUUID(id) {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}

	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendance_records
		SET clock_out = $2, location = $3, notes = $4, updated_at = $2
		WHERE id = $1
		  AND clock_out IS NULL
		RETURNING ` + recordColumns

	rec, err := scanRecord(q.QueryRow(ctx, query, id, clockOut, location, notes))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		err = classify(err)
		if errors.Is(err, attendance.ErrInvalidInterval) {
			return attendance.Record{}, err
		}
		return attendance.Record{}, fmt.Errorf("failed to close attendance record: %w", err)
	}

	// Nothing updated: either the record is gone or it was closed already.
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM attendance_records WHERE id = $1)`, id).Scan(&exists); err != nil {
		return attendance.Record{}, fmt.Errorf("failed to check attendance record: %w", classify(err))
	}
	if !exists {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	return attendance.Record{}, attendance.ErrNotClockedIn
}

// List implements attendance.RecordRepository.
func (a *attendanceRepository) List(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	baseWhere := "TRUE"
	args := []any{}
	argIdx := 1

	if filter.EmployeeID != "" {
		baseWhere += fmt.Sprintf(" AND employee_id = $%d", argIdx)
		args = append(args, filter.EmployeeID)
		argIdx++
	}
	if filter.From != nil {
		baseWhere += fmt.Sprintf(" AND clock_in >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		baseWhere += fmt.Sprintf(" AND clock_in < $%d", argIdx)
		args = append(args, *filter.To)
		argIdx++
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		WHERE %s
		ORDER BY clock_in DESC, id DESC
	`, recordColumns, baseWhere)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", classify(err))
	}
	defer rows.Close()

	records := []attendance.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", classify(err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance records: %w", classify(err))
	}

	return records, nil
}

// ListOpenBefore implements attendance.RecordRepository.
func (a *attendanceRepository) ListOpenBefore(ctx context.Context, cutoff time.Time) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE clock_out IS NULL
		  AND clock_in < $1
		ORDER BY clock_in ASC
	`

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list open records: %w", classify(err))
	}
	defer rows.Close()

	records := []attendance.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan open record: %w", classify(err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate open records: %w", classify(err))
	}

	return records, nil
}
