package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

// EmployeeRepository is the postgres-backed employee.Directory plus the
// write used by the CLI importer.
type EmployeeRepository interface {
	employee.Directory
	Upsert(ctx context.Context, e employee.Employee) error
}

func NewEmployeeRepository(db *database.DB) EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

// GetByID implements employee.Directory.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT id, full_name, department, timezone, employment_status
		FROM employees
		WHERE id = $1
	`

	var emp employee.Employee
	err := q.QueryRow(ctx, query, id).Scan(
		&emp.ID, &emp.Name, &emp.Department, &emp.Timezone, &emp.EmploymentStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee by id: %w", classify(err))
	}

	return emp, nil
}

// List implements employee.Directory.
func (e *employeeRepositoryImpl) List(ctx context.Context) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT id, full_name, department, timezone, employment_status
		FROM employees
		WHERE employment_status = $1
		ORDER BY full_name ASC, id ASC
	`

	rows, err := q.Query(ctx, query, employee.EmploymentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", classify(err))
	}
	defer rows.Close()

	employees := []employee.Employee{}
	for rows.Next() {
		var emp employee.Employee
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Department, &emp.Timezone, &emp.EmploymentStatus); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", classify(err))
	}

	return employees, nil
}

// Upsert inserts or replaces an employee row.
func (e *employeeRepositoryImpl) Upsert(ctx context.Context, emp employee.Employee) error {
	q := GetQuerier(ctx, e.db)

	status := emp.EmploymentStatus
	if status == "" {
		status = employee.EmploymentStatusActive
	}

	query := `
		INSERT INTO employees (id, full_name, department, timezone, employment_status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			department = EXCLUDED.department,
			timezone = EXCLUDED.timezone,
			employment_status = EXCLUDED.employment_status,
			updated_at = NOW()
	`

	if _, err := q.Exec(ctx, query, emp.ID, emp.Name, emp.Department, emp.Timezone, status); err != nil {
		return fmt.Errorf("failed to upsert employee: %w", classify(err))
	}
	return nil
}
