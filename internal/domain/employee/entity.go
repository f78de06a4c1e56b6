package employee

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// Employee is the directory view the attendance engine needs for display and
// calendar purposes. Identity itself is owned by the HR system.
type Employee struct {
	ID         string
	Name       string
	Department string
	// Timezone is an IANA name used to derive local work dates. Empty means
	// the engine's default location.
	Timezone         string
	EmploymentStatus EmploymentStatus
}

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusResigned   EmploymentStatus = "resigned"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)

func (e Employee) IsActive() bool {
	return e.EmploymentStatus == "" || e.EmploymentStatus == EmploymentStatusActive
}

// Validate checks the fields the engine depends on.
func (e Employee) Validate() error {
	var errs validator.ValidationErrors
	if !validator.IsValidIdentifier(e.ID) {
		errs = append(errs, validator.ValidationError{
			Field:   "id",
			Message: "id is required and must be a valid identifier",
		})
	}
	if validator.IsEmpty(e.Name) {
		errs = append(errs, validator.ValidationError{
			Field:   "name",
			Message: "name is required",
		})
	}
	switch e.EmploymentStatus {
	case "", EmploymentStatusActive, EmploymentStatusResigned, EmploymentStatusTerminated:
	default:
		errs = append(errs, validator.ValidationError{
			Field:   "employment_status",
			Message: "employment_status must be one of: active, resigned, terminated",
		})
	}
	if len(errs) > 0 {
		return errs
	}

	if e.Timezone != "" {
		if _, err := time.LoadLocation(e.Timezone); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTimezone, e.Timezone)
		}
	}
	return nil
}
