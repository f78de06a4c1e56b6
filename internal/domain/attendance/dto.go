package attendance

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// ========================================
// ATTENDANCE DTOs
// ========================================

const (
	maxLocationLength = 255
	maxNotesLength    = 1000

	DefaultRecordsLimit = 20
	MaxRecordsLimit     = 100
)

type ClockInRequest struct {
	EmployeeID string `json:"employee_id"`
	Location   string `json:"location"`
	Notes      string `json:"notes"`
}

func (r *ClockInRequest) Validate() error {
	return validateClockRequest(r.EmployeeID, r.Location, r.Notes)
}

type ClockOutRequest struct {
	EmployeeID string `json:"employee_id"`
	Location   string `json:"location"`
	Notes      string `json:"notes"`
}

func (r *ClockOutRequest) Validate() error {
	return validateClockRequest(r.EmployeeID, r.Location, r.Notes)
}

func validateClockRequest(employeeID, location, notes string) error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(employeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	} else if !validator.IsValidIdentifier(employeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id may only contain letters, digits, '.', '_', ':' or '-' (max 64)",
		})
	}

	if len(location) > maxLocationLength {
		errs = append(errs, validator.ValidationError{
			Field:   "location",
			Message: fmt.Sprintf("location must not exceed %d characters", maxLocationLength),
		})
	}

	if len(notes) > maxNotesLength {
		errs = append(errs, validator.ValidationError{
			Field:   "notes",
			Message: fmt.Sprintf("notes must not exceed %d characters", maxNotesLength),
		})
	}

	if len(errs) > 0 {
		return InvalidInput(errs)
	}
	return nil
}

// InvalidInput wraps validation errors so callers can match ErrInvalidInput
// and still read the per-field details.
func InvalidInput(errs validator.ValidationErrors) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, errs)
}

// RecordsFilter is the GetRecords query. Dates are local calendar days.
type RecordsFilter struct {
	EmployeeID string  `json:"employee_id"`
	StartDate  *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate    *string `json:"end_date,omitempty"`   // YYYY-MM-DD

	// Pagination
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (f *RecordsFilter) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(f.EmployeeID) || !validator.IsValidIdentifier(f.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required and must be a valid identifier",
		})
	}

	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if f.Limit == 0 {
		f.Limit = DefaultRecordsLimit
	}
	if f.Limit > MaxRecordsLimit {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: fmt.Sprintf("limit must not exceed %d", MaxRecordsLimit),
		})
	}

	if f.Offset < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "offset",
			Message: "offset must not be negative",
		})
	}

	start, startOK := parseOptionalDate(f.StartDate)
	if !startOK {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date must be in YYYY-MM-DD format",
		})
	}

	end, endOK := parseOptionalDate(f.EndDate)
	if !endOK {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must be in YYYY-MM-DD format",
		})
	}

	if len(errs) > 0 {
		return InvalidInput(errs)
	}

	if start != nil && end != nil && start.After(*end) {
		return ErrInvalidRange
	}

	return nil
}

// Dates returns the parsed start and end days. Call after Validate.
func (f *RecordsFilter) Dates() (start, end *time.Time) {
	start, _ = parseOptionalDate(f.StartDate)
	end, _ = parseOptionalDate(f.EndDate)
	return start, end
}

func parseOptionalDate(s *string) (*time.Time, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	d, ok := validator.IsValidDate(*s)
	if !ok {
		return nil, false
	}
	return &d, true
}

// ========================================
// RESPONSE DTOs
// ========================================

type RecordResponse struct {
	ID          string   `json:"id"`
	EmployeeID  string   `json:"employee_id"`
	ClockIn     string   `json:"clock_in"`
	ClockOut    *string  `json:"clock_out"`
	HoursWorked *float64 `json:"hours_worked"`
	Location    string   `json:"location"`
	Notes       string   `json:"notes"`
	Status      string   `json:"status"`
}

type StatusResponse struct {
	EmployeeID  string          `json:"employee_id"`
	Status      Status          `json:"status"`
	OpenRecord  *RecordResponse `json:"open_record,omitempty"`
	CanClockIn  bool            `json:"can_clock_in"`
	CanClockOut bool            `json:"can_clock_out"`
}

// ToResponse converts a record into its wire shape. Timestamps are ISO-8601.
func ToResponse(r Record) RecordResponse {
	resp := RecordResponse{
		ID:         r.ID,
		EmployeeID: r.EmployeeID,
		ClockIn:    r.ClockIn.Format(time.RFC3339),
		Location:   r.Location,
		Notes:      r.Notes,
		Status:     "open",
	}
	if r.ClockOut != nil {
		out := r.ClockOut.Format(time.RFC3339)
		resp.ClockOut = &out
		resp.Status = "closed"
	}
	if hours, ok := r.HoursWorked(); ok {
		rounded := RoundHours(hours)
		resp.HoursWorked = &rounded
	}
	return resp
}

// ToStatusResponse builds the status view for an optional open record.
func ToStatusResponse(employeeID string, open *Record) StatusResponse {
	if open == nil {
		return StatusResponse{
			EmployeeID: employeeID,
			Status:     StatusAbsent,
			CanClockIn: true,
		}
	}
	resp := ToResponse(*open)
	return StatusResponse{
		EmployeeID:  employeeID,
		Status:      StatusPresent,
		OpenRecord:  &resp,
		CanClockOut: true,
	}
}
