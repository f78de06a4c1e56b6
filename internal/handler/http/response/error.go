package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// State machine errors
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		Conflict(w, "Employee is already clocked in")
	case errors.Is(err, attendance.ErrNotClockedIn):
		Conflict(w, "Employee is not clocked in")
	case errors.Is(err, attendance.ErrInvalidInterval):
		UnprocessableEntity(w, "INVALID_INTERVAL", err.Error())
	case errors.Is(err, attendance.ErrInvalidRange):
		UnprocessableEntity(w, "INVALID_RANGE", err.Error())
	case errors.Is(err, attendance.ErrInvalidInput),
		errors.Is(err, report.ErrInvalidReportType),
		errors.Is(err, report.ErrInvalidGranularity):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, attendance.ErrRecordNotFound):
		NotFound(w, "Attendance record not found")

	// Employee directory errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Infrastructure errors
	case errors.Is(err, attendance.ErrCancelled):
		RequestTimeout(w, "Request was cancelled before it completed")
	case errors.Is(err, attendance.ErrStoreUnavailable):
		slog.Warn("attendance store unavailable", "error", err)
		ServiceUnavailable(w, "Attendance store is temporarily unavailable")

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
