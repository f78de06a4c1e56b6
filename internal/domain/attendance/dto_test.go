package attendance

import (
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestClockInRequest_Validate(t *testing.T) {
	req := ClockInRequest{EmployeeID: "emp-1", Location: "HQ"}
	assert.NoError(t, req.Validate())

	req = ClockInRequest{EmployeeID: "  "}
	err := req.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs.ToMap(), "employee_id")
}

func TestClockOutRequest_ValidateRejectsMalformedID(t *testing.T) {
	req := ClockOutRequest{EmployeeID: "emp 1"}
	assert.ErrorIs(t, req.Validate(), ErrInvalidInput)
}

func TestRecordsFilter_Defaults(t *testing.T) {
	f := RecordsFilter{EmployeeID: "E"}
	require.NoError(t, f.Validate())
	assert.Equal(t, DefaultRecordsLimit, f.Limit)

	start, end := f.Dates()
	assert.Nil(t, start)
	assert.Nil(t, end)
}

func TestRecordsFilter_InvalidRange(t *testing.T) {
	f := RecordsFilter{EmployeeID: "E", StartDate: strPtr("2024-02-05"), EndDate: strPtr("2024-02-01")}
	assert.ErrorIs(t, f.Validate(), ErrInvalidRange)
}

func TestRecordsFilter_BadInput(t *testing.T) {
	f := RecordsFilter{EmployeeID: "E", StartDate: strPtr("02/01/2024"), Limit: 500}
	err := f.Validate()
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	m := verrs.ToMap()
	assert.Contains(t, m, "start_date")
	assert.Contains(t, m, "limit")
}

func TestToResponse(t *testing.T) {
	in := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	out := time.Date(2024, 2, 1, 17, 30, 0, 0, time.UTC)
	rec := Record{ID: "r1", EmployeeID: "E", ClockIn: in, ClockOut: &out}

	resp := ToResponse(rec)
	assert.Equal(t, "2024-02-01T09:00:00Z", resp.ClockIn)
	require.NotNil(t, resp.ClockOut)
	assert.Equal(t, "2024-02-01T17:30:00Z", *resp.ClockOut)
	require.NotNil(t, resp.HoursWorked)
	assert.Equal(t, 8.5, *resp.HoursWorked)
	assert.Equal(t, "closed", resp.Status)

	status := ToStatusResponse("E", nil)
	assert.Equal(t, StatusAbsent, status.Status)
	assert.True(t, status.CanClockIn)
	assert.False(t, status.CanClockOut)
}
