package employee

import (
	"testing"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
)

func TestEmployee_Validate(t *testing.T) {
	tests := []struct {
		name    string
		emp     Employee
		wantErr error
		field   string
	}{
		{name: "valid", emp: Employee{ID: "emp-1", Name: "Ayu", Timezone: "Asia/Jakarta"}},
		{name: "default timezone", emp: Employee{ID: "emp-1", Name: "Ayu"}},
		{name: "bad id", emp: Employee{ID: "emp 1", Name: "Ayu"}, field: "id"},
		{name: "missing name", emp: Employee{ID: "emp-1"}, field: "name"},
		{name: "bad status", emp: Employee{ID: "emp-1", Name: "Ayu", EmploymentStatus: "on_leave"}, field: "employment_status"},
		{name: "bad timezone", emp: Employee{ID: "emp-1", Name: "Ayu", Timezone: "Mars/Olympus"}, wantErr: ErrInvalidTimezone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.emp.Validate()
			switch {
			case tt.field != "":
				var verrs validator.ValidationErrors
				if assert.ErrorAs(t, err, &verrs) {
					assert.Contains(t, verrs.ToMap(), tt.field)
				}
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestEmployee_IsActive(t *testing.T) {
	assert.True(t, Employee{}.IsActive())
	assert.True(t, Employee{EmploymentStatus: EmploymentStatusActive}.IsActive())
	assert.False(t, Employee{EmploymentStatus: EmploymentStatusResigned}.IsActive())
}
