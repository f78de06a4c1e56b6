package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
)

// Directory is an in-memory employee.Directory.
type Directory struct {
	mu        sync.RWMutex
	employees map[string]employee.Employee
}

func NewDirectory(employees ...employee.Employee) *Directory {
	d := &Directory{employees: make(map[string]employee.Employee, len(employees))}
	for _, e := range employees {
		d.employees[e.ID] = e
	}
	return d
}

// Upsert adds or replaces an employee.
func (d *Directory) Upsert(ctx context.Context, e employee.Employee) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.ID] = e
	return nil
}

func (d *Directory) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (d *Directory) List(ctx context.Context) ([]employee.Employee, error) {
	d.mu.RLock()
	out := make([]employee.Employee, 0, len(d.employees))
	for _, e := range d.employees {
		if e.IsActive() {
			out = append(out, e)
		}
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
