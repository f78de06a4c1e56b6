package employee

import "context"

// Directory is the read-only employee lookup injected into the engine.
type Directory interface {
	// GetByID returns ErrEmployeeNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (Employee, error)

	// List returns active employees ordered by name.
	List(ctx context.Context) ([]Employee, error)
}
