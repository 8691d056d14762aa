package employee

import "context"

// EmployeeRepository is a read-only view of employee master data.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (Employee, error)
	// ListActive returns active employees ordered by ID.
	ListActive(ctx context.Context) ([]Employee, error)
	// ListByIDs returns the employees found among ids, ordered by ID. Missing ids are skipped.
	ListByIDs(ctx context.Context, ids []string) ([]Employee, error)
}
