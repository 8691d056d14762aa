package department

import "context"

type DepartmentRepository interface {
	ListAll(ctx context.Context) ([]Department, error)
}
