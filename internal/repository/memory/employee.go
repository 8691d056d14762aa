package memory

import (
	"context"
	"sort"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/master/department"
)

type employeeRepository struct {
	store *Store
}

func NewEmployeeRepository(store *Store) employee.EmployeeRepository {
	return &employeeRepository{store: store}
}

func (r *employeeRepository) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	defer r.store.lock(ctx)()

	e, ok := r.store.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (r *employeeRepository) ListActive(ctx context.Context) ([]employee.Employee, error) {
	defer r.store.lock(ctx)()

	var out []employee.Employee
	for _, e := range r.store.employees {
		if e.IsActive() {
			out = append(out, e)
		}
	}
	sortEmployees(out)
	return out, nil
}

func (r *employeeRepository) ListByIDs(ctx context.Context, ids []string) ([]employee.Employee, error) {
	defer r.store.lock(ctx)()

	var out []employee.Employee
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if e, ok := r.store.employees[id]; ok {
			out = append(out, e)
		}
	}
	sortEmployees(out)
	return out, nil
}

func sortEmployees(list []employee.Employee) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}

type departmentRepository struct {
	store *Store
}

func NewDepartmentRepository(store *Store) department.DepartmentRepository {
	return &departmentRepository{store: store}
}

func (r *departmentRepository) ListAll(ctx context.Context) ([]department.Department, error) {
	defer r.store.lock(ctx)()

	out := make([]department.Department, 0, len(r.store.departments))
	for _, d := range r.store.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
