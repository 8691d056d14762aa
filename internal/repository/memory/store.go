// Package memory holds in-process implementations of the repository ports.
// It backs local runs (STORAGE_DRIVER=memory) and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/bulk"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/master/department"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
)

type txKey struct{}

// Store is the shared state of every memory repository. A transaction holds
// the store mutex for its whole duration and restores a snapshot on error.
type Store struct {
	mu sync.Mutex
	state
	now func() time.Time
}

type state struct {
	employees      map[string]employee.Employee
	departments    map[string]department.Department
	components     map[string]salary.Component
	changes        []salary.ChangeRecord
	periods        map[string]payroll.Period
	lineItems      map[string][]payroll.LineItem
	variableInputs map[string]map[string]payroll.VariableInput
	operations     map[string]bulk.Operation
	operationItems map[string][]bulk.Item
}

func NewStore() *Store {
	return &Store{
		state: state{
			employees:      make(map[string]employee.Employee),
			departments:    make(map[string]department.Department),
			components:     make(map[string]salary.Component),
			periods:        make(map[string]payroll.Period),
			lineItems:      make(map[string][]payroll.LineItem),
			variableInputs: make(map[string]map[string]payroll.VariableInput),
			operations:     make(map[string]bulk.Operation),
			operationItems: make(map[string][]bulk.Item),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for generated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// WithinTx implements database.TxManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) == s
}

// lock guards a single repository call. Calls made inside WithinTx already hold the mutex.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// AddEmployee seeds read-only employee master data.
func (s *Store) AddEmployee(e employee.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
}

// AddDepartment seeds read-only department master data.
func (s *Store) AddDepartment(d department.Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[d.ID] = d
}

func (st state) clone() state {
	out := state{
		employees:      make(map[string]employee.Employee, len(st.employees)),
		departments:    make(map[string]department.Department, len(st.departments)),
		components:     make(map[string]salary.Component, len(st.components)),
		changes:        append([]salary.ChangeRecord(nil), st.changes...),
		periods:        make(map[string]payroll.Period, len(st.periods)),
		lineItems:      make(map[string][]payroll.LineItem, len(st.lineItems)),
		variableInputs: make(map[string]map[string]payroll.VariableInput, len(st.variableInputs)),
		operations:     make(map[string]bulk.Operation, len(st.operations)),
		operationItems: make(map[string][]bulk.Item, len(st.operationItems)),
	}
	for k, v := range st.employees {
		out.employees[k] = v
	}
	for k, v := range st.departments {
		out.departments[k] = v
	}
	for k, v := range st.components {
		out.components[k] = v
	}
	for k, v := range st.periods {
		out.periods[k] = v
	}
	for k, v := range st.lineItems {
		out.lineItems[k] = append([]payroll.LineItem(nil), v...)
	}
	for k, v := range st.variableInputs {
		inner := make(map[string]payroll.VariableInput, len(v))
		for ek, ev := range v {
			inner[ek] = ev
		}
		out.variableInputs[k] = inner
	}
	for k, v := range st.operations {
		out.operations[k] = v
	}
	for k, v := range st.operationItems {
		out.operationItems[k] = append([]bulk.Item(nil), v...)
	}
	return out
}
