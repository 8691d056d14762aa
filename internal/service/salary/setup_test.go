package salary

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/events"
	"github.com/cmlabs-hris/hris-payroll-go/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store      *memory.Store
	components salary.ComponentRepository
	changes    salary.ChangeRecordRepository
	recorder   *events.Recorder
	ledger     salary.LedgerService
	componentS salary.ComponentService
	approvalS  salary.ApprovalService
	employeeID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	f := &fixture{
		store:      store,
		components: memory.NewComponentRepository(store),
		changes:    memory.NewChangeRecordRepository(store),
		recorder:   &events.Recorder{},
		employeeID: uuid.New().String(),
	}
	employees := memory.NewEmployeeRepository(store)

	f.ledger = NewLedgerService(f.changes, f.recorder)
	f.componentS = NewComponentService(store, f.components, employees, f.ledger)
	f.approvalS = NewApprovalService(store, f.components, f.changes, employees, f.ledger)

	store.AddEmployee(employee.Employee{
		ID:               f.employeeID,
		EmployeeCode:     "EMP-001",
		FullName:         "Siti Rahma",
		TaxStatus:        employee.TaxStatusTK0,
		EmploymentStatus: employee.EmploymentStatusActive,
		HireDate:         time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	return f
}

// seedComponent creates a component through the service so it carries a ledger record.
func (f *fixture) seedComponent(t *testing.T, kind salary.ComponentKind, name string, amount int64) salary.Component {
	t.Helper()
	c, err := f.componentS.CreateComponent(context.Background(), salary.CreateComponentRequest{
		EmployeeID: f.employeeID,
		Actor:      "hr-admin",
		Kind:       string(kind),
		Name:       name,
		Amount:     decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) allRecords(t *testing.T) []salary.ChangeRecord {
	t.Helper()
	records, _, err := f.changes.List(context.Background(), salary.ChangeRecordFilter{})
	require.NoError(t, err)
	return records
}

func ptr[T any](v T) *T {
	return &v
}
