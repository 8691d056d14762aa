package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/bulk"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	periods := NewPeriodRepository(store)
	items := NewLineItemRepository(store)

	_, err := periods.Create(ctx, payroll.Period{ID: "p1", Month: 1, Year: 2025, Status: payroll.PeriodStatusDraft})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, items.ReplaceForPeriod(ctx, "p1", []payroll.LineItem{{ID: "l1", PeriodID: "p1", EmployeeID: "e1"}}))
		_, err := periods.SaveCalculation(ctx, "p1", payroll.Totals{EmployeeCount: 1}, 0, time.Now())
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := periods.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodStatusDraft, got.Status)

	list, err := items.ListByPeriod(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	components := NewComponentRepository(store)
	changes := NewChangeRecordRepository(store)

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := components.Create(ctx, salary.Component{ID: "c1", EmployeeID: "e1", Kind: salary.ComponentKindBasicSalary, Amount: decimal.NewFromInt(10), IsActive: true}); err != nil {
			return err
		}
		_, err := changes.Append(ctx, salary.ChangeRecord{ID: "r1", EmployeeID: "e1", ApprovalStatus: salary.ApprovalStatusAutoApproved})
		return err
	})
	require.NoError(t, err)

	_, err = components.GetByID(ctx, "c1")
	assert.NoError(t, err)
	_, total, err := changes.List(ctx, salary.ChangeRecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestComponentRepository_SingleActiveBasicSalary(t *testing.T) {
	ctx := context.Background()
	repo := NewComponentRepository(NewStore())

	_, err := repo.Create(ctx, salary.Component{ID: "c1", EmployeeID: "e1", Kind: salary.ComponentKindBasicSalary, IsActive: true})
	require.NoError(t, err)

	_, err = repo.Create(ctx, salary.Component{ID: "c2", EmployeeID: "e1", Kind: salary.ComponentKindBasicSalary, IsActive: true})
	assert.ErrorIs(t, err, salary.ErrBasicSalaryExists)

	_, err = repo.Create(ctx, salary.Component{ID: "c3", EmployeeID: "e1", Kind: salary.ComponentKindFixedAllowance, IsActive: true})
	assert.NoError(t, err)
}

func TestChangeRecordRepository_ResolveOnlyPending(t *testing.T) {
	ctx := context.Background()
	repo := NewChangeRecordRepository(NewStore())

	_, err := repo.Append(ctx, salary.ChangeRecord{ID: "r1", ApprovalStatus: salary.ApprovalStatusPending})
	require.NoError(t, err)

	res := salary.Resolution{Status: salary.ApprovalStatusRejected, DecidedBy: "mgr", DecidedAt: time.Now()}
	rec, err := repo.Resolve(ctx, "r1", res)
	require.NoError(t, err)
	assert.Equal(t, salary.ApprovalStatusRejected, rec.ApprovalStatus)
	require.NotNil(t, rec.DecidedBy)
	assert.Equal(t, "mgr", *rec.DecidedBy)

	_, err = repo.Resolve(ctx, "r1", res)
	assert.ErrorIs(t, err, salary.ErrRecordAlreadyDecided)

	_, err = repo.Resolve(ctx, "missing", res)
	assert.ErrorIs(t, err, salary.ErrChangeRecordNotFound)
}

func TestChangeRecordRepository_ListPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewChangeRecordRepository(NewStore())
	for _, id := range []string{"r1", "r2", "r3"} {
		_, err := repo.Append(ctx, salary.ChangeRecord{ID: id, EmployeeID: "e1"})
		require.NoError(t, err)
	}

	page, total, err := repo.List(ctx, salary.ChangeRecordFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "r3", page[0].ID)
}

func TestPeriodRepository_Transitions(t *testing.T) {
	ctx := context.Background()
	repo := NewPeriodRepository(NewStore())

	_, err := repo.Create(ctx, payroll.Period{ID: "p1", Month: 3, Year: 2025, Status: payroll.PeriodStatusDraft})
	require.NoError(t, err)
	_, err = repo.Create(ctx, payroll.Period{ID: "p2", Month: 3, Year: 2025, Status: payroll.PeriodStatusDraft})
	assert.ErrorIs(t, err, payroll.ErrPeriodAlreadyExists)

	_, err = repo.MarkFinalized(ctx, "p1", "admin", time.Now())
	assert.ErrorIs(t, err, payroll.ErrInvalidStateTransition)

	_, err = repo.SaveCalculation(ctx, "p1", payroll.Totals{}, 0, time.Now())
	require.NoError(t, err)
	_, err = repo.MarkFinalized(ctx, "p1", "admin", time.Now())
	require.NoError(t, err)
	_, err = repo.SaveCalculation(ctx, "p1", payroll.Totals{}, 0, time.Now())
	assert.ErrorIs(t, err, payroll.ErrInvalidStateTransition)
}

func TestOperationRepository_Transitions(t *testing.T) {
	ctx := context.Background()
	repo := NewOperationRepository(NewStore())

	require.NoError(t, repo.Create(ctx, bulk.Operation{ID: "op", Status: bulk.OperationStatusPreviewed}, []bulk.Item{{ID: "i1", OperationID: "op"}}))

	_, err := repo.RequestCancel(ctx, "op")
	assert.ErrorIs(t, err, bulk.ErrInvalidStateTransition)

	op, err := repo.Start(ctx, "op", "admin", time.Now())
	require.NoError(t, err)
	assert.Equal(t, bulk.OperationStatusRunning, op.Status)

	_, err = repo.Start(ctx, "op", "admin", time.Now())
	assert.ErrorIs(t, err, bulk.ErrInvalidStateTransition)

	running, err := repo.ListRunning(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, running, 1)

	op, err = repo.Finish(ctx, "op", bulk.OperationStatusCompleted, 1, 0, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, op.AppliedCount)

	_, err = repo.CancelPreviewed(ctx, "op", time.Now())
	assert.ErrorIs(t, err, bulk.ErrInvalidStateTransition)
}

func TestLoadSeed(t *testing.T) {
	store := NewStore()
	seed := `
departments:
  - id: d1
    name: Head Office
  - id: d2
    name: Engineering
    parent_id: d1
employees:
  - id: e1
    employee_code: EMP-001
    full_name: Siti Rahma
    department_id: d2
    tax_status: TK/0
    health_insurance_enrolled: true
    employment_insurance_enrolled: true
    hire_date: "2023-04-01"
components:
  - id: c1
    employee_id: e1
    kind: basic_salary
    name: Gaji Pokok
    amount: 5000000
`
	require.NoError(t, LoadSeed(store, []byte(seed)))

	emp, err := NewEmployeeRepository(store).GetByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, employee.TaxStatusTK0, emp.TaxStatus)
	assert.Equal(t, employee.EmploymentStatusActive, emp.EmploymentStatus)

	comps, err := NewComponentRepository(store).ListByEmployee(context.Background(), "e1", true)
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.True(t, comps[0].Amount.Equal(decimal.NewFromInt(5_000_000)))

	depts, err := NewDepartmentRepository(store).ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, depts, 2)
}

func TestLoadSeed_RejectsInvalidTaxStatus(t *testing.T) {
	err := LoadSeed(NewStore(), []byte("employees:\n  - id: e1\n    tax_status: K/9\n"))
	assert.ErrorIs(t, err, employee.ErrInvalidTaxStatus)
}
