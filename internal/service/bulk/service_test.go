package bulk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/bulk"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/master/department"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/events"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/lock"
	"github.com/cmlabs-hris/hris-payroll-go/internal/repository/memory"
	salarysvc "github.com/cmlabs-hris/hris-payroll-go/internal/service/salary"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store      *memory.Store
	components salary.ComponentRepository
	changes    salary.ChangeRecordRepository
	operations bulk.OperationRepository
	locker     *lock.MemoryLocker
	recorder   *events.Recorder
	svc        bulk.BulkService
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:      store,
		components: memory.NewComponentRepository(store),
		changes:    memory.NewChangeRecordRepository(store),
		operations: memory.NewOperationRepository(store),
		locker:     lock.NewMemoryLocker(),
		recorder:   &events.Recorder{},
	}
	ledger := salarysvc.NewLedgerService(f.changes, f.recorder)
	f.svc = NewBulkService(
		store,
		f.operations,
		memory.NewEmployeeRepository(store),
		memory.NewDepartmentRepository(store),
		f.components,
		ledger,
		f.locker,
		f.recorder,
		Options{MaxWorkers: workers, RoundingUnit: decimal.NewFromInt(1000)},
	)
	return f
}

func (f *fixture) addEmployee(t *testing.T, name string, departmentID *string, basic, allowance int64) employee.Employee {
	t.Helper()
	emp := employee.Employee{
		ID:               uuid.New().String(),
		EmployeeCode:     name,
		FullName:         name,
		DepartmentID:     departmentID,
		TaxStatus:        employee.TaxStatusTK0,
		EmploymentStatus: employee.EmploymentStatusActive,
	}
	f.store.AddEmployee(emp)

	add := func(kind salary.ComponentKind, label string, amount int64) {
		_, err := f.components.Create(context.Background(), salary.Component{
			ID:         uuid.New().String(),
			EmployeeID: emp.ID,
			Kind:       kind,
			Name:       label,
			Amount:     decimal.NewFromInt(amount),
			IsActive:   true,
		})
		require.NoError(t, err)
	}
	if basic > 0 {
		add(salary.ComponentKindBasicSalary, "Gaji Pokok", basic)
	}
	if allowance > 0 {
		add(salary.ComponentKindFixedAllowance, "Transport", allowance)
	}
	return emp
}

func (f *fixture) activeAmounts(t *testing.T, employeeID string) map[string]decimal.Decimal {
	t.Helper()
	list, err := f.components.ListByEmployee(context.Background(), employeeID, true)
	require.NoError(t, err)
	out := map[string]decimal.Decimal{}
	for _, c := range list {
		out[c.Name] = c.Amount
	}
	return out
}

func percentRaise(percent int64, ids ...string) bulk.PreviewRequest {
	p := decimal.NewFromInt(percent)
	return bulk.PreviewRequest{
		Cohort:        bulk.CohortSelector{Type: bulk.CohortTypeExplicit, EmployeeIDs: ids},
		Rule:          bulk.AdjustmentRule{Type: bulk.RuleTypePercentage, Percent: &p},
		Reason:        "2025 cost of living raise",
		EffectiveDate: "2025-01-01",
		Actor:         "hr-admin",
	}
}

func TestPreview_HasNoSideEffects(t *testing.T) {
	f := newFixture(t, 2)
	emp := f.addEmployee(t, "Andi", nil, 5_123_456, 300_000)

	detail, err := f.svc.Preview(context.Background(), percentRaise(10, emp.ID))
	require.NoError(t, err)

	assert.Equal(t, bulk.OperationStatusPreviewed, detail.Operation.Status)
	assert.Equal(t, 1, detail.Operation.TotalItems)
	require.Len(t, detail.Items, 1)
	item := detail.Items[0]
	assert.Equal(t, bulk.ItemStatusPending, item.Status)
	require.Len(t, item.Changes, 2)

	after := map[string]decimal.Decimal{}
	for _, c := range item.Changes {
		after[c.Name] = c.After
	}
	assert.True(t, after["Gaji Pokok"].Equal(decimal.NewFromInt(5_636_000)), after["Gaji Pokok"].String())
	assert.True(t, after["Transport"].Equal(decimal.NewFromInt(330_000)))

	live := f.activeAmounts(t, emp.ID)
	assert.True(t, live["Gaji Pokok"].Equal(decimal.NewFromInt(5_123_456)))

	records, _, err := f.changes.List(context.Background(), salary.ChangeRecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, f.recorder.Events())
}

func TestExecute_PartialFailure(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	a := f.addEmployee(t, "Andi", nil, 5_000_000, 0)
	b := f.addEmployee(t, "Budi", nil, 8_000_000, 500_000)
	c := f.addEmployee(t, "Citra", nil, 0, 0)

	detail, err := f.svc.Preview(ctx, percentRaise(10, a.ID, b.ID, c.ID))
	require.NoError(t, err)

	var mu sync.Mutex
	var progress []bulk.Progress
	result, err := f.svc.Execute(ctx, bulk.ExecuteRequest{OperationID: detail.Operation.ID, Actor: "payroll-lead"}, func(p bulk.Progress) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, p)
	})
	require.NoError(t, err)

	assert.Equal(t, bulk.OperationStatusPartiallyCompleted, result.Operation.Status)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Pending)
	assert.ErrorIs(t, result.Err(), bulk.ErrPartialFailure)
	assert.Equal(t, apperror.CodePartialFailure, apperror.CodeOf(result.Err()))

	for _, item := range result.Items {
		if item.EmployeeID == c.ID {
			assert.Equal(t, bulk.ItemStatusFailed, item.Status)
			require.NotNil(t, item.Error)
		} else {
			assert.Equal(t, bulk.ItemStatusApplied, item.Status)
			assert.NotNil(t, item.AppliedAt)
		}
	}

	assert.True(t, f.activeAmounts(t, a.ID)["Gaji Pokok"].Equal(decimal.NewFromInt(5_500_000)))
	assert.True(t, f.activeAmounts(t, b.ID)["Transport"].Equal(decimal.NewFromInt(550_000)))

	// One record per written component, all tied to the operation.
	source := salary.ChangeSourceBulkOperation
	records, _, err := f.changes.List(ctx, salary.ChangeRecordFilter{Source: &source, SourceRefID: &detail.Operation.ID})
	require.NoError(t, err)
	assert.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, salary.ApprovalStatusAutoApproved, r.ApprovalStatus)
		assert.Equal(t, "payroll-lead", r.Actor)
	}

	require.Len(t, progress, 3)
	last := progress[len(progress)-1]
	assert.Equal(t, 3, last.Processed)
	assert.Equal(t, 2, last.Applied)
	assert.Equal(t, 1, last.Failed)

	assert.Len(t, f.recorder.OfType(events.TypeBulkOperationCompleted), 1)
	assert.Len(t, f.recorder.OfType(events.TypeSalaryChangeRecorded), 3)

	stored, err := f.svc.Get(ctx, detail.Operation.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Operation.AppliedCount)
	assert.NotNil(t, stored.Operation.Error)
}

func TestExecute_OnlyOnce(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	a := f.addEmployee(t, "Andi", nil, 5_000_000, 0)

	detail, err := f.svc.Preview(ctx, percentRaise(5, a.ID))
	require.NoError(t, err)
	req := bulk.ExecuteRequest{OperationID: detail.Operation.ID, Actor: "payroll-lead"}

	result, err := f.svc.Execute(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, bulk.OperationStatusCompleted, result.Operation.Status)
	assert.NoError(t, result.Err())

	_, err = f.svc.Execute(ctx, req, nil)
	assert.ErrorIs(t, err, bulk.ErrInvalidStateTransition)
}

func TestExecute_LockedOperation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	a := f.addEmployee(t, "Andi", nil, 5_000_000, 0)
	detail, err := f.svc.Preview(ctx, percentRaise(5, a.ID))
	require.NoError(t, err)

	release, err := f.locker.TryLock(ctx, lock.BulkOperationKey(detail.Operation.ID))
	require.NoError(t, err)
	defer release()

	_, err = f.svc.Execute(ctx, bulk.ExecuteRequest{OperationID: detail.Operation.ID, Actor: "payroll-lead"}, nil)
	assert.ErrorIs(t, err, bulk.ErrConcurrencyConflict)
}

func TestExecute_AllItemsFail(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	a := f.addEmployee(t, "Andi", nil, 0, 0)

	detail, err := f.svc.Preview(ctx, percentRaise(5, a.ID))
	require.NoError(t, err)
	require.NotNil(t, detail.Items[0].Error)

	result, err := f.svc.Execute(ctx, bulk.ExecuteRequest{OperationID: detail.Operation.ID, Actor: "payroll-lead"}, nil)
	require.NoError(t, err)
	assert.Equal(t, bulk.OperationStatusFailed, result.Operation.Status)
	assert.ErrorIs(t, result.Err(), bulk.ErrOperationFailed)
}

func TestCancel_Previewed(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	a := f.addEmployee(t, "Andi", nil, 5_000_000, 0)
	detail, err := f.svc.Preview(ctx, percentRaise(5, a.ID))
	require.NoError(t, err)
	req := bulk.ExecuteRequest{OperationID: detail.Operation.ID, Actor: "hr-admin"}

	op, err := f.svc.Cancel(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, bulk.OperationStatusCancelled, op.Status)

	_, err = f.svc.Cancel(ctx, req)
	assert.ErrorIs(t, err, bulk.ErrInvalidStateTransition)
	_, err = f.svc.Execute(ctx, req, nil)
	assert.ErrorIs(t, err, bulk.ErrInvalidStateTransition)

	assert.True(t, f.activeAmounts(t, a.ID)["Gaji Pokok"].Equal(decimal.NewFromInt(5_000_000)))
}

func TestCancel_WhileRunningStopsBetweenItems(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	ids := make([]string, 0, 4)
	for _, name := range []string{"Andi", "Budi", "Citra", "Dewi"} {
		ids = append(ids, f.addEmployee(t, name, nil, 5_000_000, 0).ID)
	}
	detail, err := f.svc.Preview(ctx, percentRaise(10, ids...))
	require.NoError(t, err)
	req := bulk.ExecuteRequest{OperationID: detail.Operation.ID, Actor: "payroll-lead"}

	var once sync.Once
	result, err := f.svc.Execute(ctx, req, func(p bulk.Progress) {
		once.Do(func() {
			_, cerr := f.svc.Cancel(ctx, req)
			assert.NoError(t, cerr)
		})
	})
	require.NoError(t, err)

	assert.Equal(t, bulk.OperationStatusCancelled, result.Operation.Status)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 3, result.Pending)

	pending := 0
	for _, item := range result.Items {
		if item.Status == bulk.ItemStatusPending {
			pending++
		}
	}
	assert.Equal(t, 3, pending)
}

func TestExecute_CallerContextCancelledKeepsRunning(t *testing.T) {
	f := newFixture(t, 1)
	ids := make([]string, 0, 3)
	for _, name := range []string{"Andi", "Budi", "Citra"} {
		ids = append(ids, f.addEmployee(t, name, nil, 5_000_000, 0).ID)
	}
	detail, err := f.svc.Preview(context.Background(), percentRaise(10, ids...))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := bulk.ExecuteRequest{OperationID: detail.Operation.ID, Actor: "payroll-lead"}
	result, err := f.svc.Execute(ctx, req, func(bulk.Progress) { cancel() })
	require.NoError(t, err)

	assert.Equal(t, bulk.OperationStatusCompleted, result.Operation.Status)
	assert.False(t, result.Operation.CancelRequested)
	assert.Equal(t, 3, result.Applied)
	assert.Equal(t, 0, result.Pending)

	stored, err := f.operations.GetByID(context.Background(), detail.Operation.ID)
	require.NoError(t, err)
	assert.Equal(t, bulk.OperationStatusCompleted, stored.Status)
	for _, id := range ids {
		assert.True(t, f.activeAmounts(t, id)["Gaji Pokok"].Equal(decimal.NewFromInt(5_500_000)))
	}
}

func TestPreview_FilterIncludesDescendantDepartments(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	root, child, other := uuid.New().String(), uuid.New().String(), uuid.New().String()
	f.store.AddDepartment(department.Department{ID: root, Name: "Engineering"})
	f.store.AddDepartment(department.Department{ID: child, Name: "Platform", ParentID: &root})
	f.store.AddDepartment(department.Department{ID: other, Name: "Finance"})

	inRoot := f.addEmployee(t, "Andi", &root, 5_000_000, 0)
	inChild := f.addEmployee(t, "Budi", &child, 12_000_000, 0)
	f.addEmployee(t, "Citra", &other, 5_000_000, 0)
	f.addEmployee(t, "Dewi", nil, 5_000_000, 0)

	amount := decimal.NewFromInt(250_000)
	req := bulk.PreviewRequest{
		Cohort: bulk.CohortSelector{
			Type:   bulk.CohortTypeFilter,
			Filter: &bulk.CohortFilter{DepartmentID: &root},
		},
		Rule:          bulk.AdjustmentRule{Type: bulk.RuleTypeFixedAmount, Amount: &amount},
		Reason:        "engineering adjustment",
		EffectiveDate: "2025-02-01",
		Actor:         "hr-admin",
	}

	detail, err := f.svc.Preview(ctx, req)
	require.NoError(t, err)
	got := map[string]bool{}
	for _, item := range detail.Items {
		got[item.EmployeeID] = true
		require.Len(t, item.Changes, 1)
		assert.Equal(t, salary.ComponentKindBasicSalary, item.Changes[0].Kind)
	}
	assert.Equal(t, map[string]bool{inRoot.ID: true, inChild.ID: true}, got)

	limit := decimal.NewFromInt(10_000_000)
	req.Cohort.Filter.MaxBasicSalary = &limit
	detail, err = f.svc.Preview(ctx, req)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, inRoot.ID, detail.Items[0].EmployeeID)
}

func TestPreview_RejectsUnknownEmployeeAndEmptyCohort(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.Preview(ctx, percentRaise(10, uuid.New().String()))
	assert.ErrorIs(t, err, bulk.ErrUnknownEmployee)

	dept := uuid.New().String()
	f.store.AddDepartment(department.Department{ID: dept, Name: "Empty"})
	p := decimal.NewFromInt(10)
	_, err = f.svc.Preview(ctx, bulk.PreviewRequest{
		Cohort:        bulk.CohortSelector{Type: bulk.CohortTypeFilter, Filter: &bulk.CohortFilter{DepartmentID: &dept}},
		Rule:          bulk.AdjustmentRule{Type: bulk.RuleTypePercentage, Percent: &p},
		Reason:        "noop",
		EffectiveDate: "2025-02-01",
		Actor:         "hr-admin",
	})
	assert.ErrorIs(t, err, bulk.ErrEmptyCohort)
}

func TestExecute_ExplicitRuleMissingValueFailsItem(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	a := f.addEmployee(t, "Andi", nil, 5_000_000, 0)
	b := f.addEmployee(t, "Budi", nil, 6_000_000, 0)

	detail, err := f.svc.Preview(ctx, bulk.PreviewRequest{
		Cohort: bulk.CohortSelector{Type: bulk.CohortTypeExplicit, EmployeeIDs: []string{a.ID, b.ID}},
		Rule: bulk.AdjustmentRule{
			Type:   bulk.RuleTypeExplicit,
			Values: map[string]decimal.Decimal{a.ID: decimal.NewFromInt(7_250_400)},
		},
		Reason:        "promotion",
		EffectiveDate: "2025-03-01",
		Actor:         "hr-admin",
	})
	require.NoError(t, err)

	result, err := f.svc.Execute(ctx, bulk.ExecuteRequest{OperationID: detail.Operation.ID, Actor: "payroll-lead"}, nil)
	require.NoError(t, err)
	assert.Equal(t, bulk.OperationStatusPartiallyCompleted, result.Operation.Status)
	assert.True(t, f.activeAmounts(t, a.ID)["Gaji Pokok"].Equal(decimal.NewFromInt(7_250_000)))
	assert.True(t, f.activeAmounts(t, b.ID)["Gaji Pokok"].Equal(decimal.NewFromInt(6_000_000)))
}

func TestExecute_UsesLiveComponents(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	a := f.addEmployee(t, "Andi", nil, 5_000_000, 0)

	detail, err := f.svc.Preview(ctx, percentRaise(10, a.ID))
	require.NoError(t, err)

	// A direct edit between preview and execute is respected.
	list, err := f.components.ListByEmployee(ctx, a.ID, true)
	require.NoError(t, err)
	edited := list[0]
	edited.Amount = decimal.NewFromInt(6_000_000)
	_, err = f.components.Update(ctx, edited)
	require.NoError(t, err)

	_, err = f.svc.Execute(ctx, bulk.ExecuteRequest{OperationID: detail.Operation.ID, Actor: "payroll-lead"}, nil)
	require.NoError(t, err)
	assert.True(t, f.activeAmounts(t, a.ID)["Gaji Pokok"].Equal(decimal.NewFromInt(6_600_000)))
}

func TestGet_UnknownOperation(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.Get(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, bulk.ErrOperationNotFound)

	_, err = f.svc.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, bulk.ErrOperationNotFound)
}

func TestRecoverInterrupted_FinishesStaleOperation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	a := f.addEmployee(t, "Andi", nil, 5_000_000, 0)
	b := f.addEmployee(t, "Budi", nil, 6_000_000, 0)
	detail, err := f.svc.Preview(ctx, percentRaise(5, a.ID, b.ID))
	require.NoError(t, err)

	// simulate an executor that died after the first item
	_, err = f.operations.Start(ctx, detail.Operation.ID, "payroll-lead", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	first := detail.Items[0]
	first.Status = bulk.ItemStatusApplied
	require.NoError(t, f.operations.UpdateItem(ctx, first))

	recovered, err := f.svc.RecoverInterrupted(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, recovered, 1)

	op := recovered[0]
	assert.Equal(t, bulk.OperationStatusPartiallyCompleted, op.Status)
	assert.Equal(t, 1, op.AppliedCount)
	assert.Equal(t, 0, op.FailedCount)
	require.NotNil(t, op.Error)
	assert.Contains(t, *op.Error, "1 items not processed")
	require.Len(t, f.recorder.Events(), 1)
	assert.Equal(t, events.TypeBulkOperationCompleted, f.recorder.Events()[0].Type)

	again, err := f.svc.RecoverInterrupted(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRecoverInterrupted_SkipsFreshAndLockedOperations(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	a := f.addEmployee(t, "Andi", nil, 5_000_000, 0)

	fresh, err := f.svc.Preview(ctx, percentRaise(5, a.ID))
	require.NoError(t, err)
	_, err = f.operations.Start(ctx, fresh.Operation.ID, "payroll-lead", time.Now().UTC())
	require.NoError(t, err)

	held, err := f.svc.Preview(ctx, percentRaise(5, a.ID))
	require.NoError(t, err)
	_, err = f.operations.Start(ctx, held.Operation.ID, "payroll-lead", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	release, err := f.locker.TryLock(ctx, lock.BulkOperationKey(held.Operation.ID))
	require.NoError(t, err)
	defer release()

	recovered, err := f.svc.RecoverInterrupted(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, recovered)

	op, err := f.operations.GetByID(ctx, held.Operation.ID)
	require.NoError(t, err)
	assert.Equal(t, bulk.OperationStatusRunning, op.Status)
}

func TestRecoverInterrupted_NothingApplied(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	a := f.addEmployee(t, "Andi", nil, 5_000_000, 0)
	detail, err := f.svc.Preview(ctx, percentRaise(5, a.ID))
	require.NoError(t, err)
	_, err = f.operations.Start(ctx, detail.Operation.ID, "payroll-lead", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	recovered, err := f.svc.RecoverInterrupted(ctx, time.Minute)
	require.NoError(t, err)
	require.Len(t, recovered, 1)
	assert.Equal(t, bulk.OperationStatusFailed, recovered[0].Status)
	assert.True(t, f.activeAmounts(t, a.ID)["Gaji Pokok"].Equal(decimal.NewFromInt(5_000_000)))
}
