package salary

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proposeRaise(t *testing.T, f *fixture, componentID string, amount int64) salary.ChangeRecord {
	t.Helper()
	records, err := f.approvalS.Propose(context.Background(), salary.ProposeChangeRequest{
		EmployeeID:    f.employeeID,
		Actor:         "hr-staff",
		Reason:        "annual review",
		EffectiveDate: "2025-07-01",
		Changes: []salary.ProposedChange{{
			Action:      string(salary.ChangeActionUpdate),
			ComponentID: &componentID,
			Amount:      ptr(decimal.NewFromInt(amount)),
		}},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0]
}

func TestApprovalService_ProposeLeavesComponentUntouched(t *testing.T) {
	f := newFixture(t)
	c := f.seedComponent(t, salary.ComponentKindBasicSalary, "Gaji Pokok", 5_000_000)

	rec := proposeRaise(t, f, c.ID, 5_500_000)
	assert.Equal(t, salary.ApprovalStatusPending, rec.ApprovalStatus)
	assert.Equal(t, salary.ChangeSourceApproval, rec.Source)
	assert.NotNil(t, rec.SourceRefID)
	assert.Nil(t, rec.DecidedBy)
	assert.Equal(t, "2025-07-01", rec.EffectiveDate.Format("2006-01-02"))

	live, err := f.components.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, live.Amount.Equal(decimal.NewFromInt(5_000_000)))
}

func TestApprovalService_RejectKeepsComponentUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.seedComponent(t, salary.ComponentKindBasicSalary, "Gaji Pokok", 5_000_000)
	rec := proposeRaise(t, f, c.ID, 5_500_000)

	resolved, err := f.approvalS.Decide(ctx, salary.DecideChangeRequest{
		RecordIDs: []string{rec.ID},
		Decision:  string(salary.DecisionReject),
		Notes:     ptr("budget frozen"),
		Actor:     "payroll-lead",
	})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, salary.ApprovalStatusRejected, resolved[0].ApprovalStatus)
	assert.Equal(t, "payroll-lead", *resolved[0].DecidedBy)
	assert.Equal(t, "budget frozen", *resolved[0].DecisionNotes)

	live, err := f.components.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, live.Amount.Equal(decimal.NewFromInt(5_000_000)))

	status := salary.ApprovalStatusRejected
	rejected, _, err := f.changes.List(ctx, salary.ChangeRecordFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, rejected, 1)

	// Only the seeding create was applied to the live component.
	records := f.allRecords(t)
	require.Len(t, records, 2)
	assert.Equal(t, salary.ApprovalStatusAutoApproved, records[0].ApprovalStatus)
}

func TestApprovalService_ApproveAppliesChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.seedComponent(t, salary.ComponentKindBasicSalary, "Gaji Pokok", 5_000_000)
	rec := proposeRaise(t, f, c.ID, 5_500_000)

	resolved, err := f.approvalS.Decide(ctx, salary.DecideChangeRequest{
		RecordIDs: []string{rec.ID},
		Decision:  string(salary.DecisionApprove),
		Actor:     "payroll-lead",
	})
	require.NoError(t, err)
	assert.Equal(t, salary.ApprovalStatusApproved, resolved[0].ApprovalStatus)
	assert.True(t, resolved[0].PreviousAmount.Equal(decimal.NewFromInt(5_000_000)))

	live, err := f.components.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, live.Amount.Equal(decimal.NewFromInt(5_500_000)))

	// Approval resolves the pending record instead of appending another one.
	assert.Len(t, f.allRecords(t), 2)
}

func TestApprovalService_ApproveCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	proposed, err := f.approvalS.Propose(ctx, salary.ProposeChangeRequest{
		EmployeeID:    f.employeeID,
		Actor:         "hr-staff",
		Reason:        "new allowance",
		EffectiveDate: "2025-07-01",
		Changes: []salary.ProposedChange{{
			Action: string(salary.ChangeActionCreate),
			Kind:   ptr(string(salary.ComponentKindFixedAllowance)),
			Name:   ptr("Housing"),
			Amount: ptr(decimal.NewFromInt(750_000)),
		}},
	})
	require.NoError(t, err)
	assert.Nil(t, proposed[0].ComponentID)

	resolved, err := f.approvalS.Decide(ctx, salary.DecideChangeRequest{
		RecordIDs: []string{proposed[0].ID},
		Decision:  string(salary.DecisionApprove),
		Actor:     "payroll-lead",
	})
	require.NoError(t, err)
	require.NotNil(t, resolved[0].ComponentID)

	live, err := f.components.GetByID(ctx, *resolved[0].ComponentID)
	require.NoError(t, err)
	assert.Equal(t, "Housing", live.Name)
	assert.True(t, live.IsActive)
}

func TestApprovalService_DecideIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	basic := f.seedComponent(t, salary.ComponentKindBasicSalary, "Gaji Pokok", 5_000_000)
	allowance := f.seedComponent(t, salary.ComponentKindFixedAllowance, "Transport", 300_000)

	first := proposeRaise(t, f, basic.ID, 5_500_000)
	second := proposeRaise(t, f, allowance.ID, 400_000)

	_, err := f.approvalS.Decide(ctx, salary.DecideChangeRequest{
		RecordIDs: []string{second.ID},
		Decision:  string(salary.DecisionReject),
		Actor:     "payroll-lead",
	})
	require.NoError(t, err)

	_, err = f.approvalS.Decide(ctx, salary.DecideChangeRequest{
		RecordIDs: []string{first.ID, second.ID},
		Decision:  string(salary.DecisionApprove),
		Actor:     "payroll-lead",
	})
	assert.ErrorIs(t, err, salary.ErrRecordAlreadyDecided)

	// The first record was processed before the failure and must be rolled back.
	got, err := f.changes.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPending())

	live, err := f.components.GetByID(ctx, basic.ID)
	require.NoError(t, err)
	assert.True(t, live.Amount.Equal(decimal.NewFromInt(5_000_000)))
}

func TestApprovalService_ProposeRejectsForeignComponent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := uuid.New().String()
	f.store.AddEmployee(employee.Employee{ID: other, EmployeeCode: "EMP-002", TaxStatus: employee.TaxStatusK1, EmploymentStatus: employee.EmploymentStatusActive})
	foreign, err := f.componentS.CreateComponent(ctx, salary.CreateComponentRequest{
		EmployeeID: other,
		Actor:      "hr-admin",
		Kind:       string(salary.ComponentKindBasicSalary),
		Name:       "Gaji Pokok",
		Amount:     decimal.NewFromInt(7_000_000),
	})
	require.NoError(t, err)

	_, err = f.approvalS.Propose(ctx, salary.ProposeChangeRequest{
		EmployeeID:    f.employeeID,
		Actor:         "hr-staff",
		Reason:        "typo",
		EffectiveDate: "2025-07-01",
		Changes: []salary.ProposedChange{{
			Action:      string(salary.ChangeActionDelete),
			ComponentID: &foreign.ID,
		}},
	})
	assert.ErrorIs(t, err, salary.ErrComponentOwnership)
	assert.Len(t, f.allRecords(t), 1)
}

func TestApprovalService_AnnouncesAfterCommit(t *testing.T) {
	f := newFixture(t)
	c := f.seedComponent(t, salary.ComponentKindBasicSalary, "Gaji Pokok", 5_000_000)
	before := len(f.recorder.Events())

	rec := proposeRaise(t, f, c.ID, 5_100_000)
	_, err := f.approvalS.Decide(context.Background(), salary.DecideChangeRequest{
		RecordIDs: []string{rec.ID},
		Decision:  string(salary.DecisionApprove),
		Actor:     "payroll-lead",
	})
	require.NoError(t, err)

	assert.Len(t, f.recorder.Events(), before+2)
}
