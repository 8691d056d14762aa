package bulk

import (
	"errors"
	"testing"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	empA = "6f1c2a9e-8d1b-4c2e-9a3f-1b2c3d4e5f60"
	empB = "6f1c2a9e-8d1b-4c2e-9a3f-1b2c3d4e5f61"
	dept = "0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d"
)

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func validPreview() PreviewRequest {
	return PreviewRequest{
		Cohort:        CohortSelector{Type: CohortTypeExplicit, EmployeeIDs: []string{empA, empB}},
		Rule:          AdjustmentRule{Type: RuleTypePercentage, Percent: dec("10")},
		Reason:        "annual raise",
		EffectiveDate: "2025-01-01",
		Actor:         "admin-1",
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
	return verrs.ToMap()
}

func TestPreviewRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *PreviewRequest)
		wantField string
	}{
		{name: "valid explicit percentage", mutate: func(r *PreviewRequest) {}},
		{name: "valid filter fixed amount", mutate: func(r *PreviewRequest) {
			r.Cohort = CohortSelector{Type: CohortTypeFilter, Filter: &CohortFilter{DepartmentID: ptr(dept)}}
			r.Rule = AdjustmentRule{Type: RuleTypeFixedAmount, Amount: dec("250000")}
		}},
		{name: "valid explicit values", mutate: func(r *PreviewRequest) {
			r.Rule = AdjustmentRule{Type: RuleTypeExplicit, Values: map[string]decimal.Decimal{empA: decimal.NewFromInt(9_000_000)}}
		}},
		{name: "unknown cohort type", mutate: func(r *PreviewRequest) { r.Cohort.Type = "everyone" }, wantField: "cohort.type"},
		{name: "empty explicit cohort", mutate: func(r *PreviewRequest) { r.Cohort.EmployeeIDs = nil }, wantField: "cohort.employee_ids"},
		{name: "duplicate employees", mutate: func(r *PreviewRequest) { r.Cohort.EmployeeIDs = []string{empA, empA} }, wantField: "cohort.employee_ids"},
		{name: "filter without criteria", mutate: func(r *PreviewRequest) {
			r.Cohort = CohortSelector{Type: CohortTypeFilter, Filter: &CohortFilter{}}
		}, wantField: "cohort.filter"},
		{name: "filter range inverted", mutate: func(r *PreviewRequest) {
			r.Cohort = CohortSelector{Type: CohortTypeFilter, Filter: &CohortFilter{MinBasicSalary: dec("10"), MaxBasicSalary: dec("5")}}
		}, wantField: "cohort.filter.max_basic_salary"},
		{name: "percent missing", mutate: func(r *PreviewRequest) { r.Rule.Percent = nil }, wantField: "rule.percent"},
		{name: "percent wipes salary", mutate: func(r *PreviewRequest) { r.Rule.Percent = dec("-100") }, wantField: "rule.percent"},
		{name: "fixed amount zero", mutate: func(r *PreviewRequest) {
			r.Rule = AdjustmentRule{Type: RuleTypeFixedAmount, Amount: dec("0")}
		}, wantField: "rule.amount"},
		{name: "explicit negative value", mutate: func(r *PreviewRequest) {
			r.Rule = AdjustmentRule{Type: RuleTypeExplicit, Values: map[string]decimal.Decimal{empA: decimal.NewFromInt(-1)}}
		}, wantField: "rule.values"},
		{name: "missing reason", mutate: func(r *PreviewRequest) { r.Reason = " " }, wantField: "reason"},
		{name: "bad date", mutate: func(r *PreviewRequest) { r.EffectiveDate = "01/01/2025" }, wantField: "effective_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validPreview()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, fieldsOf(t, err), tt.wantField)
		})
	}
}

func ptr(s string) *string { return &s }

func TestTerminalStatus(t *testing.T) {
	assert.Equal(t, OperationStatusCompleted, TerminalStatus(3, 0, false))
	assert.Equal(t, OperationStatusPartiallyCompleted, TerminalStatus(2, 1, false))
	assert.Equal(t, OperationStatusFailed, TerminalStatus(0, 3, false))
	assert.Equal(t, OperationStatusCancelled, TerminalStatus(1, 0, true))
}

func TestResult_Err(t *testing.T) {
	assert.NoError(t, Result{Operation: Operation{Status: OperationStatusCompleted}}.Err())
	assert.ErrorIs(t, Result{Operation: Operation{Status: OperationStatusPartiallyCompleted}}.Err(), ErrPartialFailure)
	assert.ErrorIs(t, Result{Operation: Operation{Status: OperationStatusFailed}}.Err(), ErrOperationFailed)
	assert.ErrorIs(t, Result{Operation: Operation{Status: OperationStatusCancelled}, Failed: 1}.Err(), ErrPartialFailure)
}
