package payroll

import (
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/bpjs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodStatus moves forward only: draft -> calculated -> finalized.
// A calculated period may be recalculated; a finalized one is immutable.
type PeriodStatus string

const (
	PeriodStatusDraft      PeriodStatus = "draft"
	PeriodStatusCalculated PeriodStatus = "calculated"
	PeriodStatusFinalized  PeriodStatus = "finalized"
)

type Totals struct {
	EmployeeCount             int
	TotalGross                decimal.Decimal
	TotalTax                  decimal.Decimal
	TotalEmployeeContribution decimal.Decimal
	TotalEmployerContribution decimal.Decimal
	TotalNet                  decimal.Decimal
}

// Period is one payroll month. Totals are meaningful once the period is calculated.
type Period struct {
	ID           string
	Month        int
	Year         int
	Status       PeriodStatus
	Totals       Totals
	WarningCount int
	CalculatedAt *time.Time
	FinalizedAt  *time.Time
	FinalizedBy  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p Period) IsFinalized() bool {
	return p.Status == PeriodStatusFinalized
}

// VariableInput holds the per-period pay elements that are not part of the
// employee's recurring salary components.
type VariableInput struct {
	PeriodID       string
	EmployeeID     string
	Bonus          decimal.Decimal
	Overtime       decimal.Decimal
	OtherAllowance decimal.Decimal
	OtherDeduction decimal.Decimal
	UpdatedAt      time.Time
}

type Warning string

const (
	WarningNonPositiveNet Warning = "non_positive_net"
)

// LineItem is the computed payroll of one employee in one period.
type LineItem struct {
	ID                   string
	PeriodID             string
	EmployeeID           string
	EmployeeCode         string
	EmployeeName         string
	TaxStatus            employee.TaxStatus
	BaseSalary           decimal.Decimal
	FixedAllowances      decimal.Decimal
	Bonus                decimal.Decimal
	Overtime             decimal.Decimal
	OtherAllowance       decimal.Decimal
	OtherDeduction       decimal.Decimal
	GrossPay             decimal.Decimal
	Contributions        bpjs.Contributions
	EmployeeContribution decimal.Decimal
	EmployerContribution decimal.Decimal
	OccupationalCost     decimal.Decimal
	TaxableIncomeAnnual  decimal.Decimal
	TaxAnnual            decimal.Decimal
	TaxWithheld          decimal.Decimal
	NetPay               decimal.Decimal
	Warnings             []Warning
}

func (l LineItem) HasWarnings() bool {
	return len(l.Warnings) > 0
}

var lineItemNamespace = uuid.MustParse("5b8f3c1e-2d6a-4f1b-9a7e-0c4d2e8f6a10")

// LineItemID is stable for a (period, employee) pair so recalculation
// produces the same identifiers.
func LineItemID(periodID, employeeID string) string {
	return uuid.NewSHA1(lineItemNamespace, []byte(periodID+"/"+employeeID)).String()
}

// SumTotals derives period totals from its line items.
func SumTotals(items []LineItem) (Totals, int) {
	t := Totals{
		EmployeeCount:             len(items),
		TotalGross:                decimal.Zero,
		TotalTax:                  decimal.Zero,
		TotalEmployeeContribution: decimal.Zero,
		TotalEmployerContribution: decimal.Zero,
		TotalNet:                  decimal.Zero,
	}
	warnings := 0
	for _, item := range items {
		t.TotalGross = t.TotalGross.Add(item.GrossPay)
		t.TotalTax = t.TotalTax.Add(item.TaxWithheld)
		t.TotalEmployeeContribution = t.TotalEmployeeContribution.Add(item.EmployeeContribution)
		t.TotalEmployerContribution = t.TotalEmployerContribution.Add(item.EmployerContribution)
		t.TotalNet = t.TotalNet.Add(item.NetPay)
		if item.HasWarnings() {
			warnings++
		}
	}
	return t, warnings
}
