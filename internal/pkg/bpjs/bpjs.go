// Package bpjs computes the statutory social insurance contributions
// (BPJS Kesehatan and BPJS Ketenagakerjaan) for one month of gross pay.
package bpjs

import (
	"github.com/cmlabs-hris/hris-payroll-go/internal/config"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

type Input struct {
	Gross              decimal.Decimal
	HealthEnrolled     bool
	EmploymentEnrolled bool
}

// Share is the split of one program between the employee and the employer.
type Share struct {
	Employee decimal.Decimal `json:"employee"`
	Employer decimal.Decimal `json:"employer"`
}

func (s Share) Total() decimal.Decimal {
	return s.Employee.Add(s.Employer)
}

// Contributions is the full breakdown. JKK and JKM are paid by the employer only.
type Contributions struct {
	Health       Share           `json:"health"`
	OldAge       Share           `json:"old_age"`
	Pension      Share           `json:"pension"`
	WorkAccident decimal.Decimal `json:"work_accident"`
	Death        decimal.Decimal `json:"death"`
}

func (c Contributions) EmployeeTotal() decimal.Decimal {
	return c.Health.Employee.Add(c.OldAge.Employee).Add(c.Pension.Employee)
}

func (c Contributions) EmployerTotal() decimal.Decimal {
	return c.Health.Employer.
		Add(c.OldAge.Employer).
		Add(c.Pension.Employer).
		Add(c.WorkAccident).
		Add(c.Death)
}

// TaxDeductible is the employee share that reduces PPh21 taxable income (JHT + JP).
func (c Contributions) TaxDeductible() decimal.Decimal {
	return c.OldAge.Employee.Add(c.Pension.Employee)
}

type Calculator struct {
	rates config.ContributionRates
}

func NewCalculator(rates config.ContributionRates) *Calculator {
	return &Calculator{rates: rates}
}

// Calculate rounds each figure once, half-up to whole rupiah.
func (c *Calculator) Calculate(in Input) (Contributions, error) {
	if in.Gross.IsNegative() {
		return Contributions{}, apperror.New(apperror.CodeInvalidInput, "gross income must not be negative")
	}

	var out Contributions
	zero := Share{Employee: decimal.Zero, Employer: decimal.Zero}
	out.Health, out.OldAge, out.Pension = zero, zero, zero
	out.WorkAccident, out.Death = decimal.Zero, decimal.Zero

	if in.HealthEnrolled {
		out.Health = share(in.Gross, c.rates.Health)
	}
	if in.EmploymentEnrolled {
		out.OldAge = share(in.Gross, c.rates.OldAge)
		out.Pension = share(in.Gross, c.rates.Pension)
		out.WorkAccident = in.Gross.Mul(c.rates.WorkAccidentRate).Round(0)
		out.Death = in.Gross.Mul(c.rates.DeathRate).Round(0)
	}
	return out, nil
}

func share(gross decimal.Decimal, program config.ProgramRates) Share {
	base := gross
	if program.SalaryCap != nil {
		base = decimal.Min(gross, *program.SalaryCap)
	}
	return Share{
		Employee: base.Mul(program.EmployeeRate).Round(0),
		Employer: base.Mul(program.EmployerRate).Round(0),
	}
}
