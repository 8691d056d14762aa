// Package pph21 computes monthly employee income tax withholding (PPh Pasal 21)
// from an annualized taxable income and a progressive bracket table.
package pph21

import (
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-go/internal/config"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

const monthsPerYear = 12

var twelve = decimal.NewFromInt(monthsPerYear)

type Input struct {
	GrossMonthly decimal.Decimal
	TaxStatus    employee.TaxStatus
	// DeductibleContribution is the employee's share of pension-type contributions
	// (JHT + JP) that reduces taxable income.
	DeductibleContribution decimal.Decimal
}

type Result struct {
	OccupationalCost decimal.Decimal
	NetMonthly       decimal.Decimal
	NetAnnual        decimal.Decimal
	PTKP             decimal.Decimal
	TaxableAnnual    decimal.Decimal
	TaxAnnual        decimal.Decimal
	TaxMonthly       decimal.Decimal
}

type Calculator struct {
	rates config.TaxRates
}

func NewCalculator(rates config.TaxRates) *Calculator {
	return &Calculator{rates: rates}
}

// Calculate is deterministic and side-effect free. Intermediate figures keep full
// precision; only TaxMonthly is rounded, half-up to whole rupiah.
func (c *Calculator) Calculate(in Input) (Result, error) {
	if !in.TaxStatus.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", employee.ErrInvalidTaxStatus, in.TaxStatus)
	}
	if in.GrossMonthly.IsNegative() {
		return Result{}, apperror.New(apperror.CodeInvalidInput, "gross income must not be negative")
	}
	if in.DeductibleContribution.IsNegative() {
		return Result{}, apperror.New(apperror.CodeInvalidInput, "deductible contribution must not be negative")
	}

	ptkp, ok := c.rates.PTKP[string(in.TaxStatus)]
	if !ok {
		return Result{}, fmt.Errorf("%w: no PTKP for %s", employee.ErrInvalidTaxStatus, in.TaxStatus)
	}

	occupational := decimal.Min(
		in.GrossMonthly.Mul(c.rates.OccupationalCostRate),
		c.rates.OccupationalCostMonthlyCap,
	)
	netMonthly := in.GrossMonthly.Sub(occupational).Sub(in.DeductibleContribution)
	netAnnual := netMonthly.Mul(twelve)
	taxable := decimal.Max(decimal.Zero, netAnnual.Sub(ptkp))

	taxAnnual := c.progressiveTax(taxable)

	return Result{
		OccupationalCost: occupational,
		NetMonthly:       netMonthly,
		NetAnnual:        netAnnual,
		PTKP:             ptkp,
		TaxableAnnual:    taxable,
		TaxAnnual:        taxAnnual,
		TaxMonthly:       taxAnnual.Div(twelve).Round(0),
	}, nil
}

// progressiveTax applies each bracket rate to the slice of taxable income that falls inside it.
func (c *Calculator) progressiveTax(taxable decimal.Decimal) decimal.Decimal {
	tax := decimal.Zero
	lower := decimal.Zero

	for _, b := range c.rates.Brackets {
		if !taxable.GreaterThan(lower) {
			break
		}
		upper := taxable
		if b.UpTo != nil && b.UpTo.LessThan(taxable) {
			upper = *b.UpTo
		}
		tax = tax.Add(upper.Sub(lower).Mul(b.Rate))
		if b.UpTo == nil {
			break
		}
		lower = *b.UpTo
	}
	return tax
}
