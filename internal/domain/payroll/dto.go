package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/bpjs"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== PERIOD DTOs ==========

type CreatePeriodRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (r *CreatePeriodRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Month < 1 || r.Month > 12 {
		errs.Add("month", "must be between 1 and 12")
	}
	if r.Year < 2000 {
		errs.Add("year", "must be 2000 or later")
	}

	return errs.OrNil()
}

type PeriodResponse struct {
	ID                        string          `json:"id"`
	Month                     int             `json:"month"`
	Year                      int             `json:"year"`
	Status                    string          `json:"status"`
	EmployeeCount             int             `json:"employee_count"`
	TotalGross                decimal.Decimal `json:"total_gross"`
	TotalTax                  decimal.Decimal `json:"total_tax"`
	TotalEmployeeContribution decimal.Decimal `json:"total_employee_contribution"`
	TotalEmployerContribution decimal.Decimal `json:"total_employer_contribution"`
	TotalNet                  decimal.Decimal `json:"total_net"`
	WarningCount              int             `json:"warning_count"`
	CalculatedAt              *time.Time      `json:"calculated_at,omitempty"`
	FinalizedAt               *time.Time      `json:"finalized_at,omitempty"`
	FinalizedBy               *string         `json:"finalized_by,omitempty"`
}

func NewPeriodResponse(p Period) PeriodResponse {
	return PeriodResponse{
		ID:                        p.ID,
		Month:                     p.Month,
		Year:                      p.Year,
		Status:                    string(p.Status),
		EmployeeCount:             p.Totals.EmployeeCount,
		TotalGross:                p.Totals.TotalGross,
		TotalTax:                  p.Totals.TotalTax,
		TotalEmployeeContribution: p.Totals.TotalEmployeeContribution,
		TotalEmployerContribution: p.Totals.TotalEmployerContribution,
		TotalNet:                  p.Totals.TotalNet,
		WarningCount:              p.WarningCount,
		CalculatedAt:              p.CalculatedAt,
		FinalizedAt:               p.FinalizedAt,
		FinalizedBy:               p.FinalizedBy,
	}
}

func NewPeriodResponses(periods []Period) []PeriodResponse {
	out := make([]PeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, NewPeriodResponse(p))
	}
	return out
}

// ========== VARIABLE INPUT DTOs ==========

type VariableInputRequest struct {
	EmployeeID     string          `json:"employee_id"`
	Bonus          decimal.Decimal `json:"bonus"`
	Overtime       decimal.Decimal `json:"overtime"`
	OtherAllowance decimal.Decimal `json:"other_allowance"`
	OtherDeduction decimal.Decimal `json:"other_deduction"`
}

func (r VariableInputRequest) ToEntity(periodID string) VariableInput {
	return VariableInput{
		PeriodID:       periodID,
		EmployeeID:     r.EmployeeID,
		Bonus:          r.Bonus,
		Overtime:       r.Overtime,
		OtherAllowance: r.OtherAllowance,
		OtherDeduction: r.OtherDeduction,
	}
}

func validateVariableInputs(errs *validator.ValidationErrors, inputs []VariableInputRequest) {
	ids := make([]string, 0, len(inputs))
	for i, in := range inputs {
		prefix := fmt.Sprintf("inputs[%d].", i)
		if !validator.IsValidUUID(in.EmployeeID) {
			errs.Add(prefix+"employee_id", "must be a valid UUID")
		}
		amounts := []struct {
			name  string
			value decimal.Decimal
		}{
			{"bonus", in.Bonus},
			{"overtime", in.Overtime},
			{"other_allowance", in.OtherAllowance},
			{"other_deduction", in.OtherDeduction},
		}
		for _, a := range amounts {
			if !validator.IsNonNegative(a.value) {
				errs.Add(prefix+a.name, "must be non-negative")
			}
		}
		ids = append(ids, in.EmployeeID)
	}
	if validator.HasDuplicates(ids) {
		errs.Add("inputs", "each employee may appear only once")
	}
}

type SetVariableInputsRequest struct {
	PeriodID string                 `json:"-"`
	Inputs   []VariableInputRequest `json:"inputs"`
}

func (r *SetVariableInputsRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.PeriodID) {
		errs.Add("period_id", "must be a valid UUID")
	}
	if len(r.Inputs) == 0 {
		errs.Add("inputs", "at least one input is required")
	}
	validateVariableInputs(&errs, r.Inputs)

	return errs.OrNil()
}

type VariableInputResponse struct {
	EmployeeID     string          `json:"employee_id"`
	Bonus          decimal.Decimal `json:"bonus"`
	Overtime       decimal.Decimal `json:"overtime"`
	OtherAllowance decimal.Decimal `json:"other_allowance"`
	OtherDeduction decimal.Decimal `json:"other_deduction"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func NewVariableInputResponses(inputs []VariableInput) []VariableInputResponse {
	out := make([]VariableInputResponse, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, VariableInputResponse{
			EmployeeID:     in.EmployeeID,
			Bonus:          in.Bonus,
			Overtime:       in.Overtime,
			OtherAllowance: in.OtherAllowance,
			OtherDeduction: in.OtherDeduction,
			UpdatedAt:      in.UpdatedAt,
		})
	}
	return out
}

// ========== CALCULATION DTOs ==========

// CalculateRequest may carry variable inputs that override the stored ones
// for this run only. They are not persisted.
type CalculateRequest struct {
	PeriodID string                 `json:"-"`
	Inputs   []VariableInputRequest `json:"inputs,omitempty"`
}

func (r *CalculateRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.PeriodID) {
		errs.Add("period_id", "must be a valid UUID")
	}
	validateVariableInputs(&errs, r.Inputs)

	return errs.OrNil()
}

type FinalizeRequest struct {
	PeriodID            string `json:"-"`
	Actor               string `json:"-"`
	AcknowledgeWarnings bool   `json:"acknowledge_warnings"`
}

func (r *FinalizeRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.PeriodID) {
		errs.Add("period_id", "must be a valid UUID")
	}
	if validator.IsEmpty(r.Actor) {
		errs.Add("actor", "is required")
	}

	return errs.OrNil()
}

type CalculationResult struct {
	Period    Period
	LineItems []LineItem
}

type LineItemResponse struct {
	ID                   string             `json:"id"`
	EmployeeID           string             `json:"employee_id"`
	EmployeeCode         string             `json:"employee_code"`
	EmployeeName         string             `json:"employee_name"`
	TaxStatus            string             `json:"tax_status"`
	BaseSalary           decimal.Decimal    `json:"base_salary"`
	FixedAllowances      decimal.Decimal    `json:"fixed_allowances"`
	Bonus                decimal.Decimal    `json:"bonus"`
	Overtime             decimal.Decimal    `json:"overtime"`
	OtherAllowance       decimal.Decimal    `json:"other_allowance"`
	OtherDeduction       decimal.Decimal    `json:"other_deduction"`
	GrossPay             decimal.Decimal    `json:"gross_pay"`
	Contributions        bpjs.Contributions `json:"contributions"`
	EmployeeContribution decimal.Decimal    `json:"employee_contribution"`
	EmployerContribution decimal.Decimal    `json:"employer_contribution"`
	TaxableIncomeAnnual  decimal.Decimal    `json:"taxable_income_annual"`
	TaxAnnual            decimal.Decimal    `json:"tax_annual"`
	TaxWithheld          decimal.Decimal    `json:"tax_withheld"`
	NetPay               decimal.Decimal    `json:"net_pay"`
	Warnings             []string           `json:"warnings,omitempty"`
}

func NewLineItemResponses(items []LineItem) []LineItemResponse {
	out := make([]LineItemResponse, 0, len(items))
	for _, l := range items {
		var warnings []string
		for _, w := range l.Warnings {
			warnings = append(warnings, string(w))
		}
		out = append(out, LineItemResponse{
			ID:                   l.ID,
			EmployeeID:           l.EmployeeID,
			EmployeeCode:         l.EmployeeCode,
			EmployeeName:         l.EmployeeName,
			TaxStatus:            string(l.TaxStatus),
			BaseSalary:           l.BaseSalary,
			FixedAllowances:      l.FixedAllowances,
			Bonus:                l.Bonus,
			Overtime:             l.Overtime,
			OtherAllowance:       l.OtherAllowance,
			OtherDeduction:       l.OtherDeduction,
			GrossPay:             l.GrossPay,
			Contributions:        l.Contributions,
			EmployeeContribution: l.EmployeeContribution,
			EmployerContribution: l.EmployerContribution,
			TaxableIncomeAnnual:  l.TaxableIncomeAnnual,
			TaxAnnual:            l.TaxAnnual,
			TaxWithheld:          l.TaxWithheld,
			NetPay:               l.NetPay,
			Warnings:             warnings,
		})
	}
	return out
}

type CalculationResponse struct {
	Period    PeriodResponse     `json:"period"`
	LineItems []LineItemResponse `json:"line_items"`
}
