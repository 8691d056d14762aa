package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed rates/default.yaml
var defaultRatesYAML []byte

// Rates holds the statutory tables consumed by the tax and contribution calculators.
type Rates struct {
	Tax  TaxRates          `yaml:"tax"`
	BPJS ContributionRates `yaml:"bpjs"`
}

type TaxRates struct {
	OccupationalCostRate       decimal.Decimal            `yaml:"occupational_cost_rate"`
	OccupationalCostMonthlyCap decimal.Decimal            `yaml:"occupational_cost_monthly_cap"`
	PTKP                       map[string]decimal.Decimal `yaml:"ptkp"`
	Brackets                   []TaxBracket               `yaml:"brackets"`
}

// TaxBracket applies Rate to the part of annual taxable income up to UpTo.
// The last bracket has no upper bound.
type TaxBracket struct {
	UpTo *decimal.Decimal `yaml:"up_to"`
	Rate decimal.Decimal  `yaml:"rate"`
}

type ContributionRates struct {
	Health           ProgramRates    `yaml:"health"`
	OldAge           ProgramRates    `yaml:"old_age"`
	Pension          ProgramRates    `yaml:"pension"`
	WorkAccidentRate decimal.Decimal `yaml:"work_accident_rate"`
	DeathRate        decimal.Decimal `yaml:"death_rate"`
}

// ProgramRates is a shared-cost program. A nil SalaryCap means the full gross is the base.
type ProgramRates struct {
	EmployeeRate decimal.Decimal  `yaml:"employee_rate"`
	EmployerRate decimal.Decimal  `yaml:"employer_rate"`
	SalaryCap    *decimal.Decimal `yaml:"salary_cap"`
}

// LoadRates reads the rate tables from path, or the embedded defaults when path is empty.
func LoadRates(path string) (*Rates, error) {
	if path == "" {
		return ParseRates(defaultRatesYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rates file: %w", err)
	}
	return ParseRates(data)
}

// DefaultRates returns the embedded rate tables. It panics if they are invalid.
func DefaultRates() *Rates {
	rates, err := ParseRates(defaultRatesYAML)
	if err != nil {
		panic(err)
	}
	return rates
}

func ParseRates(data []byte) (*Rates, error) {
	var rates Rates
	if err := yaml.Unmarshal(data, &rates); err != nil {
		return nil, fmt.Errorf("parse rates: %w", err)
	}
	if err := rates.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rates: %w", err)
	}
	return &rates, nil
}

func (r *Rates) Validate() error {
	if err := validRate("tax.occupational_cost_rate", r.Tax.OccupationalCostRate); err != nil {
		return err
	}
	if r.Tax.OccupationalCostMonthlyCap.IsNegative() {
		return fmt.Errorf("tax.occupational_cost_monthly_cap must not be negative")
	}

	for _, status := range employee.TaxStatuses() {
		amount, ok := r.Tax.PTKP[string(status)]
		if !ok {
			return fmt.Errorf("tax.ptkp is missing %s", status)
		}
		if amount.IsNegative() {
			return fmt.Errorf("tax.ptkp %s must not be negative", status)
		}
	}
	if len(r.Tax.PTKP) != len(employee.TaxStatuses()) {
		return fmt.Errorf("tax.ptkp has unknown tax statuses")
	}

	if len(r.Tax.Brackets) == 0 {
		return fmt.Errorf("tax.brackets must not be empty")
	}
	previous := decimal.Zero
	for i, b := range r.Tax.Brackets {
		if err := validRate(fmt.Sprintf("tax.brackets[%d].rate", i), b.Rate); err != nil {
			return err
		}
		last := i == len(r.Tax.Brackets)-1
		if b.UpTo == nil {
			if !last {
				return fmt.Errorf("tax.brackets[%d] is unbounded but not last", i)
			}
			continue
		}
		if last {
			return fmt.Errorf("last tax bracket must be unbounded")
		}
		if !b.UpTo.GreaterThan(previous) {
			return fmt.Errorf("tax.brackets[%d].up_to must be ascending", i)
		}
		previous = *b.UpTo
	}

	programs := []struct {
		name  string
		rates ProgramRates
	}{
		{"bpjs.health", r.BPJS.Health},
		{"bpjs.old_age", r.BPJS.OldAge},
		{"bpjs.pension", r.BPJS.Pension},
	}
	for _, p := range programs {
		if err := validRate(p.name+".employee_rate", p.rates.EmployeeRate); err != nil {
			return err
		}
		if err := validRate(p.name+".employer_rate", p.rates.EmployerRate); err != nil {
			return err
		}
		if p.rates.SalaryCap != nil && !p.rates.SalaryCap.IsPositive() {
			return fmt.Errorf("%s.salary_cap must be positive", p.name)
		}
	}
	if err := validRate("bpjs.work_accident_rate", r.BPJS.WorkAccidentRate); err != nil {
		return err
	}
	return validRate("bpjs.death_rate", r.BPJS.DeathRate)
}

func validRate(name string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1", name)
	}
	return nil
}
