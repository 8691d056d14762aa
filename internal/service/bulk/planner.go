package bulk

import (
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/bulk"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// planner turns a rule and an employee's active components into per-component
// before/after values. It is shared by preview and execution so both agree.
type planner struct {
	rule         bulk.AdjustmentRule
	roundingUnit decimal.Decimal
}

func (p planner) plan(employeeID string, components []salary.Component) ([]bulk.PlannedChange, error) {
	if len(components) == 0 {
		return nil, bulk.ErrNoActiveComponents
	}

	switch p.rule.Type {
	case bulk.RuleTypePercentage:
		factor := decimal.NewFromInt(1).Add(p.rule.Percent.Div(hundred))
		changes := make([]bulk.PlannedChange, 0, len(components))
		for _, c := range components {
			changes = append(changes, change(c, p.round(c.Amount.Mul(factor))))
		}
		return changes, nil

	case bulk.RuleTypeFixedAmount:
		basic, err := basicSalary(components)
		if err != nil {
			return nil, err
		}
		after := p.round(basic.Amount.Add(*p.rule.Amount))
		if after.IsNegative() {
			return nil, fmt.Errorf("%w: %s would become %s", bulk.ErrNegativeResult, basic.Name, after)
		}
		return []bulk.PlannedChange{change(basic, after)}, nil

	case bulk.RuleTypeExplicit:
		target, ok := p.rule.Values[employeeID]
		if !ok {
			return nil, bulk.ErrNoTargetValue
		}
		basic, err := basicSalary(components)
		if err != nil {
			return nil, err
		}
		return []bulk.PlannedChange{change(basic, p.round(target))}, nil
	}
	return nil, fmt.Errorf("unsupported rule type %q", p.rule.Type)
}

// round applies half-up rounding to a multiple of the rounding unit.
func (p planner) round(amount decimal.Decimal) decimal.Decimal {
	if !p.roundingUnit.IsPositive() {
		return amount.Round(0)
	}
	return amount.Div(p.roundingUnit).Round(0).Mul(p.roundingUnit)
}

func basicSalary(components []salary.Component) (salary.Component, error) {
	for _, c := range components {
		if c.Kind == salary.ComponentKindBasicSalary {
			return c, nil
		}
	}
	return salary.Component{}, salary.ErrNoBasicSalary
}

func change(c salary.Component, after decimal.Decimal) bulk.PlannedChange {
	return bulk.PlannedChange{
		ComponentID: c.ID,
		Kind:        c.Kind,
		Name:        c.Name,
		Before:      c.Amount,
		After:       after,
	}
}
