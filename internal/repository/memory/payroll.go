package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
)

type periodRepository struct {
	store *Store
}

func NewPeriodRepository(store *Store) payroll.PeriodRepository {
	return &periodRepository{store: store}
}

func (r *periodRepository) Create(ctx context.Context, period payroll.Period) (payroll.Period, error) {
	defer r.store.lock(ctx)()

	for _, p := range r.store.periods {
		if p.Month == period.Month && p.Year == period.Year {
			return payroll.Period{}, payroll.ErrPeriodAlreadyExists
		}
	}
	now := r.store.now()
	period.CreatedAt = now
	period.UpdatedAt = now
	r.store.periods[period.ID] = period
	return period, nil
}

func (r *periodRepository) GetByID(ctx context.Context, id string) (payroll.Period, error) {
	defer r.store.lock(ctx)()

	p, ok := r.store.periods[id]
	if !ok {
		return payroll.Period{}, payroll.ErrPeriodNotFound
	}
	return p, nil
}

func (r *periodRepository) List(ctx context.Context, year *int) ([]payroll.Period, error) {
	defer r.store.lock(ctx)()

	out := []payroll.Period{}
	for _, p := range r.store.periods {
		if year == nil || p.Year == *year {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (r *periodRepository) SaveCalculation(ctx context.Context, id string, totals payroll.Totals, warningCount int, calculatedAt time.Time) (payroll.Period, error) {
	defer r.store.lock(ctx)()

	p, ok := r.store.periods[id]
	if !ok {
		return payroll.Period{}, payroll.ErrPeriodNotFound
	}
	if p.IsFinalized() {
		return payroll.Period{}, payroll.ErrInvalidStateTransition
	}
	p.Status = payroll.PeriodStatusCalculated
	p.Totals = totals
	p.WarningCount = warningCount
	p.CalculatedAt = &calculatedAt
	p.UpdatedAt = r.store.now()
	r.store.periods[id] = p
	return p, nil
}

func (r *periodRepository) MarkFinalized(ctx context.Context, id string, actor string, finalizedAt time.Time) (payroll.Period, error) {
	defer r.store.lock(ctx)()

	p, ok := r.store.periods[id]
	if !ok {
		return payroll.Period{}, payroll.ErrPeriodNotFound
	}
	if p.Status != payroll.PeriodStatusCalculated {
		return payroll.Period{}, payroll.ErrInvalidStateTransition
	}
	p.Status = payroll.PeriodStatusFinalized
	p.FinalizedAt = &finalizedAt
	p.FinalizedBy = &actor
	p.UpdatedAt = r.store.now()
	r.store.periods[id] = p
	return p, nil
}

type lineItemRepository struct {
	store *Store
}

func NewLineItemRepository(store *Store) payroll.LineItemRepository {
	return &lineItemRepository{store: store}
}

func (r *lineItemRepository) ReplaceForPeriod(ctx context.Context, periodID string, items []payroll.LineItem) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.periods[periodID]; !ok {
		return payroll.ErrPeriodNotFound
	}
	replaced := append([]payroll.LineItem(nil), items...)
	sort.Slice(replaced, func(i, j int) bool { return replaced[i].EmployeeID < replaced[j].EmployeeID })
	r.store.lineItems[periodID] = replaced
	return nil
}

func (r *lineItemRepository) ListByPeriod(ctx context.Context, periodID string) ([]payroll.LineItem, error) {
	defer r.store.lock(ctx)()

	return append([]payroll.LineItem{}, r.store.lineItems[periodID]...), nil
}

type variableInputRepository struct {
	store *Store
}

func NewVariableInputRepository(store *Store) payroll.VariableInputRepository {
	return &variableInputRepository{store: store}
}

func (r *variableInputRepository) Upsert(ctx context.Context, inputs []payroll.VariableInput) error {
	defer r.store.lock(ctx)()

	now := r.store.now()
	for _, in := range inputs {
		byEmployee := r.store.variableInputs[in.PeriodID]
		if byEmployee == nil {
			byEmployee = make(map[string]payroll.VariableInput)
			r.store.variableInputs[in.PeriodID] = byEmployee
		}
		in.UpdatedAt = now
		byEmployee[in.EmployeeID] = in
	}
	return nil
}

func (r *variableInputRepository) ListByPeriod(ctx context.Context, periodID string) ([]payroll.VariableInput, error) {
	defer r.store.lock(ctx)()

	out := []payroll.VariableInput{}
	for _, in := range r.store.variableInputs[periodID] {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (r *variableInputRepository) Delete(ctx context.Context, periodID, employeeID string) error {
	defer r.store.lock(ctx)()

	byEmployee := r.store.variableInputs[periodID]
	if _, ok := byEmployee[employeeID]; !ok {
		return payroll.ErrVariableInputNotFound
	}
	delete(byEmployee, employeeID)
	return nil
}
