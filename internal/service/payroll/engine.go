package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/bpjs"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/events"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/lock"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/pph21"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Options tunes the engine's worker pool and collaborator deadlines.
type Options struct {
	MaxWorkers        int
	RepositoryTimeout time.Duration
}

type PayrollServiceImpl struct {
	tx            database.TxManager
	periodRepo    payroll.PeriodRepository
	lineItemRepo  payroll.LineItemRepository
	variableRepo  payroll.VariableInputRepository
	employeeRepo  employee.EmployeeRepository
	componentRepo salary.ComponentRepository
	locker        lock.Locker
	tax           *pph21.Calculator
	contributions *bpjs.Calculator
	publisher     events.Publisher
	opts          Options
	now           func() time.Time
}

func NewPayrollService(
	tx database.TxManager,
	periodRepo payroll.PeriodRepository,
	lineItemRepo payroll.LineItemRepository,
	variableRepo payroll.VariableInputRepository,
	employeeRepo employee.EmployeeRepository,
	componentRepo salary.ComponentRepository,
	locker lock.Locker,
	tax *pph21.Calculator,
	contributions *bpjs.Calculator,
	publisher events.Publisher,
	opts Options,
) payroll.PayrollService {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	return &PayrollServiceImpl{
		tx:            tx,
		periodRepo:    periodRepo,
		lineItemRepo:  lineItemRepo,
		variableRepo:  variableRepo,
		employeeRepo:  employeeRepo,
		componentRepo: componentRepo,
		locker:        locker,
		tax:           tax,
		contributions: contributions,
		publisher:     publisher,
		opts:          opts,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ========== PERIODS ==========

func (s *PayrollServiceImpl) CreatePeriod(ctx context.Context, req payroll.CreatePeriodRequest) (payroll.Period, error) {
	if err := req.Validate(); err != nil {
		return payroll.Period{}, err
	}

	period, err := s.periodRepo.Create(ctx, payroll.Period{
		ID:     uuid.New().String(),
		Month:  req.Month,
		Year:   req.Year,
		Status: payroll.PeriodStatusDraft,
	})
	if err != nil {
		return payroll.Period{}, err
	}

	slog.Info("Payroll period created", "period_id", period.ID, "month", period.Month, "year", period.Year)
	return period, nil
}

func (s *PayrollServiceImpl) GetPeriod(ctx context.Context, id string) (payroll.Period, error) {
	if !validator.IsValidUUID(id) {
		return payroll.Period{}, payroll.ErrPeriodNotFound
	}
	return s.periodRepo.GetByID(ctx, id)
}

func (s *PayrollServiceImpl) ListPeriods(ctx context.Context, year *int) ([]payroll.Period, error) {
	periods, err := s.periodRepo.List(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll periods: %w", err)
	}
	return periods, nil
}

func (s *PayrollServiceImpl) ListLineItems(ctx context.Context, periodID string) ([]payroll.LineItem, error) {
	if _, err := s.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	items, err := s.lineItemRepo.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	return items, nil
}

// ========== CALCULATION ==========

func (s *PayrollServiceImpl) Calculate(ctx context.Context, req payroll.CalculateRequest) (payroll.CalculationResult, error) {
	if err := req.Validate(); err != nil {
		return payroll.CalculationResult{}, err
	}

	release, err := s.acquire(ctx, req.PeriodID)
	if err != nil {
		return payroll.CalculationResult{}, err
	}
	defer release()

	period, err := s.periodRepo.GetByID(ctx, req.PeriodID)
	if err != nil {
		return payroll.CalculationResult{}, err
	}
	if period.IsFinalized() {
		return payroll.CalculationResult{}, fmt.Errorf("%w: period %d/%d is finalized", payroll.ErrInvalidStateTransition, period.Month, period.Year)
	}

	employees, err := callWithTimeout(ctx, s.opts.RepositoryTimeout, "list active employees", s.employeeRepo.ListActive)
	if err != nil {
		return payroll.CalculationResult{}, err
	}

	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
	}
	components, err := callWithTimeout(ctx, s.opts.RepositoryTimeout, "list salary components", func(ctx context.Context) ([]salary.Component, error) {
		return s.componentRepo.ListActiveByEmployeeIDs(ctx, ids)
	})
	if err != nil {
		return payroll.CalculationResult{}, err
	}

	stored, err := callWithTimeout(ctx, s.opts.RepositoryTimeout, "list variable inputs", func(ctx context.Context) ([]payroll.VariableInput, error) {
		return s.variableRepo.ListByPeriod(ctx, period.ID)
	})
	if err != nil {
		return payroll.CalculationResult{}, err
	}

	inputs, err := mergeVariableInputs(period.ID, employees, stored, req.Inputs)
	if err != nil {
		return payroll.CalculationResult{}, err
	}

	byEmployee := make(map[string][]salary.Component, len(employees))
	for _, c := range components {
		byEmployee[c.EmployeeID] = append(byEmployee[c.EmployeeID], c)
	}

	items := make([]payroll.LineItem, len(employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxWorkers)
	for i, emp := range employees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item, err := s.computeLineItem(period.ID, emp, byEmployee[emp.ID], inputs[emp.ID])
			if err != nil {
				return fmt.Errorf("employee %s: %w", emp.EmployeeCode, err)
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return payroll.CalculationResult{}, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].EmployeeID < items[j].EmployeeID })
	totals, warningCount := payroll.SumTotals(items)
	calculatedAt := s.now()

	var saved payroll.Period
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.lineItemRepo.ReplaceForPeriod(ctx, period.ID, items); err != nil {
			return fmt.Errorf("failed to replace line items: %w", err)
		}
		var err error
		saved, err = s.periodRepo.SaveCalculation(ctx, period.ID, totals, warningCount, calculatedAt)
		return err
	})
	if err != nil {
		return payroll.CalculationResult{}, err
	}

	slog.Info("Payroll calculated",
		"period_id", saved.ID,
		"employees", totals.EmployeeCount,
		"total_net", totals.TotalNet.String(),
		"warnings", warningCount,
	)
	return payroll.CalculationResult{Period: saved, LineItems: items}, nil
}

// computeLineItem runs contributions first, since the employee's pension-type
// share reduces taxable income, then tax.
func (s *PayrollServiceImpl) computeLineItem(periodID string, emp employee.Employee, components []salary.Component, input payroll.VariableInput) (payroll.LineItem, error) {
	base := decimal.Zero
	allowances := decimal.Zero
	for _, c := range components {
		switch c.Kind {
		case salary.ComponentKindBasicSalary:
			base = base.Add(c.Amount)
		case salary.ComponentKindFixedAllowance:
			allowances = allowances.Add(c.Amount)
		}
	}

	gross := base.Add(allowances).Add(input.Bonus).Add(input.Overtime).Add(input.OtherAllowance)

	contributions, err := s.contributions.Calculate(bpjs.Input{
		Gross:              gross,
		HealthEnrolled:     emp.HealthInsuranceEnrolled,
		EmploymentEnrolled: emp.EmploymentInsuranceEnrolled,
	})
	if err != nil {
		return payroll.LineItem{}, err
	}

	tax, err := s.tax.Calculate(pph21.Input{
		GrossMonthly:           gross,
		TaxStatus:              emp.TaxStatus,
		DeductibleContribution: contributions.TaxDeductible(),
	})
	if err != nil {
		return payroll.LineItem{}, err
	}

	employeeShare := contributions.EmployeeTotal()
	net := gross.Sub(tax.TaxMonthly).Sub(employeeShare).Sub(input.OtherDeduction)

	item := payroll.LineItem{
		ID:                   payroll.LineItemID(periodID, emp.ID),
		PeriodID:             periodID,
		EmployeeID:           emp.ID,
		EmployeeCode:         emp.EmployeeCode,
		EmployeeName:         emp.FullName,
		TaxStatus:            emp.TaxStatus,
		BaseSalary:           base,
		FixedAllowances:      allowances,
		Bonus:                input.Bonus,
		Overtime:             input.Overtime,
		OtherAllowance:       input.OtherAllowance,
		OtherDeduction:       input.OtherDeduction,
		GrossPay:             gross,
		Contributions:        contributions,
		EmployeeContribution: employeeShare,
		EmployerContribution: contributions.EmployerTotal(),
		OccupationalCost:     tax.OccupationalCost,
		TaxableIncomeAnnual:  tax.TaxableAnnual,
		TaxAnnual:            tax.TaxAnnual,
		TaxWithheld:          tax.TaxMonthly,
		NetPay:               net,
	}
	if !net.IsPositive() {
		item.Warnings = append(item.Warnings, payroll.WarningNonPositiveNet)
	}
	return item, nil
}

// mergeVariableInputs overlays the caller's inputs on the stored ones; the
// caller wins per employee. Every employee gets an entry, zero when absent.
func mergeVariableInputs(periodID string, employees []employee.Employee, stored []payroll.VariableInput, overlay []payroll.VariableInputRequest) (map[string]payroll.VariableInput, error) {
	merged := make(map[string]payroll.VariableInput, len(employees))
	for _, e := range employees {
		merged[e.ID] = payroll.VariableInput{
			PeriodID:       periodID,
			EmployeeID:     e.ID,
			Bonus:          decimal.Zero,
			Overtime:       decimal.Zero,
			OtherAllowance: decimal.Zero,
			OtherDeduction: decimal.Zero,
		}
	}

	// Stored inputs of employees who have since left are ignored.
	for _, in := range stored {
		if _, ok := merged[in.EmployeeID]; ok {
			merged[in.EmployeeID] = in
		}
	}

	for _, req := range overlay {
		if _, ok := merged[req.EmployeeID]; !ok {
			return nil, fmt.Errorf("%w: %s", payroll.ErrUnknownEmployee, req.EmployeeID)
		}
		merged[req.EmployeeID] = req.ToEntity(periodID)
	}
	return merged, nil
}

// ========== FINALIZATION ==========

func (s *PayrollServiceImpl) Finalize(ctx context.Context, req payroll.FinalizeRequest) (payroll.Period, error) {
	if err := req.Validate(); err != nil {
		return payroll.Period{}, err
	}

	release, err := s.acquire(ctx, req.PeriodID)
	if err != nil {
		return payroll.Period{}, err
	}
	defer release()

	period, err := s.periodRepo.GetByID(ctx, req.PeriodID)
	if err != nil {
		return payroll.Period{}, err
	}
	if period.Status != payroll.PeriodStatusCalculated {
		return payroll.Period{}, fmt.Errorf("%w: cannot finalize a %s period", payroll.ErrInvalidStateTransition, period.Status)
	}
	if period.WarningCount > 0 && !req.AcknowledgeWarnings {
		return payroll.Period{}, fmt.Errorf("%w: %d line items have a non-positive net pay", payroll.ErrComplianceViolation, period.WarningCount)
	}

	finalized, err := s.periodRepo.MarkFinalized(ctx, period.ID, req.Actor, s.now())
	if err != nil {
		return payroll.Period{}, err
	}

	event := events.NewEvent(events.TypePayrollPeriodFinalized, events.AggregatePayrollPeriod, finalized.ID, payroll.NewPeriodResponse(finalized))
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish period finalization", "period_id", finalized.ID, "error", err)
	}

	slog.Info("Payroll period finalized", "period_id", finalized.ID, "finalized_by", req.Actor)
	return finalized, nil
}

// acquire takes the period lock without waiting.
func (s *PayrollServiceImpl) acquire(ctx context.Context, periodID string) (func(), error) {
	release, err := s.locker.TryLock(ctx, lock.PeriodKey(periodID))
	if errors.Is(err, lock.ErrLocked) {
		return nil, payroll.ErrConcurrencyConflict
	}
	if err != nil {
		return nil, apperror.Dependency(err, "acquire period lock")
	}
	return release, nil
}

// callWithTimeout bounds one collaborator call. A deadline surfaces as a
// retryable SERVICE_UNAVAILABLE error.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, operation string, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, apperror.Dependency(err, operation)
	}
	return out, nil
}
