package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/lock"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
)

type VariableInputServiceImpl struct {
	periodRepo   payroll.PeriodRepository
	variableRepo payroll.VariableInputRepository
	employeeRepo employee.EmployeeRepository
	locker       lock.Locker
}

func NewVariableInputService(
	periodRepo payroll.PeriodRepository,
	variableRepo payroll.VariableInputRepository,
	employeeRepo employee.EmployeeRepository,
	locker lock.Locker,
) payroll.VariableInputService {
	return &VariableInputServiceImpl{
		periodRepo:   periodRepo,
		variableRepo: variableRepo,
		employeeRepo: employeeRepo,
		locker:       locker,
	}
}

func (s *VariableInputServiceImpl) SetVariableInputs(ctx context.Context, req payroll.SetVariableInputsRequest) ([]payroll.VariableInput, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Holding the period lock keeps a concurrent finalize from slipping in
	// between the status check and the write.
	release, err := s.mutable(ctx, req.PeriodID)
	if err != nil {
		return nil, err
	}
	defer release()

	ids := make([]string, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		ids = append(ids, in.EmployeeID)
	}
	found, err := s.employeeRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load employees: %w", err)
	}
	active := make(map[string]bool, len(found))
	for _, e := range found {
		active[e.ID] = e.IsActive()
	}

	inputs := make([]payroll.VariableInput, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		if !active[in.EmployeeID] {
			return nil, fmt.Errorf("%w: %s", payroll.ErrUnknownEmployee, in.EmployeeID)
		}
		inputs = append(inputs, in.ToEntity(req.PeriodID))
	}

	if err := s.variableRepo.Upsert(ctx, inputs); err != nil {
		return nil, fmt.Errorf("failed to store variable inputs: %w", err)
	}
	return s.variableRepo.ListByPeriod(ctx, req.PeriodID)
}

func (s *VariableInputServiceImpl) GetVariableInputs(ctx context.Context, periodID string) ([]payroll.VariableInput, error) {
	if !validator.IsValidUUID(periodID) {
		return nil, payroll.ErrPeriodNotFound
	}
	if _, err := s.periodRepo.GetByID(ctx, periodID); err != nil {
		return nil, err
	}
	return s.variableRepo.ListByPeriod(ctx, periodID)
}

func (s *VariableInputServiceImpl) ClearVariableInput(ctx context.Context, periodID, employeeID string) error {
	if !validator.IsValidUUID(periodID) {
		return payroll.ErrPeriodNotFound
	}
	if !validator.IsValidUUID(employeeID) {
		return payroll.ErrVariableInputNotFound
	}

	release, err := s.mutable(ctx, periodID)
	if err != nil {
		return err
	}
	defer release()

	return s.variableRepo.Delete(ctx, periodID, employeeID)
}

// mutable locks the period and checks that it still accepts input changes.
func (s *VariableInputServiceImpl) mutable(ctx context.Context, periodID string) (func(), error) {
	release, err := s.locker.TryLock(ctx, lock.PeriodKey(periodID))
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, payroll.ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("failed to acquire period lock: %w", err)
	}

	period, err := s.periodRepo.GetByID(ctx, periodID)
	if err != nil {
		release()
		return nil, err
	}
	if period.IsFinalized() {
		release()
		return nil, fmt.Errorf("%w: variable inputs of a finalized period are read-only", payroll.ErrInvalidStateTransition)
	}
	return release, nil
}
