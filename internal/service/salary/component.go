package salary

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ComponentServiceImpl struct {
	tx            database.TxManager
	componentRepo salary.ComponentRepository
	employeeRepo  employee.EmployeeRepository
	ledger        salary.LedgerService
	now           func() time.Time
}

func NewComponentService(
	tx database.TxManager,
	componentRepo salary.ComponentRepository,
	employeeRepo employee.EmployeeRepository,
	ledger salary.LedgerService,
) salary.ComponentService {
	return &ComponentServiceImpl{
		tx:            tx,
		componentRepo: componentRepo,
		employeeRepo:  employeeRepo,
		ledger:        ledger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *ComponentServiceImpl) CreateComponent(ctx context.Context, req salary.CreateComponentRequest) (salary.Component, error) {
	if err := req.Validate(); err != nil {
		return salary.Component{}, err
	}
	if _, err := s.employeeRepo.GetByID(ctx, req.EmployeeID); err != nil {
		return salary.Component{}, err
	}

	var created salary.Component
	var record salary.ChangeRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.componentRepo.Create(ctx, salary.Component{
			ID:         uuid.New().String(),
			EmployeeID: req.EmployeeID,
			Kind:       salary.ComponentKind(req.Kind),
			Name:       req.Name,
			Amount:     req.Amount,
			IsActive:   true,
		})
		if err != nil {
			return err
		}

		record, err = s.ledger.Append(ctx, directEditRecord(created, salary.ChangeActionCreate, nil, nil, req.Actor, req.Reason, s.now()))
		return err
	})
	if err != nil {
		return salary.Component{}, err
	}

	s.ledger.Announce(ctx, record)
	return created, nil
}

func (s *ComponentServiceImpl) UpdateComponent(ctx context.Context, req salary.UpdateComponentRequest) (salary.Component, error) {
	if err := req.Validate(); err != nil {
		return salary.Component{}, err
	}

	var updated salary.Component
	var record salary.ChangeRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.componentRepo.GetByID(ctx, req.ID)
		if err != nil {
			return err
		}

		next := current
		if req.Amount != nil {
			next.Amount = *req.Amount
		}
		if req.IsActive != nil {
			next.IsActive = *req.IsActive
		}

		action := salary.ChangeActionUpdate
		if current.IsActive && !next.IsActive {
			action = salary.ChangeActionDelete
		}

		updated, err = s.componentRepo.Update(ctx, next)
		if err != nil {
			return err
		}

		record, err = s.ledger.Append(ctx, directEditRecord(updated, action, &current.Amount, &current.IsActive, req.Actor, req.Reason, s.now()))
		return err
	})
	if err != nil {
		return salary.Component{}, err
	}

	s.ledger.Announce(ctx, record)
	return updated, nil
}

func (s *ComponentServiceImpl) DeactivateComponent(ctx context.Context, req salary.DeactivateComponentRequest) (salary.Component, error) {
	if err := req.Validate(); err != nil {
		return salary.Component{}, err
	}

	var updated salary.Component
	var record salary.ChangeRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.componentRepo.GetByID(ctx, req.ID)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return salary.ErrComponentInactive
		}

		next := current
		next.IsActive = false
		updated, err = s.componentRepo.Update(ctx, next)
		if err != nil {
			return err
		}

		record, err = s.ledger.Append(ctx, directEditRecord(updated, salary.ChangeActionDelete, &current.Amount, &current.IsActive, req.Actor, req.Reason, s.now()))
		return err
	})
	if err != nil {
		return salary.Component{}, err
	}

	s.ledger.Announce(ctx, record)
	return updated, nil
}

func (s *ComponentServiceImpl) ListComponents(ctx context.Context, employeeID string, activeOnly bool) ([]salary.Component, error) {
	if !validator.IsValidUUID(employeeID) {
		return nil, employee.ErrEmployeeNotFound
	}
	if _, err := s.employeeRepo.GetByID(ctx, employeeID); err != nil {
		return nil, err
	}

	components, err := s.componentRepo.ListByEmployee(ctx, employeeID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list salary components: %w", err)
	}
	return components, nil
}

func directEditRecord(c salary.Component, action salary.ChangeAction, prevAmount *decimal.Decimal, prevActive *bool, actor string, reason *string, now time.Time) salary.ChangeRecord {
	componentID := c.ID
	return salary.ChangeRecord{
		ID:             uuid.New().String(),
		ComponentID:    &componentID,
		EmployeeID:     c.EmployeeID,
		ComponentKind:  c.Kind,
		ComponentName:  c.Name,
		Action:         action,
		PreviousAmount: prevAmount,
		NewAmount:      c.Amount,
		PreviousActive: prevActive,
		NewActive:      c.IsActive,
		ApprovalStatus: salary.ApprovalStatusAutoApproved,
		Source:         salary.ChangeSourceDirectEdit,
		Actor:          actor,
		Reason:         reason,
		EffectiveDate:  truncateToDate(now),
	}
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
