package salary

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/google/uuid"
)

type ApprovalServiceImpl struct {
	tx            database.TxManager
	componentRepo salary.ComponentRepository
	changeRepo    salary.ChangeRecordRepository
	employeeRepo  employee.EmployeeRepository
	ledger        salary.LedgerService
	now           func() time.Time
}

func NewApprovalService(
	tx database.TxManager,
	componentRepo salary.ComponentRepository,
	changeRepo salary.ChangeRecordRepository,
	employeeRepo employee.EmployeeRepository,
	ledger salary.LedgerService,
) salary.ApprovalService {
	return &ApprovalServiceImpl{
		tx:            tx,
		componentRepo: componentRepo,
		changeRepo:    changeRepo,
		employeeRepo:  employeeRepo,
		ledger:        ledger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *ApprovalServiceImpl) Propose(ctx context.Context, req salary.ProposeChangeRequest) ([]salary.ChangeRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.employeeRepo.GetByID(ctx, req.EmployeeID); err != nil {
		return nil, err
	}

	// Records of one proposal share a reference so they can be listed together.
	proposalID := uuid.New().String()
	reason := req.Reason
	effectiveDate := req.EffectiveDateValue()

	var appended []salary.ChangeRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, change := range req.Changes {
			record, err := s.pendingRecord(ctx, req.EmployeeID, change)
			if err != nil {
				return err
			}
			record.SourceRefID = &proposalID
			record.Actor = req.Actor
			record.Reason = &reason
			record.EffectiveDate = effectiveDate

			saved, err := s.ledger.Append(ctx, record)
			if err != nil {
				return err
			}
			appended = append(appended, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Announce(ctx, appended...)
	return appended, nil
}

func (s *ApprovalServiceImpl) pendingRecord(ctx context.Context, employeeID string, change salary.ProposedChange) (salary.ChangeRecord, error) {
	record := salary.ChangeRecord{
		ID:             uuid.New().String(),
		EmployeeID:     employeeID,
		Action:         salary.ChangeAction(change.Action),
		ApprovalStatus: salary.ApprovalStatusPending,
		Source:         salary.ChangeSourceApproval,
	}

	if record.Action == salary.ChangeActionCreate {
		record.ComponentKind = salary.ComponentKind(*change.Kind)
		record.ComponentName = *change.Name
		record.NewAmount = *change.Amount
		record.NewActive = true
		return record, nil
	}

	current, err := s.ownedComponent(ctx, employeeID, *change.ComponentID)
	if err != nil {
		return salary.ChangeRecord{}, err
	}

	componentID := current.ID
	previousAmount := current.Amount
	previousActive := current.IsActive
	record.ComponentID = &componentID
	record.ComponentKind = current.Kind
	record.ComponentName = current.Name
	record.PreviousAmount = &previousAmount
	record.PreviousActive = &previousActive
	record.NewAmount = current.Amount
	record.NewActive = current.IsActive

	switch record.Action {
	case salary.ChangeActionUpdate:
		if change.Amount != nil {
			record.NewAmount = *change.Amount
		}
		if change.IsActive != nil {
			record.NewActive = *change.IsActive
		}
	case salary.ChangeActionDelete:
		if !current.IsActive {
			return salary.ChangeRecord{}, fmt.Errorf("component %s: %w", current.ID, salary.ErrComponentInactive)
		}
		record.NewActive = false
	}
	return record, nil
}

func (s *ApprovalServiceImpl) Decide(ctx context.Context, req salary.DecideChangeRequest) ([]salary.ChangeRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	decision := salary.Decision(req.Decision)
	decidedAt := s.now()

	var resolved []salary.ChangeRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, id := range req.RecordIDs {
			record, err := s.changeRepo.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("record %s: %w", id, err)
			}
			if !record.IsPending() {
				return fmt.Errorf("record %s: %w", id, salary.ErrRecordAlreadyDecided)
			}

			resolution := salary.Resolution{
				Status:    salary.ApprovalStatusRejected,
				DecidedBy: req.Actor,
				DecidedAt: decidedAt,
				Notes:     req.Notes,
			}
			if decision == salary.DecisionApprove {
				resolution, err = s.apply(ctx, record)
				if err != nil {
					return fmt.Errorf("record %s: %w", id, err)
				}
				resolution.DecidedBy = req.Actor
				resolution.DecidedAt = decidedAt
				resolution.Notes = req.Notes
			}

			updated, err := s.ledger.Resolve(ctx, id, resolution)
			if err != nil {
				return fmt.Errorf("record %s: %w", id, err)
			}
			resolved = append(resolved, updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Announce(ctx, resolved...)
	return resolved, nil
}

// apply writes an approved record to the live component and captures the
// values it replaced.
func (s *ApprovalServiceImpl) apply(ctx context.Context, record salary.ChangeRecord) (salary.Resolution, error) {
	resolution := salary.Resolution{Status: salary.ApprovalStatusApproved}

	if record.Action == salary.ChangeActionCreate {
		created, err := s.componentRepo.Create(ctx, salary.Component{
			ID:         uuid.New().String(),
			EmployeeID: record.EmployeeID,
			Kind:       record.ComponentKind,
			Name:       record.ComponentName,
			Amount:     record.NewAmount,
			IsActive:   true,
		})
		if err != nil {
			return salary.Resolution{}, err
		}
		resolution.ComponentID = &created.ID
		return resolution, nil
	}

	current, err := s.ownedComponent(ctx, record.EmployeeID, *record.ComponentID)
	if err != nil {
		return salary.Resolution{}, err
	}
	if record.Action == salary.ChangeActionDelete && !current.IsActive {
		return salary.Resolution{}, salary.ErrComponentInactive
	}

	previousAmount := current.Amount
	previousActive := current.IsActive
	resolution.PreviousAmount = &previousAmount
	resolution.PreviousActive = &previousActive

	next := current
	next.Amount = record.NewAmount
	next.IsActive = record.NewActive
	if _, err := s.componentRepo.Update(ctx, next); err != nil {
		return salary.Resolution{}, err
	}
	return resolution, nil
}

func (s *ApprovalServiceImpl) ownedComponent(ctx context.Context, employeeID, componentID string) (salary.Component, error) {
	component, err := s.componentRepo.GetByID(ctx, componentID)
	if err != nil {
		return salary.Component{}, err
	}
	if component.EmployeeID != employeeID {
		return salary.Component{}, salary.ErrComponentOwnership
	}
	return component, nil
}
