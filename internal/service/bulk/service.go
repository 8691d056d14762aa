package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/bulk"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/master/department"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/events"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/lock"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	MaxWorkers   int
	RoundingUnit decimal.Decimal
}

type BulkServiceImpl struct {
	tx             database.TxManager
	operationRepo  bulk.OperationRepository
	employeeRepo   employee.EmployeeRepository
	departmentRepo department.DepartmentRepository
	componentRepo  salary.ComponentRepository
	ledger         salary.LedgerService
	locker         lock.Locker
	publisher      events.Publisher
	opts           Options
	now            func() time.Time

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewBulkService(
	tx database.TxManager,
	operationRepo bulk.OperationRepository,
	employeeRepo employee.EmployeeRepository,
	departmentRepo department.DepartmentRepository,
	componentRepo salary.ComponentRepository,
	ledger salary.LedgerService,
	locker lock.Locker,
	publisher events.Publisher,
	opts Options,
) bulk.BulkService {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	return &BulkServiceImpl{
		tx:             tx,
		operationRepo:  operationRepo,
		employeeRepo:   employeeRepo,
		departmentRepo: departmentRepo,
		componentRepo:  componentRepo,
		ledger:         ledger,
		locker:         locker,
		publisher:      publisher,
		opts:           opts,
		now:            func() time.Time { return time.Now().UTC() },
		running:        make(map[string]context.CancelFunc),
	}
}

// ========== PREVIEW ==========

func (s *BulkServiceImpl) Preview(ctx context.Context, req bulk.PreviewRequest) (bulk.OperationDetail, error) {
	if err := req.Validate(); err != nil {
		return bulk.OperationDetail{}, err
	}

	cohort, err := s.resolveCohort(ctx, req.Cohort)
	if err != nil {
		return bulk.OperationDetail{}, err
	}
	if len(cohort) == 0 {
		return bulk.OperationDetail{}, bulk.ErrEmptyCohort
	}

	components, err := s.activeComponents(ctx, cohort)
	if err != nil {
		return bulk.OperationDetail{}, err
	}
	cohort = filterBySalary(cohort, components, req.Cohort.Filter)
	if len(cohort) == 0 {
		return bulk.OperationDetail{}, bulk.ErrEmptyCohort
	}

	operation := bulk.Operation{
		ID:            uuid.New().String(),
		Cohort:        req.Cohort,
		Rule:          req.Rule,
		Status:        bulk.OperationStatusPreviewed,
		TotalItems:    len(cohort),
		Reason:        req.Reason,
		EffectiveDate: req.EffectiveDateValue(),
		CreatedBy:     req.Actor,
	}

	p := s.planner(req.Rule)
	items := make([]bulk.Item, 0, len(cohort))
	for _, emp := range cohort {
		item := bulk.Item{
			ID:           uuid.New().String(),
			OperationID:  operation.ID,
			EmployeeID:   emp.ID,
			EmployeeName: emp.FullName,
			Status:       bulk.ItemStatusPending,
		}
		// A planning error is shown in the preview; the item fails on execution
		// unless the live data changes in between.
		changes, err := p.plan(emp.ID, components[emp.ID])
		if err != nil {
			msg := err.Error()
			item.Error = &msg
		}
		item.Changes = changes
		items = append(items, item)
	}

	if err := s.operationRepo.Create(ctx, operation, items); err != nil {
		return bulk.OperationDetail{}, fmt.Errorf("failed to store bulk operation: %w", err)
	}

	slog.Info("Bulk operation previewed", "operation_id", operation.ID, "items", len(items), "rule", req.Rule.Type)
	return s.Get(ctx, operation.ID)
}

func (s *BulkServiceImpl) resolveCohort(ctx context.Context, selector bulk.CohortSelector) ([]employee.Employee, error) {
	if selector.Type == bulk.CohortTypeExplicit {
		found, err := s.employeeRepo.ListByIDs(ctx, selector.EmployeeIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load employees: %w", err)
		}
		active := make(map[string]bool, len(found))
		for _, e := range found {
			active[e.ID] = e.IsActive()
		}
		for _, id := range selector.EmployeeIDs {
			if !active[id] {
				return nil, fmt.Errorf("%w: %s", bulk.ErrUnknownEmployee, id)
			}
		}
		return found, nil
	}

	employees, err := s.employeeRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load employees: %w", err)
	}

	filter := selector.Filter
	var departments map[string]bool
	if filter.DepartmentID != nil {
		all, err := s.departmentRepo.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load departments: %w", err)
		}
		tree, err := department.NewTree(all)
		if err != nil {
			return nil, err
		}
		ids, err := tree.Subtree(*filter.DepartmentID)
		if err != nil {
			return nil, err
		}
		departments = make(map[string]bool, len(ids))
		for _, id := range ids {
			departments[id] = true
		}
	}

	matched := make([]employee.Employee, 0, len(employees))
	for _, e := range employees {
		if departments != nil && (e.DepartmentID == nil || !departments[*e.DepartmentID]) {
			continue
		}
		if filter.PositionID != nil && (e.PositionID == nil || *e.PositionID != *filter.PositionID) {
			continue
		}
		matched = append(matched, e)
	}
	return matched, nil
}

// filterBySalary applies the basic salary range of a filter cohort.
// Employees without an active basic salary never match a range.
func filterBySalary(cohort []employee.Employee, components map[string][]salary.Component, filter *bulk.CohortFilter) []employee.Employee {
	if filter == nil || (filter.MinBasicSalary == nil && filter.MaxBasicSalary == nil) {
		return cohort
	}

	matched := make([]employee.Employee, 0, len(cohort))
	for _, e := range cohort {
		basic, err := basicSalary(components[e.ID])
		if err != nil {
			continue
		}
		if filter.MinBasicSalary != nil && basic.Amount.LessThan(*filter.MinBasicSalary) {
			continue
		}
		if filter.MaxBasicSalary != nil && basic.Amount.GreaterThan(*filter.MaxBasicSalary) {
			continue
		}
		matched = append(matched, e)
	}
	return matched
}

func (s *BulkServiceImpl) activeComponents(ctx context.Context, employees []employee.Employee) (map[string][]salary.Component, error) {
	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
	}
	list, err := s.componentRepo.ListActiveByEmployeeIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load salary components: %w", err)
	}
	byEmployee := make(map[string][]salary.Component, len(employees))
	for _, c := range list {
		byEmployee[c.EmployeeID] = append(byEmployee[c.EmployeeID], c)
	}
	return byEmployee, nil
}

func (s *BulkServiceImpl) planner(rule bulk.AdjustmentRule) planner {
	return planner{rule: rule, roundingUnit: s.opts.RoundingUnit}
}

// ========== EXECUTION ==========

func (s *BulkServiceImpl) Execute(ctx context.Context, req bulk.ExecuteRequest, onProgress func(bulk.Progress)) (bulk.Result, error) {
	if err := req.Validate(); err != nil {
		return bulk.Result{}, err
	}

	release, err := s.locker.TryLock(ctx, lock.BulkOperationKey(req.OperationID))
	if errors.Is(err, lock.ErrLocked) {
		return bulk.Result{}, bulk.ErrConcurrencyConflict
	}
	if err != nil {
		return bulk.Result{}, apperror.Dependency(err, "acquire bulk operation lock")
	}
	defer release()

	operation, err := s.operationRepo.GetByID(ctx, req.OperationID)
	if err != nil {
		return bulk.Result{}, err
	}
	if operation.Status != bulk.OperationStatusPreviewed {
		return bulk.Result{}, fmt.Errorf("%w: operation is %s", bulk.ErrInvalidStateTransition, operation.Status)
	}
	items, err := s.operationRepo.ListItems(ctx, operation.ID)
	if err != nil {
		return bulk.Result{}, err
	}

	operation, err = s.operationRepo.Start(ctx, operation.ID, req.Actor, s.now())
	if err != nil {
		return bulk.Result{}, err
	}
	slog.Info("Bulk operation started", "operation_id", operation.ID, "items", len(items), "executed_by", req.Actor)

	// Only Cancel stops the run, not the caller's ctx going away. runCtx is
	// checked between items; an item already started runs to commit or
	// rollback on workCtx.
	workCtx := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithCancel(workCtx)
	s.register(operation.ID, cancel)
	defer s.unregister(operation.ID)

	p := s.planner(operation.Rule)
	var (
		mu        sync.Mutex
		applied   int
		failed    int
		processed int
	)

	var g errgroup.Group
	g.SetLimit(s.opts.MaxWorkers)
	for i := range items {
		if s.stopRequested(runCtx, operation.ID) {
			break
		}
		g.Go(func() error {
			if runCtx.Err() != nil {
				return nil
			}
			items[i] = s.applyItem(workCtx, operation, req.Actor, p, items[i])

			mu.Lock()
			defer mu.Unlock()
			processed++
			if items[i].Status == bulk.ItemStatusApplied {
				applied++
			} else {
				failed++
			}
			if onProgress != nil {
				onProgress(bulk.Progress{
					OperationID: operation.ID,
					EmployeeID:  items[i].EmployeeID,
					ItemStatus:  items[i].Status,
					Processed:   processed,
					Total:       len(items),
					Applied:     applied,
					Failed:      failed,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	pending := len(items) - applied - failed
	status := bulk.TerminalStatus(applied, failed, pending > 0)

	var errMsg *string
	if failed > 0 {
		msg := fmt.Sprintf("%d of %d items failed", failed, len(items))
		errMsg = &msg
	}

	operation, err = s.operationRepo.Finish(workCtx, operation.ID, status, applied, failed, errMsg, s.now())
	if err != nil {
		return bulk.Result{}, fmt.Errorf("failed to finish bulk operation: %w", err)
	}

	result := bulk.Result{
		Operation: operation,
		Total:     len(items),
		Applied:   applied,
		Failed:    failed,
		Pending:   pending,
		Items:     items,
	}

	event := events.NewEvent(events.TypeBulkOperationCompleted, events.AggregateBulkOperation, operation.ID, bulk.NewResultResponse(result))
	if err := s.publisher.Publish(workCtx, event); err != nil {
		slog.Warn("Failed to publish bulk operation result", "operation_id", operation.ID, "error", err)
	}

	slog.Info("Bulk operation finished",
		"operation_id", operation.ID,
		"status", operation.Status,
		"applied", applied,
		"failed", failed,
		"pending", pending,
	)
	return result, nil
}

// applyItem re-plans against the live components and writes every change with
// its ledger record in one transaction. Failures are recorded on the item.
func (s *BulkServiceImpl) applyItem(ctx context.Context, operation bulk.Operation, actor string, p planner, item bulk.Item) bulk.Item {
	var records []salary.ChangeRecord
	appliedAt := s.now()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		records = records[:0]
		components, err := s.componentRepo.ListByEmployee(ctx, item.EmployeeID, true)
		if err != nil {
			return fmt.Errorf("failed to load salary components: %w", err)
		}
		byID := make(map[string]salary.Component, len(components))
		for _, c := range components {
			byID[c.ID] = c
		}

		changes, err := p.plan(item.EmployeeID, components)
		if err != nil {
			return err
		}

		for _, change := range changes {
			if change.After.Equal(change.Before) {
				continue
			}
			current := byID[change.ComponentID]
			next := current
			next.Amount = change.After
			if _, err := s.componentRepo.Update(ctx, next); err != nil {
				return err
			}

			record, err := s.ledger.Append(ctx, s.bulkRecord(operation, actor, current, change.After))
			if err != nil {
				return err
			}
			records = append(records, record)
		}

		item.Changes = changes
		item.Status = bulk.ItemStatusApplied
		item.Error = nil
		item.AppliedAt = &appliedAt
		return s.operationRepo.UpdateItem(ctx, item)
	})
	if err != nil {
		msg := err.Error()
		item.Status = bulk.ItemStatusFailed
		item.Error = &msg
		item.AppliedAt = nil
		if uerr := s.operationRepo.UpdateItem(ctx, item); uerr != nil {
			slog.Warn("Failed to record bulk item failure", "operation_id", operation.ID, "item_id", item.ID, "error", uerr)
		}
		return item
	}

	s.ledger.Announce(ctx, records...)
	return item
}

func (s *BulkServiceImpl) bulkRecord(operation bulk.Operation, actor string, current salary.Component, after decimal.Decimal) salary.ChangeRecord {
	componentID := current.ID
	operationID := operation.ID
	reason := operation.Reason
	previousAmount := current.Amount
	previousActive := current.IsActive
	return salary.ChangeRecord{
		ID:             uuid.New().String(),
		ComponentID:    &componentID,
		EmployeeID:     current.EmployeeID,
		ComponentKind:  current.Kind,
		ComponentName:  current.Name,
		Action:         salary.ChangeActionUpdate,
		PreviousAmount: &previousAmount,
		NewAmount:      after,
		PreviousActive: &previousActive,
		NewActive:      current.IsActive,
		ApprovalStatus: salary.ApprovalStatusAutoApproved,
		Source:         salary.ChangeSourceBulkOperation,
		SourceRefID:    &operationID,
		Actor:          actor,
		Reason:         &reason,
		EffectiveDate:  operation.EffectiveDate,
	}
}

// stopRequested reports an in-process cancel or one flagged by another instance.
func (s *BulkServiceImpl) stopRequested(ctx context.Context, operationID string) bool {
	if ctx.Err() != nil {
		return true
	}
	op, err := s.operationRepo.GetByID(ctx, operationID)
	if err != nil {
		slog.Warn("Failed to check bulk operation cancellation", "operation_id", operationID, "error", err)
		return false
	}
	return op.CancelRequested
}

func (s *BulkServiceImpl) register(operationID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[operationID] = cancel
}

func (s *BulkServiceImpl) unregister(operationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[operationID]; ok {
		cancel()
		delete(s.running, operationID)
	}
}

// ========== RECOVERY ==========

func (s *BulkServiceImpl) RecoverInterrupted(ctx context.Context, staleAfter time.Duration) ([]bulk.Operation, error) {
	stale, err := s.operationRepo.ListRunning(ctx, s.now().Add(-staleAfter))
	if err != nil {
		return nil, err
	}

	recovered := []bulk.Operation{}
	for _, operation := range stale {
		if s.isRunningHere(operation.ID) {
			continue
		}
		op, ok, err := s.recoverOne(ctx, operation.ID)
		if err != nil {
			return recovered, err
		}
		if ok {
			recovered = append(recovered, op)
		}
	}
	return recovered, nil
}

// recoverOne finishes one stale operation. A held lock means a live executor
// elsewhere owns it, so it is left alone.
func (s *BulkServiceImpl) recoverOne(ctx context.Context, operationID string) (bulk.Operation, bool, error) {
	release, err := s.locker.TryLock(ctx, lock.BulkOperationKey(operationID))
	if errors.Is(err, lock.ErrLocked) {
		return bulk.Operation{}, false, nil
	}
	if err != nil {
		return bulk.Operation{}, false, apperror.Dependency(err, "acquire bulk operation lock")
	}
	defer release()

	items, err := s.operationRepo.ListItems(ctx, operationID)
	if err != nil {
		return bulk.Operation{}, false, err
	}
	var applied, failed, pending int
	for _, item := range items {
		switch item.Status {
		case bulk.ItemStatusApplied:
			applied++
		case bulk.ItemStatusFailed:
			failed++
		default:
			pending++
		}
	}

	current, err := s.operationRepo.GetByID(ctx, operationID)
	if err != nil {
		return bulk.Operation{}, false, err
	}
	status := bulk.TerminalStatus(applied, failed+pending, current.CancelRequested && pending > 0)
	msg := fmt.Sprintf("execution interrupted: %d items not processed", pending)

	operation, err := s.operationRepo.Finish(ctx, operationID, status, applied, failed, &msg, s.now())
	if errors.Is(err, bulk.ErrInvalidStateTransition) {
		// finished by its executor between listing and locking
		return bulk.Operation{}, false, nil
	}
	if err != nil {
		return bulk.Operation{}, false, fmt.Errorf("failed to finish interrupted bulk operation: %w", err)
	}

	result := bulk.Result{
		Operation: operation,
		Total:     len(items),
		Applied:   applied,
		Failed:    failed,
		Pending:   pending,
		Items:     items,
	}
	event := events.NewEvent(events.TypeBulkOperationCompleted, events.AggregateBulkOperation, operation.ID, bulk.NewResultResponse(result))
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Warn("Failed to publish bulk operation result", "operation_id", operation.ID, "error", err)
	}

	slog.Warn("Recovered interrupted bulk operation",
		"operation_id", operation.ID,
		"status", operation.Status,
		"applied", applied,
		"failed", failed,
		"pending", pending,
	)
	return operation, true, nil
}

func (s *BulkServiceImpl) isRunningHere(operationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[operationID]
	return ok
}

// ========== CANCEL / READ ==========

func (s *BulkServiceImpl) Cancel(ctx context.Context, req bulk.ExecuteRequest) (bulk.Operation, error) {
	if err := req.Validate(); err != nil {
		return bulk.Operation{}, err
	}

	operation, err := s.operationRepo.GetByID(ctx, req.OperationID)
	if err != nil {
		return bulk.Operation{}, err
	}

	switch operation.Status {
	case bulk.OperationStatusPreviewed:
		operation, err = s.operationRepo.CancelPreviewed(ctx, operation.ID, s.now())
	case bulk.OperationStatusRunning:
		operation, err = s.operationRepo.RequestCancel(ctx, operation.ID)
		if err == nil {
			s.mu.Lock()
			if cancel, ok := s.running[operation.ID]; ok {
				cancel()
			}
			s.mu.Unlock()
		}
	default:
		return bulk.Operation{}, fmt.Errorf("%w: operation is %s", bulk.ErrInvalidStateTransition, operation.Status)
	}
	if err != nil {
		return bulk.Operation{}, err
	}

	slog.Info("Bulk operation cancel requested", "operation_id", operation.ID, "status", operation.Status, "actor", req.Actor)
	return operation, nil
}

func (s *BulkServiceImpl) Get(ctx context.Context, id string) (bulk.OperationDetail, error) {
	if !validator.IsValidUUID(id) {
		return bulk.OperationDetail{}, bulk.ErrOperationNotFound
	}
	operation, err := s.operationRepo.GetByID(ctx, id)
	if err != nil {
		return bulk.OperationDetail{}, err
	}
	items, err := s.operationRepo.ListItems(ctx, id)
	if err != nil {
		return bulk.OperationDetail{}, err
	}
	return bulk.OperationDetail{Operation: operation, Items: items}, nil
}
