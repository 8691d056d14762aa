package salary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/events"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
)

type LedgerServiceImpl struct {
	changeRepo salary.ChangeRecordRepository
	publisher  events.Publisher
	now        func() time.Time
}

func NewLedgerService(changeRepo salary.ChangeRecordRepository, publisher events.Publisher) salary.LedgerService {
	return &LedgerServiceImpl{
		changeRepo: changeRepo,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Append validates and stores a record. It takes part in the caller's
// transaction when ctx carries one.
func (s *LedgerServiceImpl) Append(ctx context.Context, record salary.ChangeRecord) (salary.ChangeRecord, error) {
	if err := validateRecord(record); err != nil {
		return salary.ChangeRecord{}, err
	}

	if record.ApprovalStatus == salary.ApprovalStatusAutoApproved {
		decidedAt := s.now()
		record.DecidedBy = &record.Actor
		record.DecidedAt = &decidedAt
	}

	appended, err := s.changeRepo.Append(ctx, record)
	if err != nil {
		return salary.ChangeRecord{}, fmt.Errorf("append salary change record: %w", err)
	}
	return appended, nil
}

func (s *LedgerServiceImpl) Resolve(ctx context.Context, id string, resolution salary.Resolution) (salary.ChangeRecord, error) {
	if resolution.Status != salary.ApprovalStatusApproved && resolution.Status != salary.ApprovalStatusRejected {
		return salary.ChangeRecord{}, fmt.Errorf("%w: resolution must approve or reject", salary.ErrInvalidChangeRecord)
	}
	if validator.IsEmpty(resolution.DecidedBy) {
		return salary.ChangeRecord{}, fmt.Errorf("%w: decided_by is required", salary.ErrInvalidChangeRecord)
	}
	if resolution.DecidedAt.IsZero() {
		resolution.DecidedAt = s.now()
	}

	return s.changeRepo.Resolve(ctx, id, resolution)
}

func (s *LedgerServiceImpl) Announce(ctx context.Context, records ...salary.ChangeRecord) {
	for _, record := range records {
		aggregateID := record.ID
		if record.ComponentID != nil {
			aggregateID = *record.ComponentID
		}
		event := events.NewEvent(events.TypeSalaryChangeRecorded, events.AggregateSalaryComponent, aggregateID, salary.NewChangeRecordResponse(record))
		if err := s.publisher.Publish(ctx, event); err != nil {
			slog.Warn("Failed to publish salary change", "record_id", record.ID, "error", err)
		}
	}
}

func (s *LedgerServiceImpl) Get(ctx context.Context, id string) (salary.ChangeRecord, error) {
	if !validator.IsValidUUID(id) {
		return salary.ChangeRecord{}, salary.ErrChangeRecordNotFound
	}
	return s.changeRepo.GetByID(ctx, id)
}

func (s *LedgerServiceImpl) List(ctx context.Context, req salary.ListChangeRecordsRequest) (salary.ListChangeRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return salary.ListChangeRecordResponse{}, err
	}

	filter := req.ToFilter()
	records, total, err := s.changeRepo.List(ctx, filter)
	if err != nil {
		return salary.ListChangeRecordResponse{}, fmt.Errorf("list salary change records: %w", err)
	}

	return salary.ListChangeRecordResponse{
		Data:       salary.NewChangeRecordResponses(records),
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *LedgerServiceImpl) Export(ctx context.Context, req salary.ListChangeRecordsRequest) ([]salary.ChangeRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	filter := req.ToFilter()
	filter.Page, filter.Limit = 0, 0

	records, _, err := s.changeRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("export salary change records: %w", err)
	}
	return records, nil
}

func validateRecord(r salary.ChangeRecord) error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs.Add("id", "is required")
	}
	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "is required")
	}
	if validator.IsEmpty(r.Actor) {
		errs.Add("actor", "is required")
	}
	if !r.Action.IsValid() {
		errs.Add("action", "is not a known change action")
	}
	if !r.ComponentKind.IsValid() {
		errs.Add("component_kind", "is not a known component kind")
	}
	if !r.Source.IsValid() {
		errs.Add("source", "is not a known change source")
	}
	if r.ApprovalStatus != salary.ApprovalStatusPending && r.ApprovalStatus != salary.ApprovalStatusAutoApproved {
		errs.Add("approval_status", "new records must be pending or auto_approved")
	}
	if r.Action != salary.ChangeActionCreate && r.ComponentID == nil {
		errs.Add("component_id", "is required for update and delete")
	}
	if r.ApprovalStatus == salary.ApprovalStatusAutoApproved && r.ComponentID == nil {
		errs.Add("component_id", "is required for applied changes")
	}
	if r.NewAmount.IsNegative() {
		errs.Add("new_amount", "must be non-negative")
	}
	if r.PreviousAmount != nil && r.PreviousAmount.IsNegative() {
		errs.Add("previous_amount", "must be non-negative")
	}
	if r.EffectiveDate.IsZero() {
		errs.Add("effective_date", "is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", salary.ErrInvalidChangeRecord, errs)
	}
	return nil
}
