package salary

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ========== COMPONENT DTOs ==========

type CreateComponentRequest struct {
	EmployeeID string          `json:"-"`
	Actor      string          `json:"-"`
	Kind       string          `json:"kind"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     *string         `json:"reason,omitempty"`
}

func (r *CreateComponentRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.EmployeeID) {
		errs.Add("employee_id", "must be a valid UUID")
	}
	if validator.IsEmpty(r.Actor) {
		errs.Add("actor", "is required")
	}
	if !ComponentKind(r.Kind).IsValid() {
		errs.Add("kind", "must be 'basic_salary' or 'fixed_allowance'")
	}
	if validator.IsEmpty(r.Name) {
		errs.Add("name", "is required")
	} else if len(r.Name) > 100 {
		errs.Add("name", "must not exceed 100 characters")
	}
	if !validator.IsNonNegative(r.Amount) {
		errs.Add("amount", "must be non-negative")
	}

	return errs.OrNil()
}

type UpdateComponentRequest struct {
	ID       string           `json:"-"`
	Actor    string           `json:"-"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	IsActive *bool            `json:"is_active,omitempty"`
	Reason   *string          `json:"reason,omitempty"`
}

func (r *UpdateComponentRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.ID) {
		errs.Add("id", "must be a valid UUID")
	}
	if validator.IsEmpty(r.Actor) {
		errs.Add("actor", "is required")
	}
	if r.Amount == nil && r.IsActive == nil {
		errs.Add("amount", "amount or is_active is required")
	}
	if r.Amount != nil && !validator.IsNonNegative(*r.Amount) {
		errs.Add("amount", "must be non-negative")
	}

	return errs.OrNil()
}

type DeactivateComponentRequest struct {
	ID     string  `json:"-"`
	Actor  string  `json:"-"`
	Reason *string `json:"reason,omitempty"`
}

func (r *DeactivateComponentRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.ID) {
		errs.Add("id", "must be a valid UUID")
	}
	if validator.IsEmpty(r.Actor) {
		errs.Add("actor", "is required")
	}

	return errs.OrNil()
}

type ComponentResponse struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employee_id"`
	Kind       string          `json:"kind"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	IsActive   bool            `json:"is_active"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func NewComponentResponse(c Component) ComponentResponse {
	return ComponentResponse{
		ID:         c.ID,
		EmployeeID: c.EmployeeID,
		Kind:       string(c.Kind),
		Name:       c.Name,
		Amount:     c.Amount,
		IsActive:   c.IsActive,
		UpdatedAt:  c.UpdatedAt,
	}
}

// ========== APPROVAL DTOs ==========

type ProposedChange struct {
	Action      string           `json:"action"`
	ComponentID *string          `json:"component_id,omitempty"`
	Kind        *string          `json:"kind,omitempty"`
	Name        *string          `json:"name,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

type ProposeChangeRequest struct {
	EmployeeID    string           `json:"employee_id"`
	Actor         string           `json:"-"`
	Changes       []ProposedChange `json:"changes"`
	Reason        string           `json:"reason"`
	EffectiveDate string           `json:"effective_date"`
}

func (r *ProposeChangeRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.EmployeeID) {
		errs.Add("employee_id", "must be a valid UUID")
	}
	if validator.IsEmpty(r.Actor) {
		errs.Add("actor", "is required")
	}
	if validator.IsEmpty(r.Reason) {
		errs.Add("reason", "is required")
	}
	if _, ok := validator.IsValidDate(r.EffectiveDate); !ok {
		errs.Add("effective_date", "must be in YYYY-MM-DD format")
	}
	if len(r.Changes) == 0 {
		errs.Add("changes", "at least one change is required")
	}

	var targets []string
	for i, c := range r.Changes {
		field := func(name string) string { return fmt.Sprintf("changes[%d].%s", i, name) }

		switch ChangeAction(c.Action) {
		case ChangeActionCreate:
			if c.ComponentID != nil {
				errs.Add(field("component_id"), "must be empty for create")
			}
			if c.Kind == nil || !ComponentKind(*c.Kind).IsValid() {
				errs.Add(field("kind"), "must be 'basic_salary' or 'fixed_allowance'")
			}
			if c.Name == nil || validator.IsEmpty(*c.Name) {
				errs.Add(field("name"), "is required")
			}
			if c.Amount == nil {
				errs.Add(field("amount"), "is required")
			}
		case ChangeActionUpdate:
			if c.Amount == nil && c.IsActive == nil {
				errs.Add(field("amount"), "amount or is_active is required")
			}
		case ChangeActionDelete:
		default:
			errs.Add(field("action"), "must be 'create', 'update' or 'delete'")
			continue
		}

		if ChangeAction(c.Action) != ChangeActionCreate {
			if c.ComponentID == nil || !validator.IsValidUUID(*c.ComponentID) {
				errs.Add(field("component_id"), "must be a valid UUID")
			} else {
				targets = append(targets, *c.ComponentID)
			}
		}
		if c.Amount != nil && !validator.IsNonNegative(*c.Amount) {
			errs.Add(field("amount"), "must be non-negative")
		}
	}
	if validator.HasDuplicates(targets) {
		errs.Add("changes", "a component may appear only once per proposal")
	}

	return errs.OrNil()
}

// EffectiveDateValue returns the parsed effective date. Call after Validate.
func (r *ProposeChangeRequest) EffectiveDateValue() time.Time {
	date, _ := time.Parse(dateLayout, r.EffectiveDate)
	return date
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type DecideChangeRequest struct {
	RecordIDs []string `json:"record_ids"`
	Decision  string   `json:"decision"`
	Notes     *string  `json:"notes,omitempty"`
	Actor     string   `json:"-"`
}

func (r *DecideChangeRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.RecordIDs) == 0 {
		errs.Add("record_ids", "at least one record is required")
	}
	for _, id := range r.RecordIDs {
		if !validator.IsValidUUID(id) {
			errs.Add("record_ids", "must contain valid UUIDs")
			break
		}
	}
	if validator.HasDuplicates(r.RecordIDs) {
		errs.Add("record_ids", "must not contain duplicates")
	}
	if Decision(r.Decision) != DecisionApprove && Decision(r.Decision) != DecisionReject {
		errs.Add("decision", "must be 'approve' or 'reject'")
	}
	if validator.IsEmpty(r.Actor) {
		errs.Add("actor", "is required")
	}

	return errs.OrNil()
}

// ========== LEDGER DTOs ==========

type ListChangeRecordsRequest struct {
	EmployeeID  string
	ComponentID string
	Status      string
	Source      string
	SourceRefID string
	From        string
	To          string
	Page        int
	Limit       int
}

func (r *ListChangeRecordsRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.EmployeeID != "" && !validator.IsValidUUID(r.EmployeeID) {
		errs.Add("employee_id", "must be a valid UUID")
	}
	if r.ComponentID != "" && !validator.IsValidUUID(r.ComponentID) {
		errs.Add("component_id", "must be a valid UUID")
	}
	if r.Status != "" && !ApprovalStatus(r.Status).IsValid() {
		errs.Add("status", "is not a known approval status")
	}
	if r.Source != "" && !ChangeSource(r.Source).IsValid() {
		errs.Add("source", "is not a known change source")
	}
	from, fromOK := validator.IsValidDate(r.From)
	if r.From != "" && !fromOK {
		errs.Add("from", "must be in YYYY-MM-DD format")
	}
	to, toOK := validator.IsValidDate(r.To)
	if r.To != "" && !toOK {
		errs.Add("to", "must be in YYYY-MM-DD format")
	}
	if fromOK && toOK && to.Before(from) {
		errs.Add("to", "must not be before from")
	}
	if r.Page < 0 {
		errs.Add("page", "must be non-negative")
	}
	if r.Limit < 0 || r.Limit > 500 {
		errs.Add("limit", "must be between 0 and 500")
	}

	return errs.OrNil()
}

// ToFilter converts the query into a repository filter. Call after Validate.
// To is inclusive: records created on that date are included.
func (r *ListChangeRecordsRequest) ToFilter() ChangeRecordFilter {
	f := ChangeRecordFilter{Page: r.Page, Limit: r.Limit}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = 50
	}
	if r.EmployeeID != "" {
		f.EmployeeID = &r.EmployeeID
	}
	if r.ComponentID != "" {
		f.ComponentID = &r.ComponentID
	}
	if r.Status != "" {
		status := ApprovalStatus(r.Status)
		f.Status = &status
	}
	if r.Source != "" {
		source := ChangeSource(r.Source)
		f.Source = &source
	}
	if r.SourceRefID != "" {
		f.SourceRefID = &r.SourceRefID
	}
	if from, ok := validator.IsValidDate(r.From); ok {
		f.From = &from
	}
	if to, ok := validator.IsValidDate(r.To); ok {
		end := to.AddDate(0, 0, 1)
		f.To = &end
	}
	return f
}

type ChangeRecordResponse struct {
	ID             string           `json:"id"`
	ComponentID    *string          `json:"component_id,omitempty"`
	EmployeeID     string           `json:"employee_id"`
	ComponentKind  string           `json:"component_kind"`
	ComponentName  string           `json:"component_name"`
	Action         string           `json:"action"`
	PreviousAmount *decimal.Decimal `json:"previous_amount,omitempty"`
	NewAmount      decimal.Decimal  `json:"new_amount"`
	PreviousActive *bool            `json:"previous_active,omitempty"`
	NewActive      bool             `json:"new_active"`
	ApprovalStatus string           `json:"approval_status"`
	Source         string           `json:"source"`
	SourceRefID    *string          `json:"source_ref_id,omitempty"`
	Actor          string           `json:"actor"`
	Reason         *string          `json:"reason,omitempty"`
	EffectiveDate  string           `json:"effective_date"`
	DecidedBy      *string          `json:"decided_by,omitempty"`
	DecidedAt      *time.Time       `json:"decided_at,omitempty"`
	DecisionNotes  *string          `json:"decision_notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func NewChangeRecordResponse(r ChangeRecord) ChangeRecordResponse {
	return ChangeRecordResponse{
		ID:             r.ID,
		ComponentID:    r.ComponentID,
		EmployeeID:     r.EmployeeID,
		ComponentKind:  string(r.ComponentKind),
		ComponentName:  r.ComponentName,
		Action:         string(r.Action),
		PreviousAmount: r.PreviousAmount,
		NewAmount:      r.NewAmount,
		PreviousActive: r.PreviousActive,
		NewActive:      r.NewActive,
		ApprovalStatus: string(r.ApprovalStatus),
		Source:         string(r.Source),
		SourceRefID:    r.SourceRefID,
		Actor:          r.Actor,
		Reason:         r.Reason,
		EffectiveDate:  r.EffectiveDate.Format(dateLayout),
		DecidedBy:      r.DecidedBy,
		DecidedAt:      r.DecidedAt,
		DecisionNotes:  r.DecisionNotes,
		CreatedAt:      r.CreatedAt,
	}
}

func NewChangeRecordResponses(records []ChangeRecord) []ChangeRecordResponse {
	out := make([]ChangeRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, NewChangeRecordResponse(r))
	}
	return out
}

type ListChangeRecordResponse struct {
	Data       []ChangeRecordResponse `json:"data"`
	TotalCount int64                  `json:"total_count"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
}
