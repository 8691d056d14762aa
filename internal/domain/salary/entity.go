package salary

import (
	"time"

	"github.com/shopspring/decimal"
)

type ComponentKind string

const (
	ComponentKindBasicSalary    ComponentKind = "basic_salary"
	ComponentKindFixedAllowance ComponentKind = "fixed_allowance"
)

func (k ComponentKind) IsValid() bool {
	return k == ComponentKindBasicSalary || k == ComponentKindFixedAllowance
}

// Component is a recurring pay element. Active components of an employee
// add up to the fixed part of gross pay.
type Component struct {
	ID         string
	EmployeeID string
	Kind       ComponentKind
	Name       string
	Amount     decimal.Decimal
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ChangeAction string

const (
	ChangeActionCreate ChangeAction = "create"
	ChangeActionUpdate ChangeAction = "update"
	ChangeActionDelete ChangeAction = "delete"
)

func (a ChangeAction) IsValid() bool {
	return a == ChangeActionCreate || a == ChangeActionUpdate || a == ChangeActionDelete
}

type ApprovalStatus string

const (
	ApprovalStatusPending      ApprovalStatus = "pending"
	ApprovalStatusApproved     ApprovalStatus = "approved"
	ApprovalStatusRejected     ApprovalStatus = "rejected"
	ApprovalStatusAutoApproved ApprovalStatus = "auto_approved"
)

func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusAutoApproved:
		return true
	}
	return false
}

type ChangeSource string

const (
	ChangeSourceDirectEdit    ChangeSource = "direct_edit"
	ChangeSourceBulkOperation ChangeSource = "bulk_operation"
	ChangeSourceApproval      ChangeSource = "approval"
)

func (s ChangeSource) IsValid() bool {
	return s == ChangeSourceDirectEdit || s == ChangeSourceBulkOperation || s == ChangeSourceApproval
}

// ChangeRecord is one entry of the salary ledger. Records are never deleted;
// only a pending record may be resolved, once.
type ChangeRecord struct {
	ID             string
	ComponentID    *string // nil for a pending create
	EmployeeID     string
	ComponentKind  ComponentKind
	ComponentName  string
	Action         ChangeAction
	PreviousAmount *decimal.Decimal
	NewAmount      decimal.Decimal
	PreviousActive *bool
	NewActive      bool
	ApprovalStatus ApprovalStatus
	Source         ChangeSource
	SourceRefID    *string
	Actor          string
	Reason         *string
	EffectiveDate  time.Time
	DecidedBy      *string
	DecidedAt      *time.Time
	DecisionNotes  *string
	CreatedAt      time.Time
}

func (r ChangeRecord) IsPending() bool {
	return r.ApprovalStatus == ApprovalStatusPending
}

// Resolution closes a pending record. ComponentID and the previous values are
// captured at the moment an approval is applied.
type Resolution struct {
	Status         ApprovalStatus
	DecidedBy      string
	DecidedAt      time.Time
	Notes          *string
	ComponentID    *string
	PreviousAmount *decimal.Decimal
	PreviousActive *bool
}

type ChangeRecordFilter struct {
	EmployeeID  *string
	ComponentID *string
	Status      *ApprovalStatus
	Source      *ChangeSource
	SourceRefID *string
	From        *time.Time
	To          *time.Time
	Page        int
	Limit       int
}
