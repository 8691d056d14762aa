package bulk

import (
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/shopspring/decimal"
)

type OperationStatus string

const (
	OperationStatusPreviewed          OperationStatus = "previewed"
	OperationStatusRunning            OperationStatus = "running"
	OperationStatusCompleted          OperationStatus = "completed"
	OperationStatusPartiallyCompleted OperationStatus = "partially_completed"
	OperationStatusFailed             OperationStatus = "failed"
	OperationStatusCancelled          OperationStatus = "cancelled"
)

func (s OperationStatus) IsTerminal() bool {
	switch s {
	case OperationStatusCompleted, OperationStatusPartiallyCompleted, OperationStatusFailed, OperationStatusCancelled:
		return true
	}
	return false
}

type CohortType string

const (
	CohortTypeExplicit CohortType = "explicit"
	CohortTypeFilter   CohortType = "filter"
)

// CohortSelector picks the employees of an operation. Exactly one of
// EmployeeIDs (explicit) or Filter (filter) is set, matching Type.
type CohortSelector struct {
	Type        CohortType    `json:"type"`
	EmployeeIDs []string      `json:"employee_ids,omitempty"`
	Filter      *CohortFilter `json:"filter,omitempty"`
}

// CohortFilter matches active employees. DepartmentID includes every descendant
// department. The salary range compares against the active basic salary.
type CohortFilter struct {
	DepartmentID   *string          `json:"department_id,omitempty"`
	PositionID     *string          `json:"position_id,omitempty"`
	MinBasicSalary *decimal.Decimal `json:"min_basic_salary,omitempty"`
	MaxBasicSalary *decimal.Decimal `json:"max_basic_salary,omitempty"`
}

type RuleType string

const (
	RuleTypePercentage  RuleType = "percentage"
	RuleTypeFixedAmount RuleType = "fixed_amount"
	RuleTypeExplicit    RuleType = "explicit"
)

// AdjustmentRule describes the change. Percentage scales every active
// component; FixedAmount is added to the basic salary; Explicit sets the
// basic salary of each listed employee to the given value.
type AdjustmentRule struct {
	Type    RuleType                   `json:"type"`
	Percent *decimal.Decimal           `json:"percent,omitempty"`
	Amount  *decimal.Decimal           `json:"amount,omitempty"`
	Values  map[string]decimal.Decimal `json:"values,omitempty"`
}

type Operation struct {
	ID              string
	Cohort          CohortSelector
	Rule            AdjustmentRule
	Status          OperationStatus
	TotalItems      int
	AppliedCount    int
	FailedCount     int
	CancelRequested bool
	Reason          string
	EffectiveDate   time.Time
	CreatedBy       string
	ExecutedBy      *string
	Error           *string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusApplied ItemStatus = "applied"
	ItemStatusFailed  ItemStatus = "failed"
)

// PlannedChange is the before/after of one salary component.
type PlannedChange struct {
	ComponentID string               `json:"component_id"`
	Kind        salary.ComponentKind `json:"kind"`
	Name        string               `json:"name"`
	Before      decimal.Decimal      `json:"before"`
	After       decimal.Decimal      `json:"after"`
}

type Item struct {
	ID           string
	OperationID  string
	EmployeeID   string
	EmployeeName string
	Changes      []PlannedChange
	Status       ItemStatus
	Error        *string
	AppliedAt    *time.Time
}

// Progress is reported after every processed item.
type Progress struct {
	OperationID string     `json:"operation_id"`
	EmployeeID  string     `json:"employee_id"`
	ItemStatus  ItemStatus `json:"item_status"`
	Processed   int        `json:"processed"`
	Total       int        `json:"total"`
	Applied     int        `json:"applied"`
	Failed      int        `json:"failed"`
}

// Result summarizes an execution. Per-item failures live here rather than in
// the error returned by Execute.
type Result struct {
	Operation Operation
	Total     int
	Applied   int
	Failed    int
	Pending   int
	Items     []Item
}

// Err reports the aggregate outcome: nil when every item was applied or the
// operation was cancelled without failures.
func (r Result) Err() error {
	switch r.Operation.Status {
	case OperationStatusPartiallyCompleted:
		return ErrPartialFailure
	case OperationStatusFailed:
		return ErrOperationFailed
	}
	if r.Failed > 0 {
		return ErrPartialFailure
	}
	return nil
}

// TerminalStatus derives the final status from item outcomes.
func TerminalStatus(applied, failed int, cancelled bool) OperationStatus {
	switch {
	case cancelled:
		return OperationStatusCancelled
	case failed == 0:
		return OperationStatusCompleted
	case applied == 0:
		return OperationStatusFailed
	default:
		return OperationStatusPartiallyCompleted
	}
}
