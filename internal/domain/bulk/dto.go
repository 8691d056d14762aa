package bulk

import (
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var (
	minPercent = decimal.NewFromInt(-100)
	maxPercent = decimal.NewFromInt(1000)
)

type PreviewRequest struct {
	Cohort        CohortSelector `json:"cohort"`
	Rule          AdjustmentRule `json:"rule"`
	Reason        string         `json:"reason"`
	EffectiveDate string         `json:"effective_date"`
	Actor         string         `json:"-"`
}

func (r *PreviewRequest) Validate() error {
	var errs validator.ValidationErrors

	validateCohort(&errs, r.Cohort)
	validateRule(&errs, r.Rule)

	if validator.IsEmpty(r.Reason) {
		errs.Add("reason", "is required")
	}
	if _, ok := validator.IsValidDate(r.EffectiveDate); !ok {
		errs.Add("effective_date", "must be in YYYY-MM-DD format")
	}
	if validator.IsEmpty(r.Actor) {
		errs.Add("actor", "is required")
	}

	return errs.OrNil()
}

// EffectiveDateValue returns the parsed effective date. Call after Validate.
func (r *PreviewRequest) EffectiveDateValue() time.Time {
	date, _ := time.Parse(dateLayout, r.EffectiveDate)
	return date
}

func validateCohort(errs *validator.ValidationErrors, c CohortSelector) {
	switch c.Type {
	case CohortTypeExplicit:
		if c.Filter != nil {
			errs.Add("cohort.filter", "must be empty for an explicit cohort")
		}
		if len(c.EmployeeIDs) == 0 {
			errs.Add("cohort.employee_ids", "at least one employee is required")
		}
		for _, id := range c.EmployeeIDs {
			if !validator.IsValidUUID(id) {
				errs.Add("cohort.employee_ids", "must contain valid UUIDs")
				break
			}
		}
		if validator.HasDuplicates(c.EmployeeIDs) {
			errs.Add("cohort.employee_ids", "must not contain duplicates")
		}
	case CohortTypeFilter:
		if len(c.EmployeeIDs) > 0 {
			errs.Add("cohort.employee_ids", "must be empty for a filter cohort")
		}
		f := c.Filter
		if f == nil || (f.DepartmentID == nil && f.PositionID == nil && f.MinBasicSalary == nil && f.MaxBasicSalary == nil) {
			errs.Add("cohort.filter", "at least one criterion is required")
			return
		}
		if f.DepartmentID != nil && !validator.IsValidUUID(*f.DepartmentID) {
			errs.Add("cohort.filter.department_id", "must be a valid UUID")
		}
		if f.PositionID != nil && !validator.IsValidUUID(*f.PositionID) {
			errs.Add("cohort.filter.position_id", "must be a valid UUID")
		}
		if f.MinBasicSalary != nil && f.MinBasicSalary.IsNegative() {
			errs.Add("cohort.filter.min_basic_salary", "must be non-negative")
		}
		if f.MaxBasicSalary != nil && f.MaxBasicSalary.IsNegative() {
			errs.Add("cohort.filter.max_basic_salary", "must be non-negative")
		}
		if f.MinBasicSalary != nil && f.MaxBasicSalary != nil && f.MaxBasicSalary.LessThan(*f.MinBasicSalary) {
			errs.Add("cohort.filter.max_basic_salary", "must not be less than min_basic_salary")
		}
	default:
		errs.Add("cohort.type", "must be 'explicit' or 'filter'")
	}
}

func validateRule(errs *validator.ValidationErrors, r AdjustmentRule) {
	switch r.Type {
	case RuleTypePercentage:
		if r.Percent == nil {
			errs.Add("rule.percent", "is required")
		} else if r.Percent.IsZero() || r.Percent.LessThanOrEqual(minPercent) || r.Percent.GreaterThan(maxPercent) {
			errs.Add("rule.percent", "must be non-zero, above -100 and at most 1000")
		}
	case RuleTypeFixedAmount:
		if r.Amount == nil || r.Amount.IsZero() {
			errs.Add("rule.amount", "is required and must be non-zero")
		}
	case RuleTypeExplicit:
		if len(r.Values) == 0 {
			errs.Add("rule.values", "at least one value is required")
		}
		for employeeID, value := range r.Values {
			if !validator.IsValidUUID(employeeID) {
				errs.Add("rule.values", "keys must be valid employee UUIDs")
				break
			}
			if value.IsNegative() {
				errs.Add("rule.values", "values must be non-negative")
				break
			}
		}
	default:
		errs.Add("rule.type", "must be 'percentage', 'fixed_amount' or 'explicit'")
	}
}

type ExecuteRequest struct {
	OperationID string `json:"-"`
	Actor       string `json:"-"`
}

func (r *ExecuteRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.OperationID) {
		errs.Add("operation_id", "must be a valid UUID")
	}
	if validator.IsEmpty(r.Actor) {
		errs.Add("actor", "is required")
	}

	return errs.OrNil()
}

type OperationResponse struct {
	ID            string         `json:"id"`
	Cohort        CohortSelector `json:"cohort"`
	Rule          AdjustmentRule `json:"rule"`
	Status        string         `json:"status"`
	TotalItems    int            `json:"total_items"`
	AppliedCount  int            `json:"applied_count"`
	FailedCount   int            `json:"failed_count"`
	Reason        string         `json:"reason"`
	EffectiveDate string         `json:"effective_date"`
	CreatedBy     string         `json:"created_by"`
	ExecutedBy    *string        `json:"executed_by,omitempty"`
	Error         *string        `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

func NewOperationResponse(op Operation) OperationResponse {
	return OperationResponse{
		ID:            op.ID,
		Cohort:        op.Cohort,
		Rule:          op.Rule,
		Status:        string(op.Status),
		TotalItems:    op.TotalItems,
		AppliedCount:  op.AppliedCount,
		FailedCount:   op.FailedCount,
		Reason:        op.Reason,
		EffectiveDate: op.EffectiveDate.Format(dateLayout),
		CreatedBy:     op.CreatedBy,
		ExecutedBy:    op.ExecutedBy,
		Error:         op.Error,
		CreatedAt:     op.CreatedAt,
		StartedAt:     op.StartedAt,
		CompletedAt:   op.CompletedAt,
	}
}

type ItemResponse struct {
	ID           string          `json:"id"`
	EmployeeID   string          `json:"employee_id"`
	EmployeeName string          `json:"employee_name"`
	Changes      []PlannedChange `json:"changes"`
	Status       string          `json:"status"`
	Error        *string         `json:"error,omitempty"`
	AppliedAt    *time.Time      `json:"applied_at,omitempty"`
}

func NewItemResponses(items []Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		changes := item.Changes
		if changes == nil {
			changes = []PlannedChange{}
		}
		out = append(out, ItemResponse{
			ID:           item.ID,
			EmployeeID:   item.EmployeeID,
			EmployeeName: item.EmployeeName,
			Changes:      changes,
			Status:       string(item.Status),
			Error:        item.Error,
			AppliedAt:    item.AppliedAt,
		})
	}
	return out
}

// OperationDetail is an operation with its items.
type OperationDetail struct {
	Operation Operation
	Items     []Item
}

type OperationDetailResponse struct {
	Operation OperationResponse `json:"operation"`
	Items     []ItemResponse    `json:"items"`
}

func NewOperationDetailResponse(d OperationDetail) OperationDetailResponse {
	return OperationDetailResponse{
		Operation: NewOperationResponse(d.Operation),
		Items:     NewItemResponses(d.Items),
	}
}

type ResultResponse struct {
	Operation OperationResponse `json:"operation"`
	Total     int               `json:"total"`
	Applied   int               `json:"applied"`
	Failed    int               `json:"failed"`
	Pending   int               `json:"pending"`
	Items     []ItemResponse    `json:"items"`
}

func NewResultResponse(r Result) ResultResponse {
	return ResultResponse{
		Operation: NewOperationResponse(r.Operation),
		Total:     r.Total,
		Applied:   r.Applied,
		Failed:    r.Failed,
		Pending:   r.Pending,
		Items:     NewItemResponses(r.Items),
	}
}
