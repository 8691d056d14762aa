package payroll

import (
	"context"
	"time"
)

type PeriodRepository interface {
	// Create returns ErrPeriodAlreadyExists when the month is taken.
	Create(ctx context.Context, period Period) (Period, error)
	GetByID(ctx context.Context, id string) (Period, error)
	// List orders by year and month. A nil year lists every period.
	List(ctx context.Context, year *int) ([]Period, error)
	// SaveCalculation marks the period calculated with the given totals unless it is finalized.
	SaveCalculation(ctx context.Context, id string, totals Totals, warningCount int, calculatedAt time.Time) (Period, error)
	// MarkFinalized succeeds only while the period is calculated.
	MarkFinalized(ctx context.Context, id string, actor string, finalizedAt time.Time) (Period, error)
}

type LineItemRepository interface {
	// ReplaceForPeriod swaps the full set of line items of a period.
	ReplaceForPeriod(ctx context.Context, periodID string, items []LineItem) error
	// ListByPeriod orders by employee ID.
	ListByPeriod(ctx context.Context, periodID string) ([]LineItem, error)
}

type VariableInputRepository interface {
	Upsert(ctx context.Context, inputs []VariableInput) error
	// ListByPeriod orders by employee ID.
	ListByPeriod(ctx context.Context, periodID string) ([]VariableInput, error)
	Delete(ctx context.Context, periodID, employeeID string) error
}
