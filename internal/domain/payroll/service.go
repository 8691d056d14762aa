package payroll

import "context"

// PayrollService drives a period through draft, calculated and finalized.
type PayrollService interface {
	CreatePeriod(ctx context.Context, req CreatePeriodRequest) (Period, error)
	GetPeriod(ctx context.Context, id string) (Period, error)
	ListPeriods(ctx context.Context, year *int) ([]Period, error)
	ListLineItems(ctx context.Context, periodID string) ([]LineItem, error)

	// Calculate recomputes every line item of the period and replaces the
	// stored set atomically. Identical inputs give identical results.
	Calculate(ctx context.Context, req CalculateRequest) (CalculationResult, error)
	Finalize(ctx context.Context, req FinalizeRequest) (Period, error)
}

// VariableInputService stores per-period inputs ahead of a calculation run.
type VariableInputService interface {
	SetVariableInputs(ctx context.Context, req SetVariableInputsRequest) ([]VariableInput, error)
	GetVariableInputs(ctx context.Context, periodID string) ([]VariableInput, error)
	ClearVariableInput(ctx context.Context, periodID, employeeID string) error
}
