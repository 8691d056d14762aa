package payroll

import "github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"

var (
	ErrPeriodNotFound         = apperror.New(apperror.CodeNotFound, "payroll period not found")
	ErrPeriodAlreadyExists    = apperror.New(apperror.CodeConflict, "payroll period already exists for this month")
	ErrInvalidStateTransition = apperror.New(apperror.CodeInvalidState, "payroll period status does not allow this operation")
	ErrConcurrencyConflict    = apperror.New(apperror.CodeConflict, "payroll period is being processed by another request")
	ErrComplianceViolation    = apperror.New(apperror.CodeComplianceViolation, "payroll has unacknowledged compliance warnings")
	ErrVariableInputNotFound  = apperror.New(apperror.CodeNotFound, "variable input not found")
	ErrUnknownEmployee        = apperror.New(apperror.CodeInvalidInput, "variable input references an unknown or inactive employee")
)
