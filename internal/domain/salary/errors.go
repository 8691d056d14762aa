package salary

import "github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"

var (
	ErrComponentNotFound    = apperror.New(apperror.CodeNotFound, "salary component not found")
	ErrChangeRecordNotFound = apperror.New(apperror.CodeNotFound, "salary change record not found")
	ErrRecordAlreadyDecided = apperror.New(apperror.CodeInvalidState, "salary change record is already decided")
	ErrComponentOwnership   = apperror.New(apperror.CodeInvalidInput, "salary component does not belong to employee")
	ErrComponentInactive    = apperror.New(apperror.CodeInvalidState, "salary component is already inactive")
	ErrBasicSalaryExists    = apperror.New(apperror.CodeConflict, "employee already has an active basic salary")
	ErrInvalidChangeRecord  = apperror.New(apperror.CodeInvalidInput, "invalid salary change record")
	ErrNoBasicSalary        = apperror.New(apperror.CodeInvalidState, "employee has no active basic salary")
)
