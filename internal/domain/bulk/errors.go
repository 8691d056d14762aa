package bulk

import "github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"

var (
	ErrOperationNotFound      = apperror.New(apperror.CodeNotFound, "bulk operation not found")
	ErrInvalidStateTransition = apperror.New(apperror.CodeInvalidState, "bulk operation status does not allow this operation")
	ErrConcurrencyConflict    = apperror.New(apperror.CodeConflict, "bulk operation is already being executed")
	ErrPartialFailure         = apperror.New(apperror.CodePartialFailure, "some bulk operation items failed")
	ErrOperationFailed        = apperror.New(apperror.CodePartialFailure, "every bulk operation item failed")
	ErrEmptyCohort            = apperror.New(apperror.CodeInvalidInput, "cohort selects no employees")
	ErrUnknownEmployee        = apperror.New(apperror.CodeInvalidInput, "cohort references an unknown or inactive employee")
	ErrNoActiveComponents     = apperror.New(apperror.CodeInvalidState, "employee has no active salary components")
	ErrNoTargetValue          = apperror.New(apperror.CodeInvalidInput, "no target value for employee")
	ErrNegativeResult         = apperror.New(apperror.CodeInvalidInput, "adjustment would make a salary component negative")
)
