package department

import "github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"

var (
	ErrDepartmentNotFound  = apperror.New(apperror.CodeNotFound, "department not found")
	ErrDuplicateDepartment = apperror.New(apperror.CodeInvalidInput, "department hierarchy contains a duplicate id")
	ErrUnknownParent       = apperror.New(apperror.CodeInvalidInput, "department parent does not exist")
	ErrHierarchyCycle      = apperror.New(apperror.CodeInvalidInput, "department hierarchy contains a cycle")
)
