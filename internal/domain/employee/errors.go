package employee

import "github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"

var (
	ErrEmployeeNotFound = apperror.New(apperror.CodeNotFound, "employee not found")
	ErrInvalidTaxStatus = apperror.New(apperror.CodeInvalidInput, "invalid tax status")
)
