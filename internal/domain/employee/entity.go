package employee

import (
	"time"
)

// Employee is read-only input to payroll. It is maintained by the HR master data system.
type Employee struct {
	ID                          string
	EmployeeCode                string
	FullName                    string
	DepartmentID                *string
	PositionID                  *string
	TaxStatus                   TaxStatus
	HealthInsuranceEnrolled     bool
	EmploymentInsuranceEnrolled bool
	EmploymentStatus            EmploymentStatus
	HireDate                    time.Time
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusResigned   EmploymentStatus = "resigned"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)

// TaxStatus is the PTKP marital/dependent classification: TK (single) or K (married)
// followed by the number of dependents.
type TaxStatus string

const (
	TaxStatusTK0 TaxStatus = "TK/0"
	TaxStatusTK1 TaxStatus = "TK/1"
	TaxStatusTK2 TaxStatus = "TK/2"
	TaxStatusTK3 TaxStatus = "TK/3"
	TaxStatusK0  TaxStatus = "K/0"
	TaxStatusK1  TaxStatus = "K/1"
	TaxStatusK2  TaxStatus = "K/2"
	TaxStatusK3  TaxStatus = "K/3"
)

// TaxStatuses returns every supported tax status.
func TaxStatuses() []TaxStatus {
	return []TaxStatus{
		TaxStatusTK0, TaxStatusTK1, TaxStatusTK2, TaxStatusTK3,
		TaxStatusK0, TaxStatusK1, TaxStatusK2, TaxStatusK3,
	}
}

func (s TaxStatus) IsValid() bool {
	for _, status := range TaxStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

func (e Employee) IsActive() bool {
	return e.EmploymentStatus == EmploymentStatusActive
}
