package memory

import (
	"fmt"
	"os"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/master/department"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Seed is the master data loaded into a memory store for local runs.
type Seed struct {
	Departments []struct {
		ID       string  `yaml:"id"`
		Name     string  `yaml:"name"`
		ParentID *string `yaml:"parent_id"`
	} `yaml:"departments"`
	Employees []struct {
		ID                          string  `yaml:"id"`
		EmployeeCode                string  `yaml:"employee_code"`
		FullName                    string  `yaml:"full_name"`
		DepartmentID                *string `yaml:"department_id"`
		PositionID                  *string `yaml:"position_id"`
		TaxStatus                   string  `yaml:"tax_status"`
		HealthInsuranceEnrolled     bool    `yaml:"health_insurance_enrolled"`
		EmploymentInsuranceEnrolled bool    `yaml:"employment_insurance_enrolled"`
		EmploymentStatus            string  `yaml:"employment_status"`
		HireDate                    string  `yaml:"hire_date"`
	} `yaml:"employees"`
	Components []struct {
		ID         string          `yaml:"id"`
		EmployeeID string          `yaml:"employee_id"`
		Kind       string          `yaml:"kind"`
		Name       string          `yaml:"name"`
		Amount     decimal.Decimal `yaml:"amount"`
	} `yaml:"components"`
}

// LoadSeedFile reads a YAML seed file into the store.
func LoadSeedFile(store *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	return LoadSeed(store, data)
}

// LoadSeed validates and loads seed data. Seeded components are the opening
// balance and are not written to the change ledger.
func LoadSeed(store *Store, data []byte) error {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}

	departments := make([]department.Department, 0, len(seed.Departments))
	for _, d := range seed.Departments {
		departments = append(departments, department.Department{ID: d.ID, Name: d.Name, ParentID: d.ParentID})
	}
	if _, err := department.NewTree(departments); err != nil {
		return fmt.Errorf("seed departments: %w", err)
	}

	employees := make([]employee.Employee, 0, len(seed.Employees))
	for _, e := range seed.Employees {
		status := employee.TaxStatus(e.TaxStatus)
		if !status.IsValid() {
			return fmt.Errorf("seed employee %s: %w", e.ID, employee.ErrInvalidTaxStatus)
		}
		employmentStatus := employee.EmploymentStatus(e.EmploymentStatus)
		if employmentStatus == "" {
			employmentStatus = employee.EmploymentStatusActive
		}
		var hireDate time.Time
		if e.HireDate != "" {
			parsed, err := time.Parse("2006-01-02", e.HireDate)
			if err != nil {
				return fmt.Errorf("seed employee %s hire_date: %w", e.ID, err)
			}
			hireDate = parsed
		}
		employees = append(employees, employee.Employee{
			ID:                          e.ID,
			EmployeeCode:                e.EmployeeCode,
			FullName:                    e.FullName,
			DepartmentID:                e.DepartmentID,
			PositionID:                  e.PositionID,
			TaxStatus:                   status,
			HealthInsuranceEnrolled:     e.HealthInsuranceEnrolled,
			EmploymentInsuranceEnrolled: e.EmploymentInsuranceEnrolled,
			EmploymentStatus:            employmentStatus,
			HireDate:                    hireDate,
		})
	}

	components := make([]salary.Component, 0, len(seed.Components))
	for _, c := range seed.Components {
		kind := salary.ComponentKind(c.Kind)
		if !kind.IsValid() {
			return fmt.Errorf("seed component %s: unknown kind %q", c.ID, c.Kind)
		}
		if c.Amount.IsNegative() {
			return fmt.Errorf("seed component %s: amount must not be negative", c.ID)
		}
		components = append(components, salary.Component{
			ID:         c.ID,
			EmployeeID: c.EmployeeID,
			Kind:       kind,
			Name:       c.Name,
			Amount:     c.Amount,
			IsActive:   true,
		})
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	now := store.now()
	for _, d := range departments {
		store.departments[d.ID] = d
	}
	for _, e := range employees {
		e.CreatedAt, e.UpdatedAt = now, now
		store.employees[e.ID] = e
	}
	for _, c := range components {
		if _, ok := store.employees[c.EmployeeID]; !ok {
			return fmt.Errorf("seed component %s: %w", c.ID, employee.ErrEmployeeNotFound)
		}
		c.CreatedAt, c.UpdatedAt = now, now
		store.components[c.ID] = c
	}
	return nil
}
