package bpjs

import (
	"testing"

	"github.com/cmlabs-hris/hris-payroll-go/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newCalculator() *Calculator {
	return NewCalculator(config.DefaultRates().BPJS)
}

func assertAmount(t *testing.T, want int64, got decimal.Decimal, label string) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "%s: want %d got %s", label, want, got)
}

func TestCalculate_BothPrograms(t *testing.T) {
	got, err := newCalculator().Calculate(Input{Gross: d(5_000_000), HealthEnrolled: true, EmploymentEnrolled: true})
	require.NoError(t, err)

	assertAmount(t, 50_000, got.Health.Employee, "health employee")
	assertAmount(t, 200_000, got.Health.Employer, "health employer")
	assertAmount(t, 100_000, got.OldAge.Employee, "jht employee")
	assertAmount(t, 185_000, got.OldAge.Employer, "jht employer")
	assertAmount(t, 50_000, got.Pension.Employee, "jp employee")
	assertAmount(t, 100_000, got.Pension.Employer, "jp employer")
	assertAmount(t, 12_000, got.WorkAccident, "jkk")
	assertAmount(t, 15_000, got.Death, "jkm")

	assertAmount(t, 200_000, got.EmployeeTotal(), "employee total")
	assertAmount(t, 512_000, got.EmployerTotal(), "employer total")
	assertAmount(t, 150_000, got.TaxDeductible(), "tax deductible")
}

func TestCalculate_SalaryCaps(t *testing.T) {
	got, err := newCalculator().Calculate(Input{Gross: d(30_000_000), HealthEnrolled: true, EmploymentEnrolled: true})
	require.NoError(t, err)

	// health capped at 12,000,000
	assertAmount(t, 120_000, got.Health.Employee, "health employee")
	assertAmount(t, 480_000, got.Health.Employer, "health employer")
	// pension capped at 10,042,300
	assertAmount(t, 100_423, got.Pension.Employee, "jp employee")
	assertAmount(t, 200_846, got.Pension.Employer, "jp employer")
	// old age is not capped
	assertAmount(t, 600_000, got.OldAge.Employee, "jht employee")
}

func TestCalculate_CapIsMonotonic(t *testing.T) {
	calc := newCalculator()
	below, err := calc.Calculate(Input{Gross: d(11_999_999), HealthEnrolled: true})
	require.NoError(t, err)
	above, err := calc.Calculate(Input{Gross: d(50_000_000), HealthEnrolled: true})
	require.NoError(t, err)

	assert.True(t, above.Health.Employee.GreaterThanOrEqual(below.Health.Employee))
	assertAmount(t, 120_000, above.Health.Employee, "health employee at cap")
}

func TestCalculate_NotEnrolled(t *testing.T) {
	calc := newCalculator()

	got, err := calc.Calculate(Input{Gross: d(5_000_000)})
	require.NoError(t, err)
	assert.True(t, got.EmployeeTotal().IsZero())
	assert.True(t, got.EmployerTotal().IsZero())

	got, err = calc.Calculate(Input{Gross: d(5_000_000), HealthEnrolled: true})
	require.NoError(t, err)
	assertAmount(t, 50_000, got.EmployeeTotal(), "health only")
	assert.True(t, got.TaxDeductible().IsZero())

	got, err = calc.Calculate(Input{Gross: d(5_000_000), EmploymentEnrolled: true})
	require.NoError(t, err)
	assert.True(t, got.Health.Total().IsZero())
	assertAmount(t, 150_000, got.EmployeeTotal(), "employment only")
}

func TestCalculate_RoundsToWholeRupiah(t *testing.T) {
	got, err := newCalculator().Calculate(Input{Gross: d(3_333_333), HealthEnrolled: true, EmploymentEnrolled: true})
	require.NoError(t, err)

	assertAmount(t, 33_333, got.Health.Employee, "health employee")
	assertAmount(t, 8_000, got.WorkAccident, "jkk")
	assertAmount(t, 123_333, got.OldAge.Employer, "jht employer")
}

func TestCalculate_NegativeGross(t *testing.T) {
	_, err := newCalculator().Calculate(Input{Gross: d(-1)})
	assert.Error(t, err)
}
