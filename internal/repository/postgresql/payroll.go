package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// ========== PERIODS ==========

const periodColumns = `
	id, month, year, status, employee_count, total_gross, total_tax,
	total_employee_contribution, total_employer_contribution, total_net,
	warning_count, calculated_at, finalized_at, finalized_by, created_at, updated_at`

const periodMonthConstraint = "uk_payroll_periods_month"

type periodRepositoryImpl struct {
	db *database.DB
}

func NewPeriodRepository(db *database.DB) payroll.PeriodRepository {
	return &periodRepositoryImpl{db: db}
}

func scanPeriod(row scanner) (payroll.Period, error) {
	var p payroll.Period
	err := row.Scan(
		&p.ID, &p.Month, &p.Year, &p.Status, &p.Totals.EmployeeCount, &p.Totals.TotalGross, &p.Totals.TotalTax,
		&p.Totals.TotalEmployeeContribution, &p.Totals.TotalEmployerContribution, &p.Totals.TotalNet,
		&p.WarningCount, &p.CalculatedAt, &p.FinalizedAt, &p.FinalizedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *periodRepositoryImpl) Create(ctx context.Context, period payroll.Period) (payroll.Period, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_periods (id, month, year, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + periodColumns

	p, err := scanPeriod(q.QueryRow(ctx, query, period.ID, period.Month, period.Year, period.Status))
	if err != nil {
		if constraintViolated(err, periodMonthConstraint) {
			return payroll.Period{}, payroll.ErrPeriodAlreadyExists
		}
		return payroll.Period{}, fmt.Errorf("failed to create payroll period: %w", err)
	}
	return p, nil
}

func (r *periodRepositoryImpl) GetByID(ctx context.Context, id string) (payroll.Period, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + periodColumns + ` FROM payroll_periods WHERE id = $1`

	p, err := scanPeriod(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Period{}, payroll.ErrPeriodNotFound
		}
		return payroll.Period{}, fmt.Errorf("failed to get payroll period: %w", err)
	}
	return p, nil
}

func (r *periodRepositoryImpl) List(ctx context.Context, year *int) ([]payroll.Period, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + periodColumns + `
		FROM payroll_periods
		WHERE ($1::int IS NULL OR year = $1)
		ORDER BY year, month
	`

	rows, err := q.Query(ctx, query, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll periods: %w", err)
	}
	defer rows.Close()

	periods := []payroll.Period{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (r *periodRepositoryImpl) SaveCalculation(ctx context.Context, id string, totals payroll.Totals, warningCount int, calculatedAt time.Time) (payroll.Period, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_periods
		SET status = 'calculated',
			employee_count = $2,
			total_gross = $3,
			total_tax = $4,
			total_employee_contribution = $5,
			total_employer_contribution = $6,
			total_net = $7,
			warning_count = $8,
			calculated_at = $9,
			updated_at = NOW()
		WHERE id = $1 AND status <> 'finalized'
		RETURNING ` + periodColumns

	p, err := scanPeriod(q.QueryRow(ctx, query,
		id, totals.EmployeeCount, totals.TotalGross, totals.TotalTax,
		totals.TotalEmployeeContribution, totals.TotalEmployerContribution, totals.TotalNet,
		warningCount, calculatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Period{}, r.transitionError(ctx, id)
		}
		return payroll.Period{}, fmt.Errorf("failed to save payroll calculation: %w", err)
	}
	return p, nil
}

func (r *periodRepositoryImpl) MarkFinalized(ctx context.Context, id string, actor string, finalizedAt time.Time) (payroll.Period, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_periods
		SET status = 'finalized', finalized_by = $2, finalized_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'calculated'
		RETURNING ` + periodColumns

	p, err := scanPeriod(q.QueryRow(ctx, query, id, actor, finalizedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Period{}, r.transitionError(ctx, id)
		}
		return payroll.Period{}, fmt.Errorf("failed to finalize payroll period: %w", err)
	}
	return p, nil
}

// transitionError explains a conditional update that matched no row.
func (r *periodRepositoryImpl) transitionError(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return payroll.ErrInvalidStateTransition
}

// ========== LINE ITEMS ==========

const lineItemColumns = `
	id, period_id, employee_id, employee_code, employee_name, tax_status,
	base_salary, fixed_allowances, bonus, overtime, other_allowance, other_deduction,
	gross_pay, contributions, employee_contribution, employer_contribution,
	occupational_cost, taxable_income_annual, tax_annual, tax_withheld, net_pay, warnings`

type lineItemRepositoryImpl struct {
	db *database.DB
}

func NewLineItemRepository(db *database.DB) payroll.LineItemRepository {
	return &lineItemRepositoryImpl{db: db}
}

// ReplaceForPeriod is expected to run inside a transaction so the delete and
// the inserts commit together.
func (r *lineItemRepositoryImpl) ReplaceForPeriod(ctx context.Context, periodID string, items []payroll.LineItem) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM payroll_line_items WHERE period_id = $1`, periodID); err != nil {
		return fmt.Errorf("failed to clear payroll line items: %w", err)
	}

	query := `
		INSERT INTO payroll_line_items (` + lineItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	batch := &pgx.Batch{}
	for _, item := range items {
		contributions, err := json.Marshal(item.Contributions)
		if err != nil {
			return fmt.Errorf("failed to encode contributions: %w", err)
		}
		warnings := make([]string, 0, len(item.Warnings))
		for _, w := range item.Warnings {
			warnings = append(warnings, string(w))
		}

		batch.Queue(query,
			item.ID, periodID, item.EmployeeID, item.EmployeeCode, item.EmployeeName, string(item.TaxStatus),
			item.BaseSalary, item.FixedAllowances, item.Bonus, item.Overtime, item.OtherAllowance, item.OtherDeduction,
			item.GrossPay, contributions, item.EmployeeContribution, item.EmployerContribution,
			item.OccupationalCost, item.TaxableIncomeAnnual, item.TaxAnnual, item.TaxWithheld, item.NetPay, warnings,
		)
	}
	if batch.Len() == 0 {
		return nil
	}

	results := q.SendBatch(ctx, batch)
	for _, item := range items {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to insert payroll line item for employee %s: %w", item.EmployeeID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to insert payroll line items: %w", err)
	}
	return nil
}

func (r *lineItemRepositoryImpl) ListByPeriod(ctx context.Context, periodID string) ([]payroll.LineItem, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + lineItemColumns + ` FROM payroll_line_items WHERE period_id = $1 ORDER BY employee_id`

	rows, err := q.Query(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll line items: %w", err)
	}
	defer rows.Close()

	items := []payroll.LineItem{}
	for rows.Next() {
		var (
			item          payroll.LineItem
			contributions []byte
			warnings      []string
		)
		err := rows.Scan(
			&item.ID, &item.PeriodID, &item.EmployeeID, &item.EmployeeCode, &item.EmployeeName, &item.TaxStatus,
			&item.BaseSalary, &item.FixedAllowances, &item.Bonus, &item.Overtime, &item.OtherAllowance, &item.OtherDeduction,
			&item.GrossPay, &contributions, &item.EmployeeContribution, &item.EmployerContribution,
			&item.OccupationalCost, &item.TaxableIncomeAnnual, &item.TaxAnnual, &item.TaxWithheld, &item.NetPay, &warnings,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll line item: %w", err)
		}
		if err := json.Unmarshal(contributions, &item.Contributions); err != nil {
			return nil, fmt.Errorf("failed to decode contributions: %w", err)
		}
		for _, w := range warnings {
			item.Warnings = append(item.Warnings, payroll.Warning(w))
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ========== VARIABLE INPUTS ==========

type variableInputRepositoryImpl struct {
	db *database.DB
}

func NewVariableInputRepository(db *database.DB) payroll.VariableInputRepository {
	return &variableInputRepositoryImpl{db: db}
}

func (r *variableInputRepositoryImpl) Upsert(ctx context.Context, inputs []payroll.VariableInput) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_variable_inputs (
			period_id, employee_id, bonus, overtime, other_allowance, other_deduction
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (period_id, employee_id) DO UPDATE SET
			bonus = EXCLUDED.bonus,
			overtime = EXCLUDED.overtime,
			other_allowance = EXCLUDED.other_allowance,
			other_deduction = EXCLUDED.other_deduction,
			updated_at = NOW()
	`
	for _, in := range inputs {
		_, err := q.Exec(ctx, query,
			in.PeriodID, in.EmployeeID, in.Bonus, in.Overtime, in.OtherAllowance, in.OtherDeduction,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert variable input for employee %s: %w", in.EmployeeID, err)
		}
	}
	return nil
}

func (r *variableInputRepositoryImpl) ListByPeriod(ctx context.Context, periodID string) ([]payroll.VariableInput, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT period_id, employee_id, bonus, overtime, other_allowance, other_deduction, updated_at
		FROM payroll_variable_inputs
		WHERE period_id = $1
		ORDER BY employee_id
	`

	rows, err := q.Query(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variable inputs: %w", err)
	}
	defer rows.Close()

	inputs := []payroll.VariableInput{}
	for rows.Next() {
		var in payroll.VariableInput
		if err := rows.Scan(&in.PeriodID, &in.EmployeeID, &in.Bonus, &in.Overtime, &in.OtherAllowance, &in.OtherDeduction, &in.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan variable input: %w", err)
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

func (r *variableInputRepositoryImpl) Delete(ctx context.Context, periodID, employeeID string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM payroll_variable_inputs WHERE period_id = $1 AND employee_id = $2`, periodID, employeeID)
	if err != nil {
		return fmt.Errorf("failed to delete variable input: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrVariableInputNotFound
	}
	return nil
}
