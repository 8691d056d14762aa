package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// ========== COMPONENTS ==========

const componentColumns = `id, employee_id, kind, name, amount, is_active, created_at, updated_at`

const activeBasicSalaryIndex = "uk_salary_components_active_basic"

type componentRepositoryImpl struct {
	db *database.DB
}

func NewComponentRepository(db *database.DB) salary.ComponentRepository {
	return &componentRepositoryImpl{db: db}
}

func scanComponent(row scanner) (salary.Component, error) {
	var c salary.Component
	err := row.Scan(&c.ID, &c.EmployeeID, &c.Kind, &c.Name, &c.Amount, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *componentRepositoryImpl) GetByID(ctx context.Context, id string) (salary.Component, error) {
	q := GetQuerier(ctx, r.db)

	// Row lock so concurrent writers inside transactions serialize on the component.
	query := `SELECT ` + componentColumns + ` FROM salary_components WHERE id = $1`
	if _, inTx := q.(pgx.Tx); inTx {
		query += ` FOR UPDATE`
	}

	c, err := scanComponent(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return salary.Component{}, salary.ErrComponentNotFound
		}
		return salary.Component{}, fmt.Errorf("failed to get salary component: %w", err)
	}
	return c, nil
}

func (r *componentRepositoryImpl) ListByEmployee(ctx context.Context, employeeID string, activeOnly bool) ([]salary.Component, error) {
	query := `SELECT ` + componentColumns + ` FROM salary_components WHERE employee_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY kind, name, id`
	if _, inTx := GetQuerier(ctx, r.db).(pgx.Tx); inTx {
		query += ` FOR UPDATE`
	}
	return r.list(ctx, query, employeeID)
}

func (r *componentRepositoryImpl) ListActiveByEmployeeIDs(ctx context.Context, employeeIDs []string) ([]salary.Component, error) {
	if len(employeeIDs) == 0 {
		return []salary.Component{}, nil
	}
	query := `
		SELECT ` + componentColumns + `
		FROM salary_components
		WHERE employee_id = ANY($1::uuid[]) AND is_active
		ORDER BY employee_id, kind, name, id
	`
	return r.list(ctx, query, employeeIDs)
}

func (r *componentRepositoryImpl) list(ctx context.Context, query string, args ...any) ([]salary.Component, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list salary components: %w", err)
	}
	defer rows.Close()

	components := []salary.Component{}
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salary component: %w", err)
		}
		components = append(components, c)
	}
	return components, rows.Err()
}

func (r *componentRepositoryImpl) Create(ctx context.Context, component salary.Component) (salary.Component, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO salary_components (id, employee_id, kind, name, amount, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + componentColumns

	c, err := scanComponent(q.QueryRow(ctx, query,
		component.ID, component.EmployeeID, component.Kind, component.Name, component.Amount, component.IsActive,
	))
	if err != nil {
		if constraintViolated(err, activeBasicSalaryIndex) {
			return salary.Component{}, salary.ErrBasicSalaryExists
		}
		return salary.Component{}, fmt.Errorf("failed to create salary component: %w", err)
	}
	return c, nil
}

func (r *componentRepositoryImpl) Update(ctx context.Context, component salary.Component) (salary.Component, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE salary_components
		SET name = $2, amount = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + componentColumns

	c, err := scanComponent(q.QueryRow(ctx, query, component.ID, component.Name, component.Amount, component.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return salary.Component{}, salary.ErrComponentNotFound
		}
		if constraintViolated(err, activeBasicSalaryIndex) {
			return salary.Component{}, salary.ErrBasicSalaryExists
		}
		return salary.Component{}, fmt.Errorf("failed to update salary component: %w", err)
	}
	return c, nil
}

// ========== CHANGE RECORDS ==========

const changeRecordColumns = `
	id, component_id, employee_id, component_kind, component_name, action,
	previous_amount, new_amount, previous_active, new_active, approval_status,
	source, source_ref_id, actor, reason, effective_date, decided_by, decided_at,
	decision_notes, created_at`

type changeRecordRepositoryImpl struct {
	db *database.DB
}

func NewChangeRecordRepository(db *database.DB) salary.ChangeRecordRepository {
	return &changeRecordRepositoryImpl{db: db}
}

func scanChangeRecord(row scanner) (salary.ChangeRecord, error) {
	var rec salary.ChangeRecord
	err := row.Scan(
		&rec.ID, &rec.ComponentID, &rec.EmployeeID, &rec.ComponentKind, &rec.ComponentName, &rec.Action,
		&rec.PreviousAmount, &rec.NewAmount, &rec.PreviousActive, &rec.NewActive, &rec.ApprovalStatus,
		&rec.Source, &rec.SourceRefID, &rec.Actor, &rec.Reason, &rec.EffectiveDate, &rec.DecidedBy, &rec.DecidedAt,
		&rec.DecisionNotes, &rec.CreatedAt,
	)
	return rec, err
}

func (r *changeRecordRepositoryImpl) Append(ctx context.Context, rec salary.ChangeRecord) (salary.ChangeRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO salary_change_records (
			id, component_id, employee_id, component_kind, component_name, action,
			previous_amount, new_amount, previous_active, new_active, approval_status,
			source, source_ref_id, actor, reason, effective_date, decided_by, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING ` + changeRecordColumns

	saved, err := scanChangeRecord(q.QueryRow(ctx, query,
		rec.ID, rec.ComponentID, rec.EmployeeID, rec.ComponentKind, rec.ComponentName, rec.Action,
		rec.PreviousAmount, rec.NewAmount, rec.PreviousActive, rec.NewActive, rec.ApprovalStatus,
		rec.Source, rec.SourceRefID, rec.Actor, rec.Reason, rec.EffectiveDate, rec.DecidedBy, rec.DecidedAt,
	))
	if err != nil {
		return salary.ChangeRecord{}, fmt.Errorf("failed to append salary change record: %w", err)
	}
	return saved, nil
}

func (r *changeRecordRepositoryImpl) Resolve(ctx context.Context, id string, res salary.Resolution) (salary.ChangeRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE salary_change_records
		SET approval_status = $2,
			decided_by = $3,
			decided_at = $4,
			decision_notes = $5,
			component_id = COALESCE($6, component_id),
			previous_amount = COALESCE($7, previous_amount),
			previous_active = COALESCE($8, previous_active)
		WHERE id = $1 AND approval_status = 'pending'
		RETURNING ` + changeRecordColumns

	rec, err := scanChangeRecord(q.QueryRow(ctx, query,
		id, res.Status, res.DecidedBy, res.DecidedAt, res.Notes, res.ComponentID, res.PreviousAmount, res.PreviousActive,
	))
	if err == nil {
		return rec, nil
	}
	if isRaisedException(err) {
		return salary.ChangeRecord{}, salary.ErrRecordAlreadyDecided
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return salary.ChangeRecord{}, fmt.Errorf("failed to resolve salary change record: %w", err)
	}

	// No pending row matched: tell a decided record apart from a missing one.
	if _, err := r.GetByID(ctx, id); err != nil {
		return salary.ChangeRecord{}, err
	}
	return salary.ChangeRecord{}, salary.ErrRecordAlreadyDecided
}

func (r *changeRecordRepositoryImpl) GetByID(ctx context.Context, id string) (salary.ChangeRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + changeRecordColumns + ` FROM salary_change_records WHERE id = $1`

	rec, err := scanChangeRecord(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return salary.ChangeRecord{}, salary.ErrChangeRecordNotFound
		}
		return salary.ChangeRecord{}, fmt.Errorf("failed to get salary change record: %w", err)
	}
	return rec, nil
}

func (r *changeRecordRepositoryImpl) List(ctx context.Context, filter salary.ChangeRecordFilter) ([]salary.ChangeRecord, int64, error) {
	q := GetQuerier(ctx, r.db)

	where, args := changeRecordWhere(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM salary_change_records` + where
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count salary change records: %w", err)
	}

	query := `SELECT ` + changeRecordColumns + ` FROM salary_change_records` + where + ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		args = append(args, filter.Limit, (page-1)*filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list salary change records: %w", err)
	}
	defer rows.Close()

	records := []salary.ChangeRecord{}
	for rows.Next() {
		rec, err := scanChangeRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan salary change record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate salary change records: %w", err)
	}
	return records, total, nil
}

func changeRecordWhere(f salary.ChangeRecordFilter) (string, []any) {
	var conditions []string
	var args []any
	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.EmployeeID != nil {
		add("employee_id = $%d", *f.EmployeeID)
	}
	if f.ComponentID != nil {
		add("component_id = $%d", *f.ComponentID)
	}
	if f.Status != nil {
		add("approval_status = $%d", *f.Status)
	}
	if f.Source != nil {
		add("source = $%d", *f.Source)
	}
	if f.SourceRefID != nil {
		add("source_ref_id = $%d", *f.SourceRefID)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
