package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/bulk"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const operationColumns = `
	id, cohort, rule, status, total_items, applied_count, failed_count, cancel_requested,
	reason, effective_date, created_by, executed_by, error, created_at, started_at,
	completed_at, updated_at`

type operationRepositoryImpl struct {
	db *database.DB
}

func NewOperationRepository(db *database.DB) bulk.OperationRepository {
	return &operationRepositoryImpl{db: db}
}

func scanOperation(row scanner) (bulk.Operation, error) {
	var (
		op           bulk.Operation
		cohort, rule []byte
	)
	err := row.Scan(
		&op.ID, &cohort, &rule, &op.Status, &op.TotalItems, &op.AppliedCount, &op.FailedCount, &op.CancelRequested,
		&op.Reason, &op.EffectiveDate, &op.CreatedBy, &op.ExecutedBy, &op.Error, &op.CreatedAt, &op.StartedAt,
		&op.CompletedAt, &op.UpdatedAt,
	)
	if err != nil {
		return bulk.Operation{}, err
	}
	if err := json.Unmarshal(cohort, &op.Cohort); err != nil {
		return bulk.Operation{}, fmt.Errorf("failed to decode cohort: %w", err)
	}
	if err := json.Unmarshal(rule, &op.Rule); err != nil {
		return bulk.Operation{}, fmt.Errorf("failed to decode rule: %w", err)
	}
	return op, nil
}

func (r *operationRepositoryImpl) Create(ctx context.Context, op bulk.Operation, items []bulk.Item) error {
	q := GetQuerier(ctx, r.db)

	cohort, err := json.Marshal(op.Cohort)
	if err != nil {
		return fmt.Errorf("failed to encode cohort: %w", err)
	}
	rule, err := json.Marshal(op.Rule)
	if err != nil {
		return fmt.Errorf("failed to encode rule: %w", err)
	}

	query := `
		INSERT INTO bulk_operations (
			id, cohort, rule, status, total_items, reason, effective_date, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = q.Exec(ctx, query, op.ID, cohort, rule, op.Status, op.TotalItems, op.Reason, op.EffectiveDate, op.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create bulk operation: %w", err)
	}

	itemQuery := `
		INSERT INTO bulk_operation_items (
			id, operation_id, position, employee_id, employee_name, changes, status, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i, item := range items {
		changes, err := json.Marshal(item.Changes)
		if err != nil {
			return fmt.Errorf("failed to encode planned changes: %w", err)
		}
		_, err = q.Exec(ctx, itemQuery, item.ID, op.ID, i, item.EmployeeID, item.EmployeeName, changes, item.Status, item.Error)
		if err != nil {
			return fmt.Errorf("failed to create bulk operation item: %w", err)
		}
	}
	return nil
}

func (r *operationRepositoryImpl) GetByID(ctx context.Context, id string) (bulk.Operation, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + operationColumns + ` FROM bulk_operations WHERE id = $1`

	op, err := scanOperation(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bulk.Operation{}, bulk.ErrOperationNotFound
		}
		return bulk.Operation{}, fmt.Errorf("failed to get bulk operation: %w", err)
	}
	return op, nil
}

func (r *operationRepositoryImpl) ListItems(ctx context.Context, operationID string) ([]bulk.Item, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bulk_operations WHERE id = $1)`, operationID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check bulk operation: %w", err)
	}
	if !exists {
		return nil, bulk.ErrOperationNotFound
	}

	query := `
		SELECT id, operation_id, employee_id, employee_name, changes, status, error, applied_at
		FROM bulk_operation_items
		WHERE operation_id = $1
		ORDER BY position
	`
	rows, err := q.Query(ctx, query, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bulk operation items: %w", err)
	}
	defer rows.Close()

	items := []bulk.Item{}
	for rows.Next() {
		var (
			item    bulk.Item
			changes []byte
		)
		if err := rows.Scan(&item.ID, &item.OperationID, &item.EmployeeID, &item.EmployeeName, &changes, &item.Status, &item.Error, &item.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bulk operation item: %w", err)
		}
		if err := json.Unmarshal(changes, &item.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode planned changes: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *operationRepositoryImpl) Start(ctx context.Context, id string, actor string, startedAt time.Time) (bulk.Operation, error) {
	return r.transition(ctx, id, bulk.OperationStatusPreviewed,
		`status = 'running', executed_by = $2, started_at = $3`, actor, startedAt)
}

func (r *operationRepositoryImpl) Finish(ctx context.Context, id string, status bulk.OperationStatus, applied, failed int, errMsg *string, completedAt time.Time) (bulk.Operation, error) {
	return r.transition(ctx, id, bulk.OperationStatusRunning,
		`status = $2, applied_count = $3, failed_count = $4, error = $5, completed_at = $6`,
		status, applied, failed, errMsg, completedAt)
}

func (r *operationRepositoryImpl) CancelPreviewed(ctx context.Context, id string, cancelledAt time.Time) (bulk.Operation, error) {
	return r.transition(ctx, id, bulk.OperationStatusPreviewed,
		`status = 'cancelled', cancel_requested = TRUE, completed_at = $2`, cancelledAt)
}

func (r *operationRepositoryImpl) RequestCancel(ctx context.Context, id string) (bulk.Operation, error) {
	return r.transition(ctx, id, bulk.OperationStatusRunning, `cancel_requested = TRUE`)
}

// transition applies set to the operation only while it is in status from.
// Placeholders in set start at $2; the status guard takes the last one.
func (r *operationRepositoryImpl) transition(ctx context.Context, id string, from bulk.OperationStatus, set string, args ...any) (bulk.Operation, error) {
	q := GetQuerier(ctx, r.db)

	args = append([]any{id}, args...)
	args = append(args, from)
	query := fmt.Sprintf(`
		UPDATE bulk_operations
		SET %s, updated_at = NOW()
		WHERE id = $1 AND status = $%d
		RETURNING %s`, set, len(args), operationColumns)

	op, err := scanOperation(q.QueryRow(ctx, query, args...))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return bulk.Operation{}, fmt.Errorf("failed to update bulk operation: %w", err)
		}
		if _, err := r.GetByID(ctx, id); err != nil {
			return bulk.Operation{}, err
		}
		return bulk.Operation{}, bulk.ErrInvalidStateTransition
	}
	return op, nil
}

func (r *operationRepositoryImpl) UpdateItem(ctx context.Context, item bulk.Item) error {
	q := GetQuerier(ctx, r.db)

	changes, err := json.Marshal(item.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode planned changes: %w", err)
	}

	query := `
		UPDATE bulk_operation_items
		SET changes = $3, status = $4, error = $5, applied_at = $6
		WHERE id = $1 AND operation_id = $2
	`
	tag, err := q.Exec(ctx, query, item.ID, item.OperationID, changes, item.Status, item.Error, item.AppliedAt)
	if err != nil {
		return fmt.Errorf("failed to update bulk operation item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return bulk.ErrOperationNotFound
	}
	return nil
}

func (r *operationRepositoryImpl) ListRunning(ctx context.Context, startedBefore time.Time) ([]bulk.Operation, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + operationColumns + `
		FROM bulk_operations
		WHERE status = 'running' AND started_at < $1
		ORDER BY started_at
	`
	rows, err := q.Query(ctx, query, startedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list running bulk operations: %w", err)
	}
	defer rows.Close()

	ops := []bulk.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bulk operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
