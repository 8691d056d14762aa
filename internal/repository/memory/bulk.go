package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/bulk"
)

type operationRepository struct {
	store *Store
}

func NewOperationRepository(store *Store) bulk.OperationRepository {
	return &operationRepository{store: store}
}

func (r *operationRepository) Create(ctx context.Context, operation bulk.Operation, items []bulk.Item) error {
	defer r.store.lock(ctx)()

	now := r.store.now()
	operation.CreatedAt = now
	operation.UpdatedAt = now
	r.store.operations[operation.ID] = operation
	r.store.operationItems[operation.ID] = append([]bulk.Item(nil), items...)
	return nil
}

func (r *operationRepository) GetByID(ctx context.Context, id string) (bulk.Operation, error) {
	defer r.store.lock(ctx)()

	op, ok := r.store.operations[id]
	if !ok {
		return bulk.Operation{}, bulk.ErrOperationNotFound
	}
	return op, nil
}

func (r *operationRepository) ListItems(ctx context.Context, operationID string) ([]bulk.Item, error) {
	defer r.store.lock(ctx)()

	if _, ok := r.store.operations[operationID]; !ok {
		return nil, bulk.ErrOperationNotFound
	}
	return append([]bulk.Item{}, r.store.operationItems[operationID]...), nil
}

// transition applies fn to the operation when it is in status from.
func (r *operationRepository) transition(id string, from bulk.OperationStatus, fn func(op *bulk.Operation)) (bulk.Operation, error) {
	op, ok := r.store.operations[id]
	if !ok {
		return bulk.Operation{}, bulk.ErrOperationNotFound
	}
	if op.Status != from {
		return bulk.Operation{}, bulk.ErrInvalidStateTransition
	}
	fn(&op)
	op.UpdatedAt = r.store.now()
	r.store.operations[id] = op
	return op, nil
}

func (r *operationRepository) Start(ctx context.Context, id string, actor string, startedAt time.Time) (bulk.Operation, error) {
	defer r.store.lock(ctx)()

	return r.transition(id, bulk.OperationStatusPreviewed, func(op *bulk.Operation) {
		op.Status = bulk.OperationStatusRunning
		op.ExecutedBy = &actor
		op.StartedAt = &startedAt
	})
}

func (r *operationRepository) Finish(ctx context.Context, id string, status bulk.OperationStatus, applied, failed int, errMsg *string, completedAt time.Time) (bulk.Operation, error) {
	defer r.store.lock(ctx)()

	return r.transition(id, bulk.OperationStatusRunning, func(op *bulk.Operation) {
		op.Status = status
		op.AppliedCount = applied
		op.FailedCount = failed
		op.Error = errMsg
		op.CompletedAt = &completedAt
	})
}

func (r *operationRepository) CancelPreviewed(ctx context.Context, id string, cancelledAt time.Time) (bulk.Operation, error) {
	defer r.store.lock(ctx)()

	return r.transition(id, bulk.OperationStatusPreviewed, func(op *bulk.Operation) {
		op.Status = bulk.OperationStatusCancelled
		op.CancelRequested = true
		op.CompletedAt = &cancelledAt
	})
}

func (r *operationRepository) RequestCancel(ctx context.Context, id string) (bulk.Operation, error) {
	defer r.store.lock(ctx)()

	return r.transition(id, bulk.OperationStatusRunning, func(op *bulk.Operation) {
		op.CancelRequested = true
	})
}

func (r *operationRepository) UpdateItem(ctx context.Context, item bulk.Item) error {
	defer r.store.lock(ctx)()

	items := r.store.operationItems[item.OperationID]
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			return nil
		}
	}
	return bulk.ErrOperationNotFound
}

func (r *operationRepository) ListRunning(ctx context.Context, startedBefore time.Time) ([]bulk.Operation, error) {
	defer r.store.lock(ctx)()

	var ops []bulk.Operation
	for _, op := range r.store.operations {
		if op.Status == bulk.OperationStatusRunning && op.StartedAt != nil && op.StartedAt.Before(startedBefore) {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].StartedAt.Before(*ops[j].StartedAt) })
	return ops, nil
}
