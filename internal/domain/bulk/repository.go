package bulk

import (
	"context"
	"time"
)

type OperationRepository interface {
	// Create stores the operation together with its items.
	Create(ctx context.Context, operation Operation, items []Item) error
	GetByID(ctx context.Context, id string) (Operation, error)
	ListItems(ctx context.Context, operationID string) ([]Item, error)

	// Start moves a previewed operation to running.
	Start(ctx context.Context, id string, actor string, startedAt time.Time) (Operation, error)
	// Finish stores the terminal status of a running operation.
	Finish(ctx context.Context, id string, status OperationStatus, applied, failed int, errMsg *string, completedAt time.Time) (Operation, error)
	// CancelPreviewed cancels an operation that never started.
	CancelPreviewed(ctx context.Context, id string, cancelledAt time.Time) (Operation, error)
	// RequestCancel flags a running operation; the executor stops scheduling new items.
	RequestCancel(ctx context.Context, id string) (Operation, error)

	UpdateItem(ctx context.Context, item Item) error

	// ListRunning returns running operations started before startedBefore, oldest first.
	ListRunning(ctx context.Context, startedBefore time.Time) ([]Operation, error)
}
