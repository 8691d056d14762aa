package bulk

import (
	"context"
	"time"
)

type BulkService interface {
	// Preview computes and stores the planned changes. No salary component is written.
	Preview(ctx context.Context, req PreviewRequest) (OperationDetail, error)
	// Execute applies a previewed operation item by item. onProgress may be nil.
	Execute(ctx context.Context, req ExecuteRequest, onProgress func(Progress)) (Result, error)
	Cancel(ctx context.Context, req ExecuteRequest) (Operation, error)
	Get(ctx context.Context, id string) (OperationDetail, error)
	// RecoverInterrupted finishes operations left running by an executor that
	// stopped before completing them. Items never processed stay pending.
	RecoverInterrupted(ctx context.Context, staleAfter time.Duration) ([]Operation, error)
}
