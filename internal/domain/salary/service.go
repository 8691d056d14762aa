package salary

import "context"

// ComponentService applies direct edits. Every edit is recorded in the ledger
// as auto_approved in the same transaction as the component write.
type ComponentService interface {
	CreateComponent(ctx context.Context, req CreateComponentRequest) (Component, error)
	UpdateComponent(ctx context.Context, req UpdateComponentRequest) (Component, error)
	DeactivateComponent(ctx context.Context, req DeactivateComponentRequest) (Component, error)
	ListComponents(ctx context.Context, employeeID string, activeOnly bool) ([]Component, error)
}

// ApprovalService runs the propose/decide workflow for salary changes.
type ApprovalService interface {
	// Propose stores one pending record per change without touching live components.
	Propose(ctx context.Context, req ProposeChangeRequest) ([]ChangeRecord, error)
	// Decide resolves all records or none of them.
	Decide(ctx context.Context, req DecideChangeRequest) ([]ChangeRecord, error)
}

// LedgerService is the only write path into the salary change history.
type LedgerService interface {
	Append(ctx context.Context, record ChangeRecord) (ChangeRecord, error)
	Resolve(ctx context.Context, id string, resolution Resolution) (ChangeRecord, error)
	// Announce publishes committed records. Failures are logged, not returned.
	Announce(ctx context.Context, records ...ChangeRecord)
	Get(ctx context.Context, id string) (ChangeRecord, error)
	List(ctx context.Context, req ListChangeRecordsRequest) (ListChangeRecordResponse, error)
	// Export returns every matching record ordered by creation time, for compliance reporting.
	Export(ctx context.Context, req ListChangeRecordsRequest) ([]ChangeRecord, error)
}
