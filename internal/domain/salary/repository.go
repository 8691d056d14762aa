package salary

import "context"

type ComponentRepository interface {
	GetByID(ctx context.Context, id string) (Component, error)
	ListByEmployee(ctx context.Context, employeeID string, activeOnly bool) ([]Component, error)
	// ListActiveByEmployeeIDs returns active components ordered by employee, kind and name.
	ListActiveByEmployeeIDs(ctx context.Context, employeeIDs []string) ([]Component, error)
	Create(ctx context.Context, component Component) (Component, error)
	Update(ctx context.Context, component Component) (Component, error)
}

// ChangeRecordRepository is append-only. The only mutation allowed on an
// existing row is Resolve, and only while the row is pending.
type ChangeRecordRepository interface {
	Append(ctx context.Context, record ChangeRecord) (ChangeRecord, error)
	// Resolve returns ErrRecordAlreadyDecided when the record is no longer pending.
	Resolve(ctx context.Context, id string, resolution Resolution) (ChangeRecord, error)
	GetByID(ctx context.Context, id string) (ChangeRecord, error)
	// List orders by creation time ascending and returns the total match count.
	List(ctx context.Context, filter ChangeRecordFilter) ([]ChangeRecord, int64, error)
}
