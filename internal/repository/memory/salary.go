package memory

import (
	"context"
	"sort"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
)

type componentRepository struct {
	store *Store
}

func NewComponentRepository(store *Store) salary.ComponentRepository {
	return &componentRepository{store: store}
}

func (r *componentRepository) GetByID(ctx context.Context, id string) (salary.Component, error) {
	defer r.store.lock(ctx)()

	c, ok := r.store.components[id]
	if !ok {
		return salary.Component{}, salary.ErrComponentNotFound
	}
	return c, nil
}

func (r *componentRepository) ListByEmployee(ctx context.Context, employeeID string, activeOnly bool) ([]salary.Component, error) {
	defer r.store.lock(ctx)()

	var out []salary.Component
	for _, c := range r.store.components {
		if c.EmployeeID == employeeID && (!activeOnly || c.IsActive) {
			out = append(out, c)
		}
	}
	sortComponents(out)
	return out, nil
}

func (r *componentRepository) ListActiveByEmployeeIDs(ctx context.Context, employeeIDs []string) ([]salary.Component, error) {
	defer r.store.lock(ctx)()

	wanted := make(map[string]struct{}, len(employeeIDs))
	for _, id := range employeeIDs {
		wanted[id] = struct{}{}
	}

	var out []salary.Component
	for _, c := range r.store.components {
		if _, ok := wanted[c.EmployeeID]; ok && c.IsActive {
			out = append(out, c)
		}
	}
	sortComponents(out)
	return out, nil
}

func (r *componentRepository) Create(ctx context.Context, component salary.Component) (salary.Component, error) {
	defer r.store.lock(ctx)()

	if err := r.checkSingleBasicSalary(component); err != nil {
		return salary.Component{}, err
	}
	now := r.store.now()
	component.CreatedAt = now
	component.UpdatedAt = now
	r.store.components[component.ID] = component
	return component, nil
}

func (r *componentRepository) Update(ctx context.Context, component salary.Component) (salary.Component, error) {
	defer r.store.lock(ctx)()

	existing, ok := r.store.components[component.ID]
	if !ok {
		return salary.Component{}, salary.ErrComponentNotFound
	}
	existing.Amount = component.Amount
	existing.IsActive = component.IsActive
	existing.Name = component.Name
	if err := r.checkSingleBasicSalary(existing); err != nil {
		return salary.Component{}, err
	}
	existing.UpdatedAt = r.store.now()
	r.store.components[component.ID] = existing
	return existing, nil
}

// checkSingleBasicSalary mirrors the partial unique index on salary_components.
func (r *componentRepository) checkSingleBasicSalary(component salary.Component) error {
	if component.Kind != salary.ComponentKindBasicSalary || !component.IsActive {
		return nil
	}
	for _, c := range r.store.components {
		if c.ID != component.ID && c.EmployeeID == component.EmployeeID &&
			c.Kind == salary.ComponentKindBasicSalary && c.IsActive {
			return salary.ErrBasicSalaryExists
		}
	}
	return nil
}

func sortComponents(list []salary.Component) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

type changeRecordRepository struct {
	store *Store
}

func NewChangeRecordRepository(store *Store) salary.ChangeRecordRepository {
	return &changeRecordRepository{store: store}
}

func (r *changeRecordRepository) Append(ctx context.Context, record salary.ChangeRecord) (salary.ChangeRecord, error) {
	defer r.store.lock(ctx)()

	record.CreatedAt = r.store.now()
	r.store.changes = append(r.store.changes, record)
	return record, nil
}

func (r *changeRecordRepository) Resolve(ctx context.Context, id string, res salary.Resolution) (salary.ChangeRecord, error) {
	defer r.store.lock(ctx)()

	for i, rec := range r.store.changes {
		if rec.ID != id {
			continue
		}
		if !rec.IsPending() {
			return salary.ChangeRecord{}, salary.ErrRecordAlreadyDecided
		}
		decidedAt := res.DecidedAt
		decidedBy := res.DecidedBy
		rec.ApprovalStatus = res.Status
		rec.DecidedBy = &decidedBy
		rec.DecidedAt = &decidedAt
		rec.DecisionNotes = res.Notes
		if res.ComponentID != nil {
			rec.ComponentID = res.ComponentID
		}
		if res.PreviousAmount != nil {
			rec.PreviousAmount = res.PreviousAmount
		}
		if res.PreviousActive != nil {
			rec.PreviousActive = res.PreviousActive
		}
		r.store.changes[i] = rec
		return rec, nil
	}
	return salary.ChangeRecord{}, salary.ErrChangeRecordNotFound
}

func (r *changeRecordRepository) GetByID(ctx context.Context, id string) (salary.ChangeRecord, error) {
	defer r.store.lock(ctx)()

	for _, rec := range r.store.changes {
		if rec.ID == id {
			return rec, nil
		}
	}
	return salary.ChangeRecord{}, salary.ErrChangeRecordNotFound
}

func (r *changeRecordRepository) List(ctx context.Context, filter salary.ChangeRecordFilter) ([]salary.ChangeRecord, int64, error) {
	defer r.store.lock(ctx)()

	var matched []salary.ChangeRecord
	for _, rec := range r.store.changes {
		if matchesChangeFilter(rec, filter) {
			matched = append(matched, rec)
		}
	}
	total := int64(len(matched))

	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filter.Limit
		if start >= len(matched) {
			return []salary.ChangeRecord{}, total, nil
		}
		end := start + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func matchesChangeFilter(rec salary.ChangeRecord, f salary.ChangeRecordFilter) bool {
	if f.EmployeeID != nil && rec.EmployeeID != *f.EmployeeID {
		return false
	}
	if f.ComponentID != nil && (rec.ComponentID == nil || *rec.ComponentID != *f.ComponentID) {
		return false
	}
	if f.Status != nil && rec.ApprovalStatus != *f.Status {
		return false
	}
	if f.Source != nil && rec.Source != *f.Source {
		return false
	}
	if f.SourceRefID != nil && (rec.SourceRefID == nil || *rec.SourceRefID != *f.SourceRefID) {
		return false
	}
	if f.From != nil && rec.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !rec.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}
