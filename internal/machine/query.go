package machine

import (
	"context"
	"fmt"

	"vmforge"
)

// Page is one page of an owner's machines plus the pagination envelope.
type Page struct {
	Items       []vmforge.MachineSummary
	Page        int
	PageSize    int
	Total       int
	TotalPages  int
	HasNext     bool
	HasPrevious bool
}

// Query serves paginated listings from the record store.
type Query struct {
	store Store
}

// NewQuery returns a query service over store.
func NewQuery(store Store) *Query {
	return &Query{store: store}
}

// Get returns one of the owner's machines by id. A record belonging to
// a different owner is reported as ErrNotFound rather than revealed.
func (q *Query) Get(ctx context.Context, ownerID, id string) (vmforge.MachineSummary, error) {
	rec, err := q.store.GetByID(ctx, id)
	if err != nil {
		return vmforge.MachineSummary{}, fmt.Errorf("get machine: %w", err)
	}
	if rec.OwnerID != ownerID {
		return vmforge.MachineSummary{}, fmt.Errorf("get machine: %w", ErrNotFound)
	}
	return rec.Summary(), nil
}

// List returns the owner's machines ordered by creation time descending.
// Page and pageSize must already be positive and clamped by the caller's
// boundary layer; the core trusts its input. A page past the end yields
// an empty Items slice.
func (q *Query) List(ctx context.Context, ownerID string, page, pageSize int) (Page, error) {
	recs, total, err := q.store.ListByOwner(ctx, ownerID, page, pageSize, SortCreatedDesc)
	if err != nil {
		return Page{}, fmt.Errorf("list machines: %w", err)
	}

	items := make([]vmforge.MachineSummary, len(recs))
	for i, rec := range recs {
		items[i] = rec.Summary()
	}

	totalPages := (total + pageSize - 1) / pageSize
	return Page{
		Items:       items,
		Page:        page,
		PageSize:    pageSize,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}, nil
}
