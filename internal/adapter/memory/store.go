// Package memory is an in-memory machine.Store. It backs unit tests and
// throwaway dev daemons; durability comes from the sqlite adapter.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"vmforge"
	"vmforge/internal/machine"
)

// Store keeps machine records in a mutex-guarded map. All invariants
// the sqlite adapter enforces through its schema are enforced here in
// code: (owner, hostname) uniqueness among non-deleted records and
// one-shot terminal transitions.
type Store struct {
	mu   sync.RWMutex
	recs map[string]vmforge.MachineRecord

	// Error injection hooks for failure-path tests. When set, the
	// corresponding operation returns the error instead of running.
	InsertErr error
	UpdateErr error
	LookupErr error
}

// New returns an empty Store.
func New() *Store {
	return &Store{recs: make(map[string]vmforge.MachineRecord)}
}

func (s *Store) Insert(ctx context.Context, rec vmforge.MachineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertErr != nil {
		return s.InsertErr
	}
	for _, existing := range s.recs {
		if existing.OwnerID == rec.OwnerID &&
			existing.Spec.Hostname == rec.Spec.Hostname &&
			existing.Status != vmforge.StatusDeleted {
			return machine.ErrDuplicateHostname
		}
	}
	s.recs[rec.ID] = rec
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (vmforge.MachineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.LookupErr != nil {
		return vmforge.MachineRecord{}, s.LookupErr
	}
	rec, ok := s.recs[id]
	if !ok {
		return vmforge.MachineRecord{}, machine.ErrNotFound
	}
	return rec, nil
}

func (s *Store) FindByHostname(ctx context.Context, ownerID, hostname string) (vmforge.MachineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.LookupErr != nil {
		return vmforge.MachineRecord{}, s.LookupErr
	}
	for _, rec := range s.recs {
		if rec.OwnerID == ownerID && rec.Spec.Hostname == hostname && rec.Status != vmforge.StatusDeleted {
			return rec, nil
		}
	}
	return vmforge.MachineRecord{}, machine.ErrNotFound
}

func (s *Store) UpdateStatus(ctx context.Context, id string, t machine.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	rec, ok := s.recs[id]
	if !ok {
		return machine.ErrNotFound
	}
	if rec.Status != vmforge.StatusProvisioning {
		return machine.ErrNotProvisioning
	}

	rec.Status = t.To
	rec.NetworkAddress = t.Address
	rec.FailureReason = t.Reason
	rec.UpdatedAt = time.Now().UTC()
	s.recs[id] = rec
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string, page, pageSize int, order machine.SortOrder) ([]vmforge.MachineRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.LookupErr != nil {
		return nil, 0, s.LookupErr
	}

	var all []vmforge.MachineRecord
	for _, rec := range s.recs {
		if rec.OwnerID == ownerID {
			all = append(all, rec)
		}
	}
	slices.SortFunc(all, func(a, b vmforge.MachineRecord) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if order == machine.SortCreatedDesc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return []vmforge.MachineRecord{}, total, nil
	}
	end := min(start+pageSize, total)
	return all[start:end], total, nil
}
