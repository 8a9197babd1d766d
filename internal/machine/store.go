// Package machine implements the machine provisioning lifecycle: the
// record store contract, the manager that drives records from
// provisioning to a terminal state, and the paginated query service.
package machine

import (
	"context"
	"errors"

	"vmforge"
)

// Store errors. Adapters translate their engine's failures into these
// sentinels; everything else is treated as a persistence error.
var (
	// ErrDuplicateHostname means the (owner, hostname) pair already
	// exists among non-deleted records. The storage engine's uniqueness
	// constraint raises it; the manager's pre-check only narrows the
	// race window.
	ErrDuplicateHostname = errors.New("hostname already in use for this owner")

	// ErrNotFound means no record exists for the given key.
	ErrNotFound = errors.New("machine not found")

	// ErrNotProvisioning means a terminal transition was attempted on a
	// record that already left the provisioning state. Transitions are
	// one-shot; a record never re-enters provisioning.
	ErrNotProvisioning = errors.New("machine is no longer provisioning")
)

// SortOrder selects the listing order. Creation time descending is the
// service default.
type SortOrder string

const (
	SortCreatedDesc SortOrder = "created_desc"
	SortCreatedAsc  SortOrder = "created_asc"
)

// Transition is a terminal state change applied by reconciliation.
// Construct one with ToRunning or ToFailed.
type Transition struct {
	To      vmforge.Status
	Address string
	Reason  string
}

// ToRunning marks a record as successfully provisioned at address.
func ToRunning(address string) Transition {
	return Transition{To: vmforge.StatusRunning, Address: address}
}

// ToFailed marks a record as failed with a diagnostic reason.
func ToFailed(reason string) Transition {
	return Transition{To: vmforge.StatusFailed, Reason: reason}
}

// Store is the durable keyed storage for machine records.
//
// Implementations must enforce (OwnerID, Hostname) uniqueness across
// non-deleted records atomically at insert time, and must serialize
// concurrent UpdateStatus calls for the same id.
type Store interface {
	// Insert persists a new record. Returns ErrDuplicateHostname when
	// the (owner, hostname) pair is already taken.
	Insert(ctx context.Context, rec vmforge.MachineRecord) error

	// GetByID returns the record with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id string) (vmforge.MachineRecord, error)

	// FindByHostname returns the non-deleted record for (owner,
	// hostname), or ErrNotFound. This is the manager's fast-path
	// idempotency check.
	FindByHostname(ctx context.Context, ownerID, hostname string) (vmforge.MachineRecord, error)

	// UpdateStatus atomically applies a terminal transition to a record
	// still in the provisioning state. Returns ErrNotFound when the id
	// does not exist and ErrNotProvisioning when the record already
	// reached a terminal state.
	UpdateStatus(ctx context.Context, id string, t Transition) error

	// ListByOwner returns one page of an owner's records plus the total
	// count across all pages. Page and pageSize are 1-based positive;
	// a page past the end yields an empty slice, not an error.
	ListByOwner(ctx context.Context, ownerID string, page, pageSize int, order SortOrder) ([]vmforge.MachineRecord, int, error)
}
