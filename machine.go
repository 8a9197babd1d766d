// Package vmforge holds the domain types shared across the service:
// machine records, their lifecycle states, and the outward-facing
// summary shape.
package vmforge

import "time"

// Status is the lifecycle state of a machine record.
//
// A record is created as StatusProvisioning and is moved exactly once to
// StatusRunning or StatusFailed by the lifecycle manager. StatusStopped
// and StatusDeleted are reachable only through operator actions outside
// the provisioning path; deletion is a status value, never a row removal.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusRunning      Status = "running"
	StatusStopped      Status = "stopped"
	StatusFailed       Status = "failed"
	StatusDeleted      Status = "deleted"
)

// Terminal reports whether the status is past the provisioning phase.
func (s Status) Terminal() bool {
	return s != StatusProvisioning
}

// MachineSpec is the immutable resource request captured at creation.
type MachineSpec struct {
	Hostname string
	Password string // stored as supplied, never serialized outward
	CPUCores int
	MemoryGB int
	DiskGB   int
	OS       string
}

// MachineRecord is a row in the machines table. OwnerID scopes every
// lookup; (OwnerID, Hostname) is unique among non-deleted records.
type MachineRecord struct {
	ID             string
	OwnerID        string
	Spec           MachineSpec
	Status         Status
	NetworkAddress string // set once, on successful provisioning
	FailureReason  string // set once, on failed provisioning
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Summary is the outward-facing view of a record. It carries everything
// a caller may see; the provisioning secret is deliberately absent.
func (r MachineRecord) Summary() MachineSummary {
	return MachineSummary{
		ID:             r.ID,
		Hostname:       r.Spec.Hostname,
		CPUCores:       r.Spec.CPUCores,
		MemoryGB:       r.Spec.MemoryGB,
		DiskGB:         r.Spec.DiskGB,
		OS:             r.Spec.OS,
		Status:         r.Status,
		NetworkAddress: r.NetworkAddress,
		FailureReason:  r.FailureReason,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// MachineSummary is what create and list operations return.
type MachineSummary struct {
	ID             string
	Hostname       string
	CPUCores       int
	MemoryGB       int
	DiskGB         int
	OS             string
	Status         Status
	NetworkAddress string
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
