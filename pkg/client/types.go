package client

import "time"

// CreateMachineRequest is the POST /api/machines payload.
type CreateMachineRequest struct {
	Hostname   string `json:"hostname"`
	Password   string `json:"password"`
	CPUCores   int    `json:"cpuCores"`
	MemorySize int    `json:"memorySize"`
	DiskSize   int    `json:"diskSize"`
	OS         string `json:"os"`
}

// MachineSummary is the outward view of one machine. NetworkAddress and
// FailureReason are null until provisioning resolves, and at most one is
// ever set. The provisioning secret never appears here.
type MachineSummary struct {
	ID             string    `json:"id"`
	Hostname       string    `json:"hostname"`
	CPUCores       int       `json:"cpuCores"`
	MemorySize     int       `json:"memorySize"`
	DiskSize       int       `json:"diskSize"`
	OS             string    `json:"os"`
	Status         string    `json:"status"`
	NetworkAddress *string   `json:"networkAddress"`
	FailureReason  *string   `json:"failureReason"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Pagination is the listing envelope.
type Pagination struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	Total           int  `json:"total"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// MachineList is the GET /api/machines response.
type MachineList struct {
	Data       []MachineSummary `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
