package messages

import "time"

// ServiceUpdated is published after every successful mutation of a service
// row, keyed by plate so per-vehicle ordering is preserved per partition.
type ServiceUpdated struct {
	ServiceID uint64    `json:"service_id"`
	VehicleID uint64    `json:"vehicle_id"`
	Plate     string    `json:"plate"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`

	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Signed     bool       `json:"signed,omitempty"`
}
