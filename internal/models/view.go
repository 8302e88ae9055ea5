package models

import "time"

// ServiceView is one side of the per-plate projection, flattened with the
// mechanic name resolved.
type ServiceView struct {
	ServiceID    uint64     `json:"service_id"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	Mechanic     *string    `json:"mechanic"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	SignatureURL *string    `json:"signature_url"`
	SignerName   *string    `json:"signer_name"`
	SignedAt     *time.Time `json:"signed_at"`
}

// PlateView pairs the open service (if any) with the most recently closed
// one. Recomputed on every query; never stored.
type PlateView struct {
	Plate   string       `json:"plate"`
	Current *ServiceView `json:"current"`
	Last    *ServiceView `json:"last"`
}
