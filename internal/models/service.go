package models

import "time"

type Vehicle struct {
	ID        uint64
	Plate     string
	CreatedAt time.Time
}

type Mechanic struct {
	ID        uint64
	Name      string
	CreatedAt time.Time
}

type Service struct {
	ID           uint64
	VehicleID    uint64
	MechanicID   *uint64
	Description  string
	Status       Status
	StartedAt    time.Time
	FinishedAt   *time.Time
	SignatureURL *string
	SignerName   *string
	SignedAt     *time.Time
	CreatedAt    time.Time
}

// Open reports whether the service still blocks a new one for the same
// vehicle: non-terminal, or delivered but not yet signed.
func (s *Service) Open() bool {
	return !s.Status.Terminal() || s.SignedAt == nil
}

type ServiceCreateInput struct {
	Plate        string
	Status       Status
	MechanicName *string
	Description  *string
	StartedAt    *time.Time
}
