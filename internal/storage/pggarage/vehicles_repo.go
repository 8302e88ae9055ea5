package pggarage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/PlateWorks/ServiceBox/internal/models"
)

// EnsureVehicle is an atomic insert-or-fetch keyed on the unique plate. The
// no-op DO UPDATE makes RETURNING yield the id on conflict as well, so a
// concurrent first-time resolution of the same plate never duplicates.
func (s *Storage) EnsureVehicle(ctx context.Context, plate string) (uint64, error) {
	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO vehicles (plate, created_at)
VALUES ($1, $2)
ON CONFLICT (plate)
DO UPDATE SET plate = excluded.plate
RETURNING id
`, plate, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "ensure vehicle")
	}
	return id, nil
}

func (s *Storage) GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.db.QueryRow(ctx, `SELECT id, plate, created_at FROM vehicles WHERE id = $1`, id).
		Scan(&v.ID, &v.Plate, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Errorf("vehicle %d not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select vehicle")
	}
	return &v, nil
}
