package pggarage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/PlateWorks/ServiceBox/internal/models"
)

// The current-and-last projection, computed fresh per query. "cur" is the
// single unsigned service (the partial unique index guarantees at most one),
// "prev" the most recently finished signed delivery.
const viewSelect = `
SELECT
  v.plate,
  cur.id, cur.description, cur.status, cm.name,
  cur.started_at, cur.finished_at, cur.signature_url, cur.signer_name, cur.signed_at,
  prev.id, prev.description, prev.status, pm.name,
  prev.started_at, prev.finished_at, prev.signature_url, prev.signer_name, prev.signed_at
FROM vehicles v
LEFT JOIN LATERAL (
  SELECT * FROM services s
  WHERE s.vehicle_id = v.id AND s.signed_at IS NULL
  LIMIT 1
) cur ON true
LEFT JOIN mechanics cm ON cm.id = cur.mechanic_id
LEFT JOIN LATERAL (
  SELECT * FROM services s
  WHERE s.vehicle_id = v.id AND s.status = 'ENTREGUE' AND s.signed_at IS NOT NULL
  ORDER BY s.finished_at DESC NULLS LAST
  LIMIT 1
) prev ON true
LEFT JOIN mechanics pm ON pm.id = prev.mechanic_id
`

// QueryByPlate returns the projection for one plate, or nil when the vehicle
// was never referenced. An unknown plate is not an error.
func (s *Storage) QueryByPlate(ctx context.Context, plate string) (*models.PlateView, error) {
	row := s.db.QueryRow(ctx, viewSelect+`WHERE v.plate = $1`, plate)
	view, err := scanPlateView(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select plate view")
	}
	return view, nil
}

// QueryOpenAcrossFleet lists every vehicle with a current service, most
// recently started first.
func (s *Storage) QueryOpenAcrossFleet(ctx context.Context) ([]*models.PlateView, error) {
	rows, err := s.db.Query(ctx, viewSelect+`
WHERE cur.id IS NOT NULL
ORDER BY cur.started_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "select open fleet")
	}
	defer rows.Close()

	var out []*models.PlateView
	for rows.Next() {
		view, err := scanPlateView(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan open fleet row")
		}
		out = append(out, view)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanPlateView(row pgx.Row) (*models.PlateView, error) {
	var (
		view models.PlateView
		cur  nullableServiceView
		prev nullableServiceView
	)
	if err := row.Scan(
		&view.Plate,
		&cur.ID, &cur.Description, &cur.Status, &cur.Mechanic,
		&cur.StartedAt, &cur.FinishedAt, &cur.SignatureURL, &cur.SignerName, &cur.SignedAt,
		&prev.ID, &prev.Description, &prev.Status, &prev.Mechanic,
		&prev.StartedAt, &prev.FinishedAt, &prev.SignatureURL, &prev.SignerName, &prev.SignedAt,
	); err != nil {
		return nil, err
	}
	view.Current = cur.toView()
	view.Last = prev.toView()
	return &view, nil
}

type nullableServiceView struct {
	ID           *uint64
	Description  *string
	Status       *string
	Mechanic     *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
	SignatureURL *string
	SignerName   *string
	SignedAt     *time.Time
}

func (n nullableServiceView) toView() *models.ServiceView {
	if n.ID == nil {
		return nil
	}
	v := &models.ServiceView{
		ServiceID:    *n.ID,
		Mechanic:     n.Mechanic,
		FinishedAt:   n.FinishedAt,
		SignatureURL: n.SignatureURL,
		SignerName:   n.SignerName,
		SignedAt:     n.SignedAt,
	}
	if n.Description != nil {
		v.Description = *n.Description
	}
	if n.Status != nil {
		v.Status = models.Status(*n.Status)
	}
	if n.StartedAt != nil {
		v.StartedAt = *n.StartedAt
	}
	return v
}
