package pggarage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/PlateWorks/ServiceBox/internal/models"
)

const serviceColumns = `
  id, vehicle_id, mechanic_id, description, status,
  started_at, finished_at,
  signature_url, signer_name, signed_at,
  created_at`

type ServiceCreate struct {
	VehicleID   uint64
	MechanicID  *uint64
	Description string
	Status      models.Status
	StartedAt   time.Time
}

// ServiceUpdate is the storage-level patch. Set* flags mirror the three-way
// patch semantics: an unset field is not mentioned in the UPDATE at all.
type ServiceUpdate struct {
	Status *models.Status

	SetMechanic bool
	MechanicID  *uint64

	SetDescription bool
	Description    *string

	SetStartedAt bool
	StartedAt    *time.Time

	SetFinishedAt bool
	FinishedAt    *time.Time

	// AutoFinish stamps finished_at when the row has none yet; used when the
	// service reaches the terminal status without an explicit finish time.
	AutoFinish *time.Time
}

func (s *Storage) CreateService(ctx context.Context, in ServiceCreate) (*models.Service, error) {
	row := s.db.QueryRow(ctx, `
INSERT INTO services (vehicle_id, mechanic_id, description, status, started_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING`+serviceColumns,
		in.VehicleID, in.MechanicID, in.Description, string(in.Status), in.StartedAt.UTC(), time.Now().UTC())

	svc, err := scanService(row)
	if err != nil {
		if isOpenServiceConflict(err) {
			return nil, models.ErrDuplicateOpenService
		}
		return nil, errors.Wrap(err, "insert service")
	}
	return svc, nil
}

func (s *Storage) GetService(ctx context.Context, id uint64) (*models.Service, error) {
	row := s.db.QueryRow(ctx, `SELECT`+serviceColumns+` FROM services WHERE id = $1`, id)
	svc, err := scanService(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrServiceNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select service")
	}
	return svc, nil
}

// PatchService applies a partial update to an open service. The WHERE guard
// rejects rows that already reached the terminal status, so a concurrent
// delivery cannot be overwritten; zero affected rows is classified by
// re-reading the row.
func (s *Storage) PatchService(ctx context.Context, id uint64, upd ServiceUpdate) (*models.Service, error) {
	sets := make([]string, 0, 6)
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.SetMechanic {
		add("mechanic_id", upd.MechanicID)
	}
	if upd.SetDescription {
		desc := ""
		if upd.Description != nil {
			desc = *upd.Description
		}
		add("description", desc)
	}
	if upd.SetStartedAt && upd.StartedAt != nil {
		add("started_at", upd.StartedAt.UTC())
	}
	if upd.SetFinishedAt {
		add("finished_at", upd.FinishedAt)
	} else if upd.AutoFinish != nil {
		args = append(args, upd.AutoFinish.UTC())
		sets = append(sets, fmt.Sprintf("finished_at = COALESCE(finished_at, $%d)", len(args)))
	}

	if len(sets) == 0 {
		cur, err := s.GetService(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.Status.Terminal() {
			return nil, models.ErrServiceClosed
		}
		return cur, nil
	}

	q := `
UPDATE services
SET ` + strings.Join(sets, ", ") + `
WHERE id = $1 AND status <> '` + string(models.StatusEntregue) + `'
RETURNING` + serviceColumns

	svc, err := scanService(s.db.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		cur, getErr := s.GetService(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if cur.Status.Terminal() {
			return nil, models.ErrServiceClosed
		}
		return nil, models.ErrServiceNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "update service")
	}
	return svc, nil
}

// AttachSignature records the signature metadata exactly once. The guard
// makes the write an atomic idempotent-reject: a second attempt, or an
// attempt on a non-delivered row, affects nothing and is classified below.
func (s *Storage) AttachSignature(ctx context.Context, id uint64, url string, signerName *string, signedAt time.Time) (*models.Service, error) {
	row := s.db.QueryRow(ctx, `
UPDATE services
SET signature_url = $2, signer_name = $3, signed_at = $4
WHERE id = $1 AND status = $5 AND signed_at IS NULL
RETURNING`+serviceColumns,
		id, url, signerName, signedAt.UTC(), string(models.StatusEntregue))

	svc, err := scanService(row)
	if errors.Is(err, pgx.ErrNoRows) {
		cur, getErr := s.GetService(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if !cur.Status.Terminal() {
			return nil, models.ErrServiceNotDelivered
		}
		return nil, models.ErrAlreadySigned
	}
	if err != nil {
		return nil, errors.Wrap(err, "attach signature")
	}
	return svc, nil
}

func scanService(row pgx.Row) (*models.Service, error) {
	var svc models.Service
	var status string
	if err := row.Scan(
		&svc.ID, &svc.VehicleID, &svc.MechanicID, &svc.Description, &status,
		&svc.StartedAt, &svc.FinishedAt,
		&svc.SignatureURL, &svc.SignerName, &svc.SignedAt,
		&svc.CreatedAt,
	); err != nil {
		return nil, err
	}
	svc.Status = models.Status(status)
	return &svc, nil
}

func isOpenServiceConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == "uq_services_open_per_vehicle"
}
