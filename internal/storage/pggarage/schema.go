package pggarage

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS vehicles (
  id BIGSERIAL PRIMARY KEY,
  plate TEXT NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS mechanics (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		// Case-insensitive uniqueness: "Joao" and "joao" must collapse to one
		// row regardless of which casing arrives first.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_mechanics_name_ci ON mechanics (LOWER(name))`,
		`
CREATE TABLE IF NOT EXISTS services (
  id BIGSERIAL PRIMARY KEY,
  vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
  mechanic_id BIGINT NULL REFERENCES mechanics(id),
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  started_at TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NULL,
  signature_url TEXT NULL,
  signer_name TEXT NULL,
  signed_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		// A service stays "open" until it is signed: non-ENTREGUE rows are
		// never signed, ENTREGUE rows close on signature. At most one open
		// service per vehicle; concurrent creates race on this index, not on
		// an application-level check.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_services_open_per_vehicle ON services (vehicle_id) WHERE signed_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_services_vehicle_finished_at ON services (vehicle_id, finished_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_services_open_started_at ON services (started_at DESC) WHERE signed_at IS NULL`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
