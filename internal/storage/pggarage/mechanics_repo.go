package pggarage

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// EnsureMechanic resolves a mechanic by case-insensitive name, creating the
// row with the supplied casing on first reference. On conflict the existing
// row wins, so the first writer's casing is preserved.
func (s *Storage) EnsureMechanic(ctx context.Context, name string) (uint64, error) {
	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO mechanics (name, created_at)
VALUES ($1, $2)
ON CONFLICT (LOWER(name))
DO UPDATE SET name = mechanics.name
RETURNING id
`, name, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "ensure mechanic")
	}
	return id, nil
}
