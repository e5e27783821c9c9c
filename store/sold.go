package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// MarkSold flips available to false if it is still true. The product row is
// locked with FOR UPDATE, so a concurrent caller blocks until this
// transaction ends and then observes the flipped value. Unknown ids are a
// no-op.
func (s *PostgresStore) MarkSold(ctx context.Context, id string) (bool, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin mark sold")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var available bool
	err = tx.GetContext(ctx, &available, `SELECT available FROM products WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "lock product %s", id)
	}
	if !available {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE products SET available = FALSE WHERE id = $1`, id); err != nil {
		return false, errors.Wrapf(err, "mark product %s sold", id)
	}
	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit mark sold")
	}
	committed = true
	return true, nil
}
