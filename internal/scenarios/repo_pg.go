package scenarios

import (
	"context"
	"database/sql"
	"errors"

	"feedback-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres. All calls go through the resilient
// executor so transient pool failures are retried.
type PGRepo struct {
	Exec *db.Executor
}

// Create inserts a new scenario.
func (r *PGRepo) Create(ctx context.Context, scenario Scenario) error {
	const query = `
INSERT INTO scenarios (id, owner_id, title, created_at)
VALUES ($1, $2, $3, $4)`
	return r.Exec.Do(ctx, func(sqlDB *sql.DB) error {
		_, err := sqlDB.ExecContext(ctx, query,
			scenario.ID,
			scenario.OwnerID,
			scenario.Title,
			scenario.CreatedAt,
		)
		return err
	})
}

// GetByID returns a scenario by ID.
func (r *PGRepo) GetByID(ctx context.Context, scenarioID string) (Scenario, error) {
	const query = `
SELECT id, owner_id, title, created_at
FROM scenarios
WHERE id = $1
LIMIT 1`
	var s Scenario
	err := r.Exec.Do(ctx, func(sqlDB *sql.DB) error {
		err := sqlDB.QueryRowContext(ctx, query, scenarioID).Scan(
			&s.ID,
			&s.OwnerID,
			&s.Title,
			&s.CreatedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// ListByOwner lists scenarios for a principal, newest first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string) ([]Scenario, error) {
	const query = `
SELECT id, owner_id, title, created_at
FROM scenarios
WHERE owner_id = $1
ORDER BY created_at DESC`
	var out []Scenario
	err := r.Exec.Do(ctx, func(sqlDB *sql.DB) error {
		rows, err := sqlDB.QueryContext(ctx, query, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var s Scenario
			if err := rows.Scan(&s.ID, &s.OwnerID, &s.Title, &s.CreatedAt); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a scenario row. Cached items and results for the scenario
// are cleared separately before the row is dropped.
func (r *PGRepo) Delete(ctx context.Context, scenarioID string) error {
	const query = `DELETE FROM scenarios WHERE id = $1`
	return r.Exec.Do(ctx, func(sqlDB *sql.DB) error {
		res, err := sqlDB.ExecContext(ctx, query, scenarioID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

var _ Repo = (*PGRepo)(nil)
