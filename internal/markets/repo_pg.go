package markets

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new market.
func (r *PGRepo) Create(ctx context.Context, market Market) error {
	const query = `
INSERT INTO markets (id, question, description, category, closes_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query,
		market.ID,
		market.Question,
		market.Description,
		market.Category,
		market.ClosesAt,
		market.CreatedAt,
	)
	return err
}

// GetByID returns a market by ID.
func (r *PGRepo) GetByID(ctx context.Context, marketID string) (Market, error) {
	const query = `
SELECT id, question, description, category, closes_at, created_at
FROM markets
WHERE id = $1
LIMIT 1`
	var m Market
	var category sql.NullString
	var closesAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, marketID).Scan(
		&m.ID,
		&m.Question,
		&m.Description,
		&category,
		&closesAt,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Market{}, ErrNotFound
		}
		return Market{}, err
	}
	if category.Valid {
		m.Category = category.String
	}
	if closesAt.Valid {
		t := closesAt.Time
		m.ClosesAt = &t
	}
	return m, nil
}

var _ Repo = (*PGRepo)(nil)
