package predictions

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new prediction.
func (r *PGRepo) Create(ctx context.Context, prediction Prediction) error {
	const query = `
INSERT INTO predictions (id, market_id, user_id, model_id, session_id, probability, confidence, reasoning, raw, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	var sessionID any
	if prediction.SessionID != "" {
		sessionID = prediction.SessionID
	}
	var raw any
	if len(prediction.Raw) > 0 {
		raw = string(prediction.Raw)
	}
	_, err := r.DB.ExecContext(ctx, query,
		prediction.ID,
		prediction.MarketID,
		prediction.UserID,
		prediction.ModelID,
		sessionID,
		prediction.Probability,
		prediction.Confidence,
		prediction.Reasoning,
		raw,
		prediction.CreatedAt,
	)
	return err
}

// GetByID returns a prediction by ID.
func (r *PGRepo) GetByID(ctx context.Context, predictionID string) (Prediction, error) {
	const query = `
SELECT id, market_id, user_id, model_id, session_id, probability, confidence, reasoning, raw, created_at
FROM predictions
WHERE id = $1
LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query, predictionID)
	prediction, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prediction{}, ErrNotFound
		}
		return Prediction{}, err
	}
	return prediction, nil
}

// AttachSession sets the session reference on an existing prediction row.
func (r *PGRepo) AttachSession(ctx context.Context, predictionID, sessionID string) error {
	const query = `UPDATE predictions SET session_id = $1 WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, sessionID, predictionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBySession returns predictions linked to a session, oldest first.
func (r *PGRepo) ListBySession(ctx context.Context, sessionID string) ([]Prediction, error) {
	const query = `
SELECT id, market_id, user_id, model_id, session_id, probability, confidence, reasoning, raw, created_at
FROM predictions
WHERE session_id = $1
ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Prediction
	for rows.Next() {
		prediction, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, prediction)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row rowScanner) (Prediction, error) {
	var p Prediction
	var sessionID sql.NullString
	var raw sql.NullString
	err := row.Scan(
		&p.ID,
		&p.MarketID,
		&p.UserID,
		&p.ModelID,
		&sessionID,
		&p.Probability,
		&p.Confidence,
		&p.Reasoning,
		&raw,
		&p.CreatedAt,
	)
	if err != nil {
		return Prediction{}, err
	}
	if sessionID.Valid {
		p.SessionID = sessionID.String
	}
	if raw.Valid {
		p.Raw = []byte(raw.String)
	}
	return p, nil
}

var _ Repo = (*PGRepo)(nil)
