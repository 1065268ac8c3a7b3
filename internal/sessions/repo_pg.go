package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new session.
func (r *PGRepo) Create(ctx context.Context, session Session) error {
	models, err := json.Marshal(session.SelectedModels)
	if err != nil {
		return err
	}
	sources, err := json.Marshal(session.SelectedResearchSources)
	if err != nil {
		return err
	}
	predictions, err := json.Marshal(emptyIfNil(session.Predictions))
	if err != nil {
		return err
	}
	const query = `
INSERT INTO prediction_sessions (
	id, user_id, market_id, selected_models, selected_research_sources,
	status, step, error, prediction_ids, created_at, completed_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.DB.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.MarketID,
		models,
		sources,
		string(session.Status),
		session.Step,
		nullableString(session.Error),
		predictions,
		session.CreatedAt,
		session.CompletedAt,
	)
	return err
}

// GetByID returns a session by ID.
func (r *PGRepo) GetByID(ctx context.Context, sessionID string) (Session, error) {
	const query = `
SELECT id, user_id, market_id, selected_models, selected_research_sources,
       status, step, error, prediction_ids, created_at, completed_at
FROM prediction_sessions
WHERE id = $1
LIMIT 1`
	var s Session
	var models, sources, predictions []byte
	var status string
	var step sql.NullString
	var errMsg sql.NullString
	var completedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, sessionID).Scan(
		&s.ID,
		&s.UserID,
		&s.MarketID,
		&models,
		&sources,
		&status,
		&step,
		&errMsg,
		&predictions,
		&s.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	if err := json.Unmarshal(models, &s.SelectedModels); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal(sources, &s.SelectedResearchSources); err != nil {
		return Session{}, err
	}
	if len(predictions) > 0 {
		if err := json.Unmarshal(predictions, &s.Predictions); err != nil {
			return Session{}, err
		}
	}
	s.Status = Status(status)
	if step.Valid {
		s.Step = step.String
	}
	if errMsg.Valid {
		s.Error = errMsg.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return s, nil
}

// Update applies the patch in one conditional statement; terminal rows are
// excluded by the WHERE clause so a concurrent or repeated worker run can
// never mutate a completed session.
func (r *PGRepo) Update(ctx context.Context, sessionID string, patch Patch) error {
	appends, err := json.Marshal(emptyIfNil(patch.AppendPredictions))
	if err != nil {
		return err
	}
	var status any
	if patch.Status != nil {
		status = string(*patch.Status)
	}
	const query = `
UPDATE prediction_sessions
SET status = COALESCE($2, status),
    step = COALESCE($3, step),
    error = COALESCE($4, error),
    completed_at = COALESCE($5, completed_at),
    prediction_ids = prediction_ids || $6::jsonb
WHERE id = $1 AND status NOT IN ('FINISHED', 'ERROR')`
	res, err := r.DB.ExecContext(ctx, query,
		sessionID,
		status,
		patch.Step,
		patch.Error,
		patch.CompletedAt,
		appends,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Zero rows: either the session is gone or it is terminal.
	current, err := r.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return ErrTerminal
	}
	return ErrNotFound
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

var _ Repo = (*PGRepo)(nil)
