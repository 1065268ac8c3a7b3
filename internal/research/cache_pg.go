package research

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGCache implements Cache using Postgres.
type PGCache struct {
	DB *sql.DB
}

// GetBySource returns the newest entry for (marketID, source) or ErrCacheMiss.
func (c *PGCache) GetBySource(ctx context.Context, marketID, source string) (Entry, error) {
	const query = `
SELECT id, market_id, source, response, created_at
FROM research_cache
WHERE market_id = $1 AND source = $2
ORDER BY created_at DESC
LIMIT 1`
	var entry Entry
	var payload []byte
	err := c.DB.QueryRowContext(ctx, query, marketID, source).Scan(
		&entry.ID,
		&entry.MarketID,
		&entry.Source,
		&payload,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrCacheMiss
		}
		return Entry{}, err
	}
	if err := json.Unmarshal(payload, &entry.Response); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Create inserts a new immutable entry for (marketID, source).
func (c *PGCache) Create(ctx context.Context, marketID, source string, response Response) (Entry, error) {
	entry := Entry{
		ID:        uuid.NewString(),
		MarketID:  marketID,
		Source:    source,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(response)
	if err != nil {
		return Entry{}, err
	}
	const insert = `
INSERT INTO research_cache (id, market_id, source, response, created_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := c.DB.ExecContext(ctx, insert, entry.ID, entry.MarketID, entry.Source, payload, entry.CreatedAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// LinkSession records the session -> entry join row.
func (c *PGCache) LinkSession(ctx context.Context, entryID, sessionID string) error {
	const insert = `
INSERT INTO session_research (session_id, research_cache_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (session_id, research_cache_id) DO NOTHING`
	_, err := c.DB.ExecContext(ctx, insert, sessionID, entryID, time.Now().UTC())
	return err
}

var _ Cache = (*PGCache)(nil)
