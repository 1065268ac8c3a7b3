package research

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates no cache entry exists for the (market, source) key.
var ErrCacheMiss = errors.New("research cache miss")

// Entry is one cached research response, keyed by (marketID, source).
// Entries are immutable after creation; many sessions may link the same entry.
type Entry struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"marketId"`
	Source    string    `json:"source"`
	Response  Response  `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}

// Cache defines persistence for research cache entries. Freshness is not
// implied by presence; callers apply their own max-age policy over CreatedAt.
type Cache interface {
	GetBySource(ctx context.Context, marketID, source string) (Entry, error)
	Create(ctx context.Context, marketID, source string, response Response) (Entry, error)
	LinkSession(ctx context.Context, entryID, sessionID string) error
}
