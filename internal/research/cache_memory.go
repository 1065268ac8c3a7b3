package research

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type cacheKey struct {
	marketID string
	source   string
}

// MemoryCache stores research entries in memory and is safe for concurrent use.
type MemoryCache struct {
	mu       sync.RWMutex
	byKey    map[cacheKey]Entry
	sessions map[string][]string // entryID -> linked session ids
}

// NewMemoryCache constructs a MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		byKey:    make(map[cacheKey]Entry),
		sessions: make(map[string][]string),
	}
}

// GetBySource returns the entry for (marketID, source) or ErrCacheMiss.
func (c *MemoryCache) GetBySource(ctx context.Context, marketID, source string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byKey[cacheKey{marketID: marketID, source: source}]
	if !ok {
		return Entry{}, ErrCacheMiss
	}
	return entry, nil
}

// Create stores a new entry for (marketID, source), replacing any stale one.
func (c *MemoryCache) Create(ctx context.Context, marketID, source string, response Response) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	entry := Entry{
		ID:        uuid.NewString(),
		MarketID:  marketID,
		Source:    source,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[cacheKey{marketID: marketID, source: source}] = entry
	return entry, nil
}

// LinkSession records that a session consumed the given entry.
func (c *MemoryCache) LinkSession(ctx context.Context, entryID, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[entryID] = append(c.sessions[entryID], sessionID)
	return nil
}

// LinkedSessions returns the session ids linked to an entry, useful in tests.
func (c *MemoryCache) LinkedSessions(entryID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.sessions[entryID]))
	copy(out, c.sessions[entryID])
	return out
}

var _ Cache = (*MemoryCache)(nil)
