package markets

import (
	"context"
	"sync"
)

// MemoryRepo stores markets in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Market
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Market)}
}

// Create stores the market.
func (r *MemoryRepo) Create(ctx context.Context, market Market) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[market.ID] = market
	return nil
}

// GetByID returns a market by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, marketID string) (Market, error) {
	if err := ctx.Err(); err != nil {
		return Market{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	market, ok := r.byID[marketID]
	if !ok {
		return Market{}, ErrNotFound
	}
	return market, nil
}

var _ Repo = (*MemoryRepo)(nil)
