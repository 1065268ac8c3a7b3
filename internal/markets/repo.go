package markets

import (
	"context"
	"errors"
)

// ErrNotFound indicates the market does not exist.
var ErrNotFound = errors.New("market not found")

// Repo defines persistence operations for markets.
type Repo interface {
	Create(ctx context.Context, market Market) error
	GetByID(ctx context.Context, marketID string) (Market, error)
}
