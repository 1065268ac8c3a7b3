package credits

import (
	"context"
	"fmt"
)

type store interface {
	Get(ctx context.Context, userID string) (Balance, error)
	Debit(ctx context.Context, userID string, amount int, tx Transaction) (Balance, error)
	Refund(ctx context.Context, userID string, amount int, tx Transaction) (Balance, error)
}

// Service is the credit ledger. All balance mutations go through the
// underlying store as single atomic updates.
type Service struct {
	store store
}

// NewService constructs a Service with an in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore()}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore}
}

// Get returns the current balance for a user.
func (s *Service) Get(ctx context.Context, userID string) (Balance, error) {
	return s.store.Get(ctx, userID)
}

// Debit removes amount credits from the user's balance, failing with
// ErrInsufficientCredits if the balance would go negative.
func (s *Service) Debit(ctx context.Context, userID string, amount int, reason string, metadata map[string]string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	tx := newTransaction(userID, -amount, reason, metadata)
	return s.store.Debit(ctx, userID, amount, tx)
}

// Refund adds amount credits back to the user's balance. Used as the
// compensating action when a paid unit of work produced no output.
func (s *Service) Refund(ctx context.Context, userID string, amount int, reason string, metadata map[string]string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, RefundError{UserID: userID, Amount: amount, Err: fmt.Errorf("refund amount must be positive, got %d", amount)}
	}
	tx := newTransaction(userID, amount, reason, metadata)
	balance, err := s.store.Refund(ctx, userID, amount, tx)
	if err != nil {
		return Balance{}, RefundError{UserID: userID, Amount: amount, Err: err}
	}
	return balance, nil
}
