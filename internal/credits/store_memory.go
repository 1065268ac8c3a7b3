package credits

import (
	"context"
	"sync"
	"time"
)

const defaultStartingCredits = 10

type memoryStore struct {
	mu           sync.Mutex
	balances     map[string]Balance
	transactions []Transaction
}

func newMemoryStore() *memoryStore {
	return &memoryStore{balances: make(map[string]Balance)}
}

func (s *memoryStore) Get(ctx context.Context, userID string) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(userID), nil
}

func (s *memoryStore) Debit(ctx context.Context, userID string, amount int, tx Transaction) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.ensureLocked(userID)
	if b.Credits < amount {
		return Balance{}, ErrInsufficientCredits
	}
	b.Credits -= amount
	b.TotalCreditsSpent += amount
	s.balances[userID] = b
	s.transactions = append(s.transactions, tx)
	return b, nil
}

func (s *memoryStore) Refund(ctx context.Context, userID string, amount int, tx Transaction) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.ensureLocked(userID)
	b.Credits += amount
	b.TotalCreditsEarned += amount
	s.balances[userID] = b
	s.transactions = append(s.transactions, tx)
	return b, nil
}

func (s *memoryStore) ensureLocked(userID string) Balance {
	b, ok := s.balances[userID]
	if !ok {
		b = Balance{
			UserID:             userID,
			Credits:            defaultStartingCredits,
			TotalCreditsEarned: defaultStartingCredits,
			CreditsLastReset:   time.Now().UTC(),
		}
		s.balances[userID] = b
	}
	return b
}

// Transactions returns a copy of the journal, useful in tests.
func (s *memoryStore) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}
