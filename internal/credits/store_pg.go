package credits

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed credit store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Get(ctx context.Context, userID string) (Balance, error) {
	const query = `
SELECT user_id, credits, total_credits_earned, total_credits_spent, credits_last_reset
FROM credit_balances
WHERE user_id = $1
LIMIT 1`
	var b Balance
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(
		&b.UserID,
		&b.Credits,
		&b.TotalCreditsEarned,
		&b.TotalCreditsSpent,
		&b.CreditsLastReset,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

// Debit applies a conditional single-statement decrement so concurrent
// debits on the same user cannot drive the balance negative.
func (s *pgStore) Debit(ctx context.Context, userID string, amount int, txRecord Transaction) (Balance, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Balance{}, err
	}
	defer tx.Rollback()

	const update = `
UPDATE credit_balances
SET credits = credits - $1, total_credits_spent = total_credits_spent + $1
WHERE user_id = $2 AND credits >= $1
RETURNING user_id, credits, total_credits_earned, total_credits_spent, credits_last_reset`
	var b Balance
	err = tx.QueryRowContext(ctx, update, amount, userID).Scan(
		&b.UserID,
		&b.Credits,
		&b.TotalCreditsEarned,
		&b.TotalCreditsSpent,
		&b.CreditsLastReset,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrInsufficientCredits
		}
		return Balance{}, err
	}
	if err := insertTransaction(ctx, tx, txRecord); err != nil {
		return Balance{}, err
	}
	if err := tx.Commit(); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// Refund applies a single-statement increment; the caller is responsible
// for not refunding more than was debited for the session being compensated.
func (s *pgStore) Refund(ctx context.Context, userID string, amount int, txRecord Transaction) (Balance, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Balance{}, err
	}
	defer tx.Rollback()

	const update = `
UPDATE credit_balances
SET credits = credits + $1, total_credits_earned = total_credits_earned + $1
WHERE user_id = $2
RETURNING user_id, credits, total_credits_earned, total_credits_spent, credits_last_reset`
	var b Balance
	err = tx.QueryRowContext(ctx, update, amount, userID).Scan(
		&b.UserID,
		&b.Credits,
		&b.TotalCreditsEarned,
		&b.TotalCreditsSpent,
		&b.CreditsLastReset,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrNotFound
		}
		return Balance{}, err
	}
	if err := insertTransaction(ctx, tx, txRecord); err != nil {
		return Balance{}, err
	}
	if err := tx.Commit(); err != nil {
		return Balance{}, err
	}
	return b, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, record Transaction) error {
	metadata, err := marshalMetadata(record.Metadata)
	if err != nil {
		return err
	}
	const insert = `
INSERT INTO credit_transactions (id, user_id, amount, reason, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(ctx, insert,
		record.ID,
		record.UserID,
		record.Amount,
		record.Reason,
		metadata,
		record.CreatedAt,
	)
	return err
}

func marshalMetadata(metadata map[string]string) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
