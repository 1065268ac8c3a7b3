package credits

import (
	"time"

	"github.com/google/uuid"
)

func newTransaction(userID string, amount int, reason string, metadata map[string]string) Transaction {
	return Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
