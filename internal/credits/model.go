package credits

import "time"

// Balance represents a user's spendable credit state.
type Balance struct {
	UserID             string    `json:"userId"`
	Credits            int       `json:"credits"`
	TotalCreditsEarned int       `json:"totalCreditsEarned"`
	TotalCreditsSpent  int       `json:"totalCreditsSpent"`
	CreditsLastReset   time.Time `json:"creditsLastReset"`
}

// Transaction is a journal entry recording one balance movement.
type Transaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Amount    int               `json:"amount"` // positive for refunds/grants, negative for debits
	Reason    string            `json:"reason"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
