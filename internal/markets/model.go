package markets

import "time"

// Market represents a prediction-market question.
type Market struct {
	ID          string     `json:"id"`
	Question    string     `json:"question"`
	Description string     `json:"description"`
	Category    string     `json:"category,omitempty"`
	ClosesAt    *time.Time `json:"closesAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
