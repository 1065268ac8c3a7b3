package predictions

import (
	"encoding/json"
	"time"
)

// Prediction is one model's probability estimate for a market.
type Prediction struct {
	ID          string          `json:"id"`
	MarketID    string          `json:"marketId"`
	UserID      string          `json:"userId"`
	ModelID     string          `json:"modelId"`
	SessionID   string          `json:"sessionId,omitempty"`
	Probability float64         `json:"probability"`
	Confidence  float64         `json:"confidence"`
	Reasoning   string          `json:"reasoning"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
