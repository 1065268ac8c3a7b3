package research

import (
	"context"
	"time"
)

// Query carries the market context handed to a research source.
type Query struct {
	MarketID    string
	Question    string
	Description string
}

// Response is the normalized payload returned by a research source.
type Response struct {
	RelevantInformation string    `json:"relevant_information"`
	Links               []string  `json:"links"`
	ConfidenceScore     *float64  `json:"confidence_score,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

// Provider queries one external research source for a market.
type Provider interface {
	Research(ctx context.Context, source string, query Query) (Response, error)
}

// ProviderError indicates a transport or provider-side failure for one source.
type ProviderError struct {
	Source string
	Err    error
}

func (e ProviderError) Error() string {
	if e.Err == nil {
		return "research provider failed: " + e.Source
	}
	return "research provider " + e.Source + ": " + e.Err.Error()
}

func (e ProviderError) Unwrap() error { return e.Err }
