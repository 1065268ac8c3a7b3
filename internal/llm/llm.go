package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts model providers for probability prediction.
type Client interface {
	Generate(ctx context.Context, input GenerateInput) (GenerateOutput, error)
}

// GenerateInput captures the inputs for one model call.
type GenerateInput struct {
	MarketID        string
	Question        string
	Description     string
	ModelID         string
	ResearchContext string
}

// GenerateOutput is the parsed prediction returned by a model.
type GenerateOutput struct {
	Probability float64         `json:"probability"`
	Confidence  float64         `json:"confidence"`
	Reasoning   string          `json:"reasoning"`
	Raw         json.RawMessage `json:"-"`
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("model provider not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Generate returns ErrNotImplemented.
func (PlaceholderClient) Generate(ctx context.Context, input GenerateInput) (GenerateOutput, error) {
	_ = ctx
	_ = input
	return GenerateOutput{}, ErrNotImplemented
}
