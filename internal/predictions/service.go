package predictions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"prediction-backend/internal/llm"
	"prediction-backend/internal/markets"
)

// Service produces and persists predictions via the model provider.
type Service struct {
	Repo Repo
	LLM  llm.Client
}

// Generate invokes the model provider for one model and stores the
// resulting prediction. The session reference is attached afterwards by
// the caller once the run's bookkeeping succeeds.
func (s *Service) Generate(ctx context.Context, market markets.Market, userID, modelID, researchContext string) (Prediction, error) {
	if s.LLM == nil {
		return Prediction{}, errors.New("model provider not configured")
	}
	out, err := s.LLM.Generate(ctx, llm.GenerateInput{
		MarketID:        market.ID,
		Question:        market.Question,
		Description:     market.Description,
		ModelID:         modelID,
		ResearchContext: researchContext,
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("model %s generate: %w", modelID, err)
	}

	prediction := Prediction{
		ID:          uuid.NewString(),
		MarketID:    market.ID,
		UserID:      userID,
		ModelID:     modelID,
		Probability: out.Probability,
		Confidence:  out.Confidence,
		Reasoning:   out.Reasoning,
		Raw:         out.Raw,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, prediction); err != nil {
		return Prediction{}, fmt.Errorf("store prediction for model %s: %w", modelID, err)
	}
	return prediction, nil
}
