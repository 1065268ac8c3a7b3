package predictions

import (
	"context"
	"errors"
)

// ErrNotFound indicates the prediction does not exist.
var ErrNotFound = errors.New("prediction not found")

// Repo defines persistence operations for predictions.
type Repo interface {
	Create(ctx context.Context, prediction Prediction) error
	GetByID(ctx context.Context, predictionID string) (Prediction, error)
	// AttachSession sets the session reference on an existing prediction row.
	AttachSession(ctx context.Context, predictionID, sessionID string) error
	ListBySession(ctx context.Context, sessionID string) ([]Prediction, error)
}
