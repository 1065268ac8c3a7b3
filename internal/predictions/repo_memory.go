package predictions

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores predictions in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Prediction
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Prediction)}
}

// Create stores the prediction.
func (r *MemoryRepo) Create(ctx context.Context, prediction Prediction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[prediction.ID] = prediction
	return nil
}

// GetByID returns a prediction by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, predictionID string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	prediction, ok := r.byID[predictionID]
	if !ok {
		return Prediction{}, ErrNotFound
	}
	return prediction, nil
}

// AttachSession sets the session reference on an existing prediction.
func (r *MemoryRepo) AttachSession(ctx context.Context, predictionID, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prediction, ok := r.byID[predictionID]
	if !ok {
		return ErrNotFound
	}
	prediction.SessionID = sessionID
	r.byID[predictionID] = prediction
	return nil
}

// ListBySession returns predictions linked to a session, oldest first.
func (r *MemoryRepo) ListBySession(ctx context.Context, sessionID string) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Prediction
	for _, prediction := range r.byID {
		if prediction.SessionID == sessionID {
			out = append(out, prediction)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
