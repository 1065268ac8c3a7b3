package sessions

import (
	"context"
	"sync"
)

// MemoryRepo stores sessions in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Session
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Session)}
}

// Create stores the session.
func (r *MemoryRepo) Create(ctx context.Context, session Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[session.ID] = session
	return nil
}

// GetByID returns a session by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.byID[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

// Update applies the patch, rejecting updates to terminal sessions.
func (r *MemoryRepo) Update(ctx context.Context, sessionID string, patch Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byID[sessionID]
	if !ok {
		return ErrNotFound
	}
	if session.Status.Terminal() {
		return ErrTerminal
	}
	if patch.Status != nil {
		session.Status = *patch.Status
	}
	if patch.Step != nil {
		session.Step = *patch.Step
	}
	if patch.Error != nil {
		session.Error = *patch.Error
	}
	if patch.CompletedAt != nil {
		session.CompletedAt = patch.CompletedAt
	}
	if len(patch.AppendPredictions) > 0 {
		session.Predictions = append(session.Predictions, patch.AppendPredictions...)
	}
	r.byID[sessionID] = session
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
