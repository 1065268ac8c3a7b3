package sessions

import (
	"context"
	"time"
)

// Patch carries the mutable worker-owned fields of a session. Nil fields
// are left untouched; AppendPredictions adds to the append-only list.
type Patch struct {
	Status            *Status
	Step              *string
	Error             *string
	CompletedAt       *time.Time
	AppendPredictions []string
}

// Repo defines persistence operations for sessions. Update must reject
// patches against terminal sessions with ErrTerminal; that rejection is
// the idempotency guard for at-least-once worker invocation.
type Repo interface {
	Create(ctx context.Context, session Session) error
	GetByID(ctx context.Context, sessionID string) (Session, error)
	Update(ctx context.Context, sessionID string, patch Patch) error
}
