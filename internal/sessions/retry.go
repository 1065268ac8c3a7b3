package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"prediction-backend/internal/shared/telemetry"
)

const defaultRetryInitialInterval = 500 * time.Millisecond

// ExecuteWithRetry re-invokes Execute up to maxAttempts times with
// exponential backoff. Only propagated errors (infrastructure failures)
// are retried; a run that returns a WorkerResult, failed or not, is final.
// After exhausting attempts the session is marked ERROR best-effort and a
// zeroed result carrying the attempt-counted message is returned.
func (w *Worker) ExecuteWithRetry(ctx context.Context, sessionID string, maxAttempts int) WorkerResult {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	initial := w.RetryInitialInterval
	if initial <= 0 {
		initial = defaultRetryInitialInterval
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initial
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0

	var result WorkerResult
	attempts := 0
	operation := func() error {
		attempts++
		res, err := w.Execute(ctx, sessionID)
		if err != nil {
			telemetry.Error("session.worker_attempt_failed", map[string]any{
				"session_id": sessionID,
				"attempt":    attempts,
				"error":      err.Error(),
			})
			return err
		}
		result = res
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx))
	if err == nil {
		return result
	}

	errMsg := fmt.Sprintf("Worker failed after %d attempts: %s", attempts, err)
	w.markFailedBestEffort(ctx, sessionID, errMsg)
	return WorkerResult{Error: errMsg}
}

// markFailedBestEffort records the exhaustion on the session if it still
// exists and is not terminal; a session that completed between attempts
// must not be overwritten.
func (w *Worker) markFailedBestEffort(ctx context.Context, sessionID, errMsg string) {
	session, err := w.Sessions.GetByID(ctx, sessionID)
	if err != nil || session.Status.Terminal() {
		return
	}
	if err := w.fail(ctx, session, errMsg); err != nil {
		telemetry.Error("session.mark_failed", map[string]any{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}
