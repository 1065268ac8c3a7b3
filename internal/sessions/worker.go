package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"prediction-backend/internal/credits"
	"prediction-backend/internal/markets"
	"prediction-backend/internal/predictions"
	"prediction-backend/internal/research"
	"prediction-backend/internal/shared/metrics"
	"prediction-backend/internal/shared/telemetry"
)

const defaultModelConcurrency = 3

// Worker executes one prediction session end-to-end: research, model
// generation, then finalize or compensate. It owns every mutation of the
// session's status/step/error fields.
type Worker struct {
	Sessions    Repo
	Markets     markets.Repo
	Research    *research.Orchestrator
	Predictions *predictions.Service
	Credits     *credits.Service
	// Concurrency bounds the model generation pool. Zero means the default.
	Concurrency int
	// RetryInitialInterval seeds the backoff used by ExecuteWithRetry.
	// Zero means the default.
	RetryInitialInterval time.Duration
}

// Execute runs the session once. Per-model and per-source failures are
// captured as counts, never errors; only session/market lookup and state
// transition failures propagate, and those are the retry wrapper's domain.
func (w *Worker) Execute(ctx context.Context, sessionID string) (WorkerResult, error) {
	session, err := w.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return WorkerResult{Error: fmt.Sprintf("Session not found: %s", sessionID)}, nil
		}
		return WorkerResult{}, fmt.Errorf("session lookup %s: %w", sessionID, err)
	}

	if session.Status.Terminal() {
		// At-least-once delivery: a redelivered terminal session replays
		// its recorded outcome without touching state or the ledger.
		telemetry.Info("session.already_terminal", map[string]any{
			"session_id": session.ID,
			"status":     string(session.Status),
		})
		return replayResult(session), nil
	}

	startedAt := time.Now().UTC()
	metrics.IncSessionStarted()

	market, err := w.Markets.GetByID(ctx, session.MarketID)
	if err != nil {
		return WorkerResult{}, fmt.Errorf("market lookup %s: %w", session.MarketID, err)
	}

	researchContext := ""
	if len(session.SelectedResearchSources) > 0 {
		step := fmt.Sprintf("Gathering research from %d source(s)", len(session.SelectedResearchSources))
		if err := w.transition(ctx, session, StatusResearching, step); err != nil {
			return WorkerResult{}, err
		}
		results := w.Research.Gather(ctx, session.ID, research.Query{
			MarketID:    market.ID,
			Question:    market.Question,
			Description: market.Description,
		}, session.SelectedResearchSources)
		researchContext = buildResearchContext(results)
	}

	total := len(session.SelectedModels)
	step := fmt.Sprintf("Generating predictions from %d model(s)", total)
	if err := w.transition(ctx, session, StatusGenerating, step); err != nil {
		return WorkerResult{}, err
	}

	successCount, failureCount, predictionIDs := w.runModels(ctx, session, market, researchContext)

	return w.finalize(ctx, session, startedAt, total, successCount, failureCount, predictionIDs)
}

// runModels invokes the model provider once per selected model through a
// bounded pool. Every outcome is awaited; a model failure is data, not an
// abort.
func (w *Worker) runModels(ctx context.Context, session Session, market markets.Market, researchContext string) (successCount, failureCount int, predictionIDs []string) {
	if len(session.SelectedModels) == 0 {
		return 0, 0, nil
	}

	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = defaultModelConcurrency
	}
	if concurrency > len(session.SelectedModels) {
		concurrency = len(session.SelectedModels)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, modelID := range session.SelectedModels {
		wg.Add(1)
		sem <- struct{}{}
		go func(modelID string) {
			defer wg.Done()
			defer func() { <-sem }()

			prediction, err := w.Predictions.Generate(ctx, market, session.UserID, modelID, researchContext)
			if err == nil {
				err = w.Predictions.Repo.AttachSession(ctx, prediction.ID, session.ID)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failureCount++
				metrics.IncModelCallFailed()
				telemetry.Error("session.model_failed", map[string]any{
					"session_id": session.ID,
					"market_id":  session.MarketID,
					"model_id":   modelID,
					"error":      err.Error(),
				})
				return
			}
			successCount++
			metrics.IncModelCallSucceeded()
			predictionIDs = append(predictionIDs, prediction.ID)
		}(modelID)
	}
	wg.Wait()
	return successCount, failureCount, predictionIDs
}

func (w *Worker) finalize(ctx context.Context, session Session, startedAt time.Time, total, successCount, failureCount int, predictionIDs []string) (WorkerResult, error) {
	if successCount == 0 && total > 0 {
		reason := fmt.Sprintf("All models failed for session %s", session.ID)
		_, refundErr := w.Credits.Refund(ctx, session.UserID, total, reason, map[string]string{"marketId": session.MarketID})

		var errMsg string
		if refundErr != nil {
			// Second-order failure: refund must be surfaced, not swallowed.
			errMsg = fmt.Sprintf("All models failed and credit refund failed: %s", refundErr)
		} else {
			metrics.IncRefundIssued()
			errMsg = fmt.Sprintf("All %d models failed to generate predictions", total)
		}

		if err := w.fail(ctx, session, errMsg); err != nil {
			return WorkerResult{}, err
		}
		metrics.IncSessionFailed()
		w.logCompletion(session, StatusError, startedAt, successCount, total)
		return WorkerResult{
			TotalModels:  total,
			SuccessCount: successCount,
			FailureCount: failureCount,
			Error:        errMsg,
		}, nil
	}

	step := fmt.Sprintf("Completed %d/%d predictions", successCount, total)
	now := time.Now().UTC()
	status := StatusFinished
	err := w.Sessions.Update(ctx, session.ID, Patch{
		Status:            &status,
		Step:              &step,
		CompletedAt:       &now,
		AppendPredictions: predictionIDs,
	})
	if err != nil {
		return WorkerResult{}, fmt.Errorf("finish session %s: %w", session.ID, err)
	}
	metrics.IncSessionFinished()
	metrics.ObserveSessionDurationMs(float64(now.Sub(startedAt).Microseconds()) / 1000.0)
	w.logCompletion(session, StatusFinished, startedAt, successCount, total)
	return WorkerResult{
		Success:      true,
		TotalModels:  total,
		SuccessCount: successCount,
		FailureCount: failureCount,
	}, nil
}

func (w *Worker) transition(ctx context.Context, session Session, status Status, step string) error {
	prev := session.Status
	err := w.Sessions.Update(ctx, session.ID, Patch{Status: &status, Step: &step})
	if err != nil {
		return fmt.Errorf("transition session %s to %s: %w", session.ID, status, err)
	}
	telemetry.Info("session.status", map[string]any{
		"session_id":        session.ID,
		"user_id":           session.UserID,
		"market_id":         session.MarketID,
		"status":            string(status),
		"status_transition": string(prev) + "->" + string(status),
		"step":              step,
	})
	return nil
}

func (w *Worker) fail(ctx context.Context, session Session, errMsg string) error {
	now := time.Now().UTC()
	status := StatusError
	err := w.Sessions.Update(ctx, session.ID, Patch{
		Status:      &status,
		Error:       &errMsg,
		CompletedAt: &now,
	})
	if err != nil {
		return fmt.Errorf("mark session %s failed: %w", session.ID, err)
	}
	return nil
}

func (w *Worker) logCompletion(session Session, status Status, startedAt time.Time, successCount, total int) {
	telemetry.Info("session.status", map[string]any{
		"session_id":    session.ID,
		"user_id":       session.UserID,
		"market_id":     session.MarketID,
		"status":        string(status),
		"success_count": successCount,
		"total_models":  total,
		"duration_ms":   float64(time.Since(startedAt).Microseconds()) / 1000.0,
	})
}

func replayResult(session Session) WorkerResult {
	total := len(session.SelectedModels)
	successCount := len(session.Predictions)
	if successCount > total {
		successCount = total
	}
	return WorkerResult{
		Success:      session.Status == StatusFinished,
		TotalModels:  total,
		SuccessCount: successCount,
		FailureCount: total - successCount,
		Error:        session.Error,
	}
}

func buildResearchContext(results []research.SourceResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for _, result := range results {
		fmt.Fprintf(&b, "### %s\n%s\n", result.Source, result.Entry.Response.RelevantInformation)
		for _, link := range result.Entry.Response.Links {
			fmt.Fprintf(&b, "- %s\n", link)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
