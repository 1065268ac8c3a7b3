package sessions

import "time"

// Status is the authoritative state of a prediction session. FINISHED and
// ERROR are terminal; repos reject updates to terminal rows.
type Status string

const (
	StatusInitializing Status = "INITIALIZING"
	StatusQueued       Status = "QUEUED"
	StatusResearching  Status = "RESEARCHING"
	StatusGenerating   Status = "GENERATING"
	StatusFinished     Status = "FINISHED"
	StatusError        Status = "ERROR"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// Valid reports whether s is a member of the status set.
func (s Status) Valid() bool {
	switch s {
	case StatusInitializing, StatusQueued, StatusResearching, StatusGenerating, StatusFinished, StatusError:
		return true
	}
	return false
}

// Session is one user-initiated request to generate predictions from
// selected models, optionally informed by research sources.
type Session struct {
	ID                      string     `json:"id"`
	UserID                  string     `json:"userId"`
	MarketID                string     `json:"marketId"`
	SelectedModels          []string   `json:"selectedModels"`
	SelectedResearchSources []string   `json:"selectedResearchSources"`
	Status                  Status     `json:"status"`
	Step                    string     `json:"step,omitempty"`
	Error                   string     `json:"error,omitempty"`
	Predictions             []string   `json:"predictions,omitempty"` // append-only prediction ids
	CreatedAt               time.Time  `json:"createdAt"`
	CompletedAt             *time.Time `json:"completedAt,omitempty"`
}

// WorkerResult summarizes one worker invocation. It is returned to the
// trigger, never persisted. SuccessCount+FailureCount == TotalModels
// whenever Error is empty.
type WorkerResult struct {
	Success      bool   `json:"success"`
	TotalModels  int    `json:"totalModels"`
	SuccessCount int    `json:"successCount"`
	FailureCount int    `json:"failureCount"`
	Error        string `json:"error,omitempty"`
}
