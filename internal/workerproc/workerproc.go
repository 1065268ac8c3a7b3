package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"prediction-backend/internal/queue"
	"prediction-backend/internal/sessions"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingSessionID indicates a message missing the session id.
type ErrMissingSessionID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingSessionID) Error() string { return "missing session id" }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.SessionID) == "" {
		return msg, meta, ErrMissingSessionID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// SessionExecutor runs one prediction session with bounded retries.
type SessionExecutor interface {
	ExecuteWithRetry(ctx context.Context, sessionID string, maxAttempts int) sessions.WorkerResult
}

// HandleMessage parses, validates, and processes a message payload.
// The returned WorkerResult reflects the session run; a parse failure
// returns an error and no result.
func HandleMessage(ctx context.Context, executor SessionExecutor, body string, maxAttempts int) (sessions.WorkerResult, error) {
	if executor == nil {
		return sessions.WorkerResult{}, errors.New("session executor not configured")
	}

	msg, _, err := ParseMessage(body)
	if err != nil {
		return sessions.WorkerResult{}, err
	}

	return executor.ExecuteWithRetry(ctx, msg.SessionID, maxAttempts), nil
}
