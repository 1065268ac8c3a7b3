package predictions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"prediction-backend/internal/llm"
	"prediction-backend/internal/markets"
)

type fakeClient struct {
	lastInput llm.GenerateInput
	out       llm.GenerateOutput
	err       error
}

func (f *fakeClient) Generate(ctx context.Context, input llm.GenerateInput) (llm.GenerateOutput, error) {
	f.lastInput = input
	return f.out, f.err
}

func testMarket() markets.Market {
	return markets.Market{ID: "market-1", Question: "Will X happen?", Description: "details"}
}

func TestGeneratePersistsPrediction(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{out: llm.GenerateOutput{
		Probability: 0.7,
		Confidence:  0.9,
		Reasoning:   "strong signal",
		Raw:         json.RawMessage(`{"probability":0.7}`),
	}}
	repo := NewMemoryRepo()
	s := &Service{Repo: repo, LLM: client}

	prediction, err := s.Generate(ctx, testMarket(), "user-1", "gpt-4", "### web\nsome research")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if prediction.ID == "" {
		t.Fatal("prediction id not assigned")
	}
	if prediction.Probability != 0.7 || prediction.ModelID != "gpt-4" || prediction.UserID != "user-1" {
		t.Fatalf("prediction = %+v", prediction)
	}
	if prediction.SessionID != "" {
		t.Fatalf("sessionID set before attach: %q", prediction.SessionID)
	}

	if client.lastInput.ResearchContext != "### web\nsome research" {
		t.Fatalf("research context not forwarded: %q", client.lastInput.ResearchContext)
	}
	if client.lastInput.ModelID != "gpt-4" || client.lastInput.Question != "Will X happen?" {
		t.Fatalf("input = %+v", client.lastInput)
	}

	stored, err := repo.GetByID(ctx, prediction.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Reasoning != "strong signal" {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestGenerateModelFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("rate limited")}
	s := &Service{Repo: NewMemoryRepo(), LLM: client}

	_, err := s.Generate(context.Background(), testMarket(), "user-1", "claude-3", "")
	if err == nil {
		t.Fatal("Generate succeeded, want error")
	}
	if !strings.Contains(err.Error(), "claude-3") {
		t.Fatalf("error does not name the model: %v", err)
	}
}

func TestAttachSession(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{out: llm.GenerateOutput{Probability: 0.5}}
	repo := NewMemoryRepo()
	s := &Service{Repo: repo, LLM: client}

	prediction, err := s.Generate(ctx, testMarket(), "user-1", "gpt-4", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := repo.AttachSession(ctx, prediction.ID, "session-1"); err != nil {
		t.Fatalf("AttachSession: %v", err)
	}

	stored, err := repo.GetByID(ctx, prediction.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.SessionID != "session-1" {
		t.Fatalf("sessionID = %q", stored.SessionID)
	}

	bySession, err := repo.ListBySession(ctx, "session-1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(bySession) != 1 || bySession[0].ID != prediction.ID {
		t.Fatalf("bySession = %+v", bySession)
	}
}
