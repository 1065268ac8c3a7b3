package sessions

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepoUpdateRejectsTerminal(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	now := time.Now().UTC()
	session := Session{ID: "session-1", UserID: "user-1", MarketID: "market-1", Status: StatusFinished, CompletedAt: &now}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	status := StatusResearching
	err := repo.Update(ctx, "session-1", Patch{Status: &status})
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("err = %v, want ErrTerminal", err)
	}

	got, err := repo.GetByID(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusFinished {
		t.Fatalf("terminal session mutated: status = %s", got.Status)
	}
}

func TestMemoryRepoUpdateAppendsPredictions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	if err := repo.Create(ctx, Session{ID: "session-1", Status: StatusGenerating}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Update(ctx, "session-1", Patch{AppendPredictions: []string{"p1"}}); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if err := repo.Update(ctx, "session-1", Patch{AppendPredictions: []string{"p2", "p3"}}); err != nil {
		t.Fatalf("second Update: %v", err)
	}

	got, err := repo.GetByID(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	want := []string{"p1", "p2", "p3"}
	if len(got.Predictions) != len(want) {
		t.Fatalf("predictions = %v, want %v", got.Predictions, want)
	}
	for i := range want {
		if got.Predictions[i] != want[i] {
			t.Fatalf("predictions = %v, want %v", got.Predictions, want)
		}
	}
}

func TestMemoryRepoUpdateMissing(t *testing.T) {
	repo := NewMemoryRepo()
	step := "anything"
	err := repo.Update(context.Background(), "missing", Patch{Step: &step})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
