package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"prediction-backend/internal/credits"
	"prediction-backend/internal/llm"
	"prediction-backend/internal/markets"
	"prediction-backend/internal/predictions"
	"prediction-backend/internal/research"
)

type scriptedModel struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (s *scriptedModel) Generate(ctx context.Context, input llm.GenerateInput) (llm.GenerateOutput, error) {
	_ = ctx
	s.mu.Lock()
	s.calls = append(s.calls, input.ModelID)
	s.mu.Unlock()
	if s.fail[input.ModelID] {
		return llm.GenerateOutput{}, errors.New("model unavailable")
	}
	return llm.GenerateOutput{
		Probability: 0.62,
		Confidence:  0.8,
		Reasoning:   "test reasoning",
		Raw:         json.RawMessage(`{"probability":0.62}`),
	}, nil
}

func (s *scriptedModel) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingProvider struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (p *recordingProvider) Research(ctx context.Context, source string, query research.Query) (research.Response, error) {
	_ = ctx
	p.mu.Lock()
	p.calls = append(p.calls, source)
	p.mu.Unlock()
	if p.fail[source] {
		return research.Response{}, research.ProviderError{Source: source, Err: errors.New("provider down")}
	}
	return research.Response{
		RelevantInformation: "info for " + source,
		Links:               []string{"https://example.com/" + source},
		Timestamp:           time.Now().UTC(),
	}, nil
}

func (p *recordingProvider) callOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

type spySessionRepo struct {
	Repo
	mu       sync.Mutex
	statuses []Status
	updates  int
}

func (r *spySessionRepo) Update(ctx context.Context, sessionID string, patch Patch) error {
	r.mu.Lock()
	r.updates++
	if patch.Status != nil {
		r.statuses = append(r.statuses, *patch.Status)
	}
	r.mu.Unlock()
	return r.Repo.Update(ctx, sessionID, patch)
}

func (r *spySessionRepo) seenStatuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

func (r *spySessionRepo) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

type workerFixture struct {
	worker   *Worker
	sessions *spySessionRepo
	cache    *research.MemoryCache
	provider *recordingProvider
	model    *scriptedModel
	credits  *credits.Service
	session  Session
}

func setupWorker(t *testing.T, models, sources []string) *workerFixture {
	t.Helper()
	ctx := context.Background()

	marketRepo := markets.NewMemoryRepo()
	market := markets.Market{
		ID:          "market-1",
		Question:    "Will it rain tomorrow?",
		Description: "Resolution per the local weather service.",
		CreatedAt:   time.Now().UTC(),
	}
	if err := marketRepo.Create(ctx, market); err != nil {
		t.Fatalf("create market: %v", err)
	}

	sessionRepo := &spySessionRepo{Repo: NewMemoryRepo()}
	session := Session{
		ID:                      "session-1",
		UserID:                  "user-1",
		MarketID:                market.ID,
		SelectedModels:          models,
		SelectedResearchSources: sources,
		Status:                  StatusQueued,
		CreatedAt:               time.Now().UTC(),
	}
	if err := sessionRepo.Repo.Create(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	model := &scriptedModel{fail: map[string]bool{}}
	provider := &recordingProvider{fail: map[string]bool{}}
	cache := research.NewMemoryCache()
	ledger := credits.NewService()

	worker := &Worker{
		Sessions: sessionRepo,
		Markets:  marketRepo,
		Research: &research.Orchestrator{
			Cache:    cache,
			Provider: provider,
		},
		Predictions: &predictions.Service{
			Repo: predictions.NewMemoryRepo(),
			LLM:  model,
		},
		Credits:     ledger,
		Concurrency: 2,
	}

	return &workerFixture{
		worker:   worker,
		sessions: sessionRepo,
		cache:    cache,
		provider: provider,
		model:    model,
		credits:  ledger,
		session:  session,
	}
}

func (f *workerFixture) balance(t *testing.T) int {
	t.Helper()
	b, err := f.credits.Get(context.Background(), f.session.UserID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return b.Credits
}

func (f *workerFixture) reload(t *testing.T) Session {
	t.Helper()
	session, err := f.sessions.GetByID(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	return session
}

func TestExecuteAllModelsSucceed(t *testing.T) {
	f := setupWorker(t, []string{"gpt-4", "claude-3"}, nil)
	before := f.balance(t)

	result, err := f.worker.Execute(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := WorkerResult{Success: true, TotalModels: 2, SuccessCount: 2, FailureCount: 0}
	if result != want {
		t.Fatalf("result mismatch: got %+v want %+v", result, want)
	}

	session := f.reload(t)
	if session.Status != StatusFinished {
		t.Fatalf("status = %s, want FINISHED", session.Status)
	}
	if session.Step != "Completed 2/2 predictions" {
		t.Fatalf("step = %q", session.Step)
	}
	if session.CompletedAt == nil {
		t.Fatal("completedAt not set")
	}
	if len(session.Predictions) != 2 {
		t.Fatalf("predictions linked = %d, want 2", len(session.Predictions))
	}
	if got := f.balance(t); got != before {
		t.Fatalf("balance changed on success: %d -> %d", before, got)
	}
}

func TestExecuteAllModelsFailRefunds(t *testing.T) {
	f := setupWorker(t, []string{"gpt-4", "claude-3"}, nil)
	f.model.fail["gpt-4"] = true
	f.model.fail["claude-3"] = true
	before := f.balance(t)

	result, err := f.worker.Execute(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Success {
		t.Fatal("result.Success = true, want false")
	}
	if result.TotalModels != 2 || result.SuccessCount != 0 || result.FailureCount != 2 {
		t.Fatalf("counts mismatch: %+v", result)
	}

	session := f.reload(t)
	if session.Status != StatusError {
		t.Fatalf("status = %s, want ERROR", session.Status)
	}
	if session.Error != "All 2 models failed to generate predictions" {
		t.Fatalf("error = %q", session.Error)
	}
	if got := f.balance(t); got != before+2 {
		t.Fatalf("refund not applied: balance %d, want %d", got, before+2)
	}
}

func TestExecutePartialSuccessNoRefund(t *testing.T) {
	f := setupWorker(t, []string{"gpt-4", "claude-3", "gemini-pro"}, nil)
	f.model.fail["claude-3"] = true
	before := f.balance(t)

	result, err := f.worker.Execute(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !result.Success {
		t.Fatal("result.Success = false, want true")
	}
	if result.SuccessCount != 2 || result.FailureCount != 1 || result.TotalModels != 3 {
		t.Fatalf("counts mismatch: %+v", result)
	}
	if result.SuccessCount+result.FailureCount != result.TotalModels {
		t.Fatalf("count invariant broken: %+v", result)
	}

	session := f.reload(t)
	if session.Status != StatusFinished {
		t.Fatalf("status = %s, want FINISHED", session.Status)
	}
	if session.Step != "Completed 2/3 predictions" {
		t.Fatalf("step = %q", session.Step)
	}
	if got := f.balance(t); got != before {
		t.Fatalf("balance changed without total failure: %d -> %d", before, got)
	}
}

func TestExecuteUnknownSession(t *testing.T) {
	f := setupWorker(t, []string{"gpt-4"}, nil)

	result, err := f.worker.Execute(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := WorkerResult{Error: "Session not found: missing"}
	if result != want {
		t.Fatalf("result mismatch: got %+v want %+v", result, want)
	}
	if f.sessions.updateCount() != 0 {
		t.Fatalf("state updates performed for unknown session: %d", f.sessions.updateCount())
	}
}

func TestExecuteResearchSourcesInOrder(t *testing.T) {
	f := setupWorker(t, []string{"gpt-4"}, []string{"web", "news", "social"})

	if _, err := f.worker.Execute(context.Background(), f.session.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := f.provider.callOrder()
	want := []string{"web", "news", "social"}
	if len(got) != len(want) {
		t.Fatalf("provider calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("provider call order = %v, want %v", got, want)
		}
	}

	statuses := f.sessions.seenStatuses()
	if len(statuses) == 0 || statuses[0] != StatusResearching {
		t.Fatalf("first transition = %v, want RESEARCHING", statuses)
	}
}

func TestExecuteCacheHitSkipsProvider(t *testing.T) {
	f := setupWorker(t, []string{"gpt-4"}, []string{"web", "news"})

	// Pre-seed a cache entry for "web"; only "news" should hit the provider.
	_, err := f.cache.Create(context.Background(), f.session.MarketID, "web", research.Response{
		RelevantInformation: "cached info",
		Timestamp:           time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if _, err := f.worker.Execute(context.Background(), f.session.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := f.provider.callOrder()
	if len(got) != 1 || got[0] != "news" {
		t.Fatalf("provider calls = %v, want [news]", got)
	}
}

func TestExecuteEmptySourcesSkipsResearch(t *testing.T) {
	f := setupWorker(t, []string{"gpt-4"}, nil)

	if _, err := f.worker.Execute(context.Background(), f.session.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if calls := f.provider.callOrder(); len(calls) != 0 {
		t.Fatalf("provider called with no sources selected: %v", calls)
	}
	for _, status := range f.sessions.seenStatuses() {
		if status == StatusResearching {
			t.Fatal("RESEARCHING transition with no sources selected")
		}
	}
}

func TestExecuteResearchFailureSkipsSource(t *testing.T) {
	f := setupWorker(t, []string{"gpt-4"}, []string{"web", "news"})
	f.provider.fail["web"] = true

	result, err := f.worker.Execute(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("research failure aborted session: %+v", result)
	}

	got := f.provider.callOrder()
	if len(got) != 2 {
		t.Fatalf("provider calls = %v, want both sources attempted", got)
	}
}

func TestExecuteTerminalSessionIsIdempotent(t *testing.T) {
	f := setupWorker(t, []string{"gpt-4", "claude-3"}, []string{"web"})
	before := f.balance(t)

	// First run completes the session.
	first, err := f.worker.Execute(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if !first.Success {
		t.Fatalf("first run failed: %+v", first)
	}
	providerCalls := len(f.provider.callOrder())
	modelCalls := f.model.callCount()

	// Redelivery of the same session must not re-run anything.
	second, err := f.worker.Execute(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if second != first {
		t.Fatalf("replayed result mismatch: got %+v want %+v", second, first)
	}
	if len(f.provider.callOrder()) != providerCalls {
		t.Fatal("provider called again on terminal session")
	}
	if f.model.callCount() != modelCalls {
		t.Fatal("model called again on terminal session")
	}
	if got := f.balance(t); got != before {
		t.Fatalf("ledger touched on terminal replay: %d -> %d", before, got)
	}
}

type failingLedgerStore struct{}

func (failingLedgerStore) Get(ctx context.Context, userID string) (credits.Balance, error) {
	return credits.Balance{}, errors.New("ledger unavailable")
}

func (failingLedgerStore) Debit(ctx context.Context, userID string, amount int, tx credits.Transaction) (credits.Balance, error) {
	return credits.Balance{}, errors.New("ledger unavailable")
}

func (failingLedgerStore) Refund(ctx context.Context, userID string, amount int, tx credits.Transaction) (credits.Balance, error) {
	return credits.Balance{}, errors.New("ledger unavailable")
}

func TestExecuteRefundFailureSurfaced(t *testing.T) {
	f := setupWorker(t, []string{"gpt-4"}, nil)
	f.model.fail["gpt-4"] = true
	f.worker.Credits = credits.NewPostgresService(failingLedgerStore{})

	result, err := f.worker.Execute(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !strings.HasPrefix(result.Error, "All models failed and credit refund failed: ") {
		t.Fatalf("error = %q", result.Error)
	}
	if !strings.Contains(result.Error, "ledger unavailable") {
		t.Fatalf("error does not name the underlying cause: %q", result.Error)
	}

	session := f.reload(t)
	if session.Status != StatusError {
		t.Fatalf("status = %s, want ERROR", session.Status)
	}
	if session.Error != result.Error {
		t.Fatalf("session error %q != result error %q", session.Error, result.Error)
	}
}

func TestBuildResearchContext(t *testing.T) {
	results := []research.SourceResult{
		{
			Source: "web",
			Entry: research.Entry{Response: research.Response{
				RelevantInformation: "polls moved",
				Links:               []string{"https://a", "https://b"},
			}},
		},
		{
			Source: "news",
			Entry:  research.Entry{Response: research.Response{RelevantInformation: "headline"}},
		},
	}

	got := buildResearchContext(results)
	for _, fragment := range []string{"### web", "polls moved", "- https://a", "### news", "headline"} {
		if !strings.Contains(got, fragment) {
			t.Fatalf("context missing %q:\n%s", fragment, got)
		}
	}
	if buildResearchContext(nil) != "" {
		t.Fatal("empty results should produce empty context")
	}
}

func TestStatusTerminal(t *testing.T) {
	cases := []struct {
		status   Status
		terminal bool
	}{
		{StatusInitializing, false},
		{StatusQueued, false},
		{StatusResearching, false},
		{StatusGenerating, false},
		{StatusFinished, true},
		{StatusError, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.terminal)
		}
		if !tc.status.Valid() {
			t.Errorf("%s.Valid() = false", tc.status)
		}
	}
	if Status("BOGUS").Valid() {
		t.Error(`Status("BOGUS").Valid() = true`)
	}
}

func TestExecuteZeroModels(t *testing.T) {
	f := setupWorker(t, nil, nil)
	before := f.balance(t)

	result, err := f.worker.Execute(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.TotalModels != 0 || result.SuccessCount != 0 || result.FailureCount != 0 {
		t.Fatalf("counts mismatch: %+v", result)
	}
	if got := f.balance(t); got != before {
		t.Fatalf("refund issued with zero models: %d -> %d", before, got)
	}
	session := f.reload(t)
	if session.Status != StatusFinished {
		t.Fatalf("status = %s, want FINISHED", session.Status)
	}
	if session.Step != fmt.Sprintf("Completed %d/%d predictions", 0, 0) {
		t.Fatalf("step = %q", session.Step)
	}
}
