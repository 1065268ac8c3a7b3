package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"prediction-backend/internal/research"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  ", ""); err == nil {
		t.Fatal("NewClient succeeded without a key")
	}
}

func TestResearchNormalizesResponse(t *testing.T) {
	var gotAuth string
	var gotReq searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		confidence := 0.8
		_ = json.NewEncoder(w).Encode(searchResponse{
			Summary:    "polls moved sharply",
			Links:      []string{"https://example.com/a"},
			Confidence: &confidence,
		})
	}))
	t.Cleanup(server.Close)

	client, err := NewClient("key-1", server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	resp, err := client.Research(context.Background(), "news", research.Query{
		MarketID:    "market-1",
		Question:    "Will X happen?",
		Description: "details",
	})
	if err != nil {
		t.Fatalf("Research: %v", err)
	}

	if gotAuth != "Bearer key-1" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotReq.Source != "news" || gotReq.Query != "Will X happen? details" {
		t.Fatalf("request = %+v", gotReq)
	}
	if resp.RelevantInformation != "polls moved sharply" {
		t.Fatalf("response = %+v", resp)
	}
	if resp.ConfidenceScore == nil || *resp.ConfidenceScore != 0.8 {
		t.Fatalf("confidence = %v", resp.ConfidenceScore)
	}
	if resp.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestResearchWrapsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient("key-1", server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Research(context.Background(), "web", research.Query{Question: "Will X happen?"})
	var providerErr research.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("err = %T(%v), want ProviderError", err, err)
	}
	if providerErr.Source != "web" {
		t.Fatalf("source = %q", providerErr.Source)
	}
}
